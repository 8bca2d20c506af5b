package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marhthing/pipebot/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run interactive setup wizard",
	Long:  "Run the interactive setup wizard to configure the owner identity, command prefix, and channels.",
	RunE:  runSetup,
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg, err := tui.RunSetup()
	if err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}

	fmt.Println()
	tui.ShowQuickStatus(cfg)

	fmt.Println()
	fmt.Println("You can now:")
	fmt.Println("  - Start the gateway: pipebot gateway")
	fmt.Println("  - View full status:  pipebot status")

	return nil
}
