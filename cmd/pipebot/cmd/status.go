package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marhthing/pipebot/internal/config"
	"github.com/marhthing/pipebot/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration status",
	Long:  "Display the current pipebot configuration including owner, channels, and collaborators.",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig("")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return tui.ShowStatus(cfg)
}
