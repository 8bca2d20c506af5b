// Package tui provides interactive terminal user interface components
// for pipebot.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/marhthing/pipebot/internal/config"
	"github.com/marhthing/pipebot/internal/jid"
)

// Styles for the setup wizard.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)
)

// SetupState holds the state of the setup wizard.
type SetupState struct {
	Owner          string
	Prefix         string
	ConfigTelegram bool
	TelegramToken  string
	EnableArchive  bool
	EnableMedia    bool
	Confirmed      bool
}

// RunSetup runs the interactive setup wizard.
// Returns the configured Config or error.
func RunSetup() (*config.Config, error) {
	state := &SetupState{
		Prefix:        "!",
		EnableArchive: true,
		EnableMedia:   true,
	}

	if err := runWelcomeStep(state); err != nil {
		return nil, fmt.Errorf("welcome step failed: %w", err)
	}
	if err := runChannelsStep(state); err != nil {
		return nil, fmt.Errorf("channels step failed: %w", err)
	}
	if err := runCollaboratorsStep(state); err != nil {
		return nil, fmt.Errorf("collaborators step failed: %w", err)
	}
	if err := runConfirmationStep(state); err != nil {
		return nil, fmt.Errorf("confirmation step failed: %w", err)
	}

	if !state.Confirmed {
		return nil, fmt.Errorf("setup cancelled by user")
	}

	cfg := buildConfigFromState(state)

	if err := config.SaveConfig(cfg, ""); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println(successStyle.Render("\n✓ Configuration saved successfully!"))
	fmt.Println(subtitleStyle.Render("Config file: " + config.GetConfigPath()))
	fmt.Println()

	return cfg, nil
}

// runWelcomeStep displays the welcome message and collects the owner
// identity and command prefix.
func runWelcomeStep(state *SetupState) error {
	banner := `
         _             __          __
   ____  (_)___  ___  / /_  ____  / /_
  / __ \/ / __ \/ _ \/ __ \/ __ \/ __/
 / /_/ / / /_/ /  __/ /_/ / /_/ / /_
/ .___/_/ .___/\___/_.___/\____/\__/
/_/    /_/
`
	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Render(banner))

	welcome := boxStyle.Render(
		titleStyle.Render("Welcome to pipebot Setup") + "\n\n" +
			"This wizard will help you configure the message host.\n" +
			"You can always edit the configuration later at:\n" +
			subtitleStyle.Render(config.GetConfigPath()),
	)
	fmt.Println(welcome)
	fmt.Println()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Owner JID").
				Description("The identity with unconditional access to every command").
				Placeholder("123456789@telegram").
				Value(&state.Owner).
				Validate(func(s string) error {
					if _, err := jid.Normalize(s); err != nil {
						return fmt.Errorf("not a valid JID: %w", err)
					}
					return nil
				}),
			huh.NewInput().
				Title("Command prefix").
				Description("Messages starting with this are treated as commands").
				Placeholder("!").
				Value(&state.Prefix).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("prefix is required")
					}
					return nil
				}),
		),
	)

	return form.Run()
}

// runChannelsStep configures communication channels.
func runChannelsStep(state *SetupState) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Configure Telegram?").
				Description("Set up a Telegram bot for messaging").
				Value(&state.ConfigTelegram),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	if state.ConfigTelegram {
		telegramForm := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Telegram Bot Token").
					Description("Get this from @BotFather on Telegram").
					Placeholder("123456789:ABCdefGHIjklMNOpqrsTUVwxyz").
					EchoMode(huh.EchoModePassword).
					Value(&state.TelegramToken).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return fmt.Errorf("bot token is required")
						}
						return nil
					}),
			),
		)
		if err := telegramForm.Run(); err != nil {
			return err
		}
	}

	return nil
}

// runCollaboratorsStep toggles the archive and media collaborators.
func runCollaboratorsStep(state *SetupState) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Archive inbound messages?").
				Description("Every received message is stored in a local SQLite database").
				Value(&state.EnableArchive),
			huh.NewConfirm().
				Title("Download attachments?").
				Description("Media attached to messages is saved to a local vault").
				Value(&state.EnableMedia),
		),
	)
	return form.Run()
}

// runConfirmationStep shows a summary and asks for confirmation.
func runConfirmationStep(state *SetupState) error {
	var summary strings.Builder
	summary.WriteString("Owner: " + state.Owner + "\n")
	summary.WriteString("Prefix: " + state.Prefix + "\n")
	if state.ConfigTelegram {
		summary.WriteString("Telegram: enabled\n")
	} else {
		summary.WriteString("Telegram: disabled\n")
	}
	summary.WriteString(fmt.Sprintf("Archive: %v, Media: %v", state.EnableArchive, state.EnableMedia))

	fmt.Println(boxStyle.Render(titleStyle.Render("Summary") + "\n" + summary.String()))

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this configuration?").
				Value(&state.Confirmed),
		),
	)
	return form.Run()
}

// buildConfigFromState converts wizard state into a Config.
func buildConfigFromState(state *SetupState) *config.Config {
	cfg := config.DefaultConfig()

	if normalized, err := jid.Normalize(state.Owner); err == nil {
		cfg.Host.Owner = normalized
	} else {
		cfg.Host.Owner = state.Owner
	}
	cfg.Host.Prefix = strings.TrimSpace(state.Prefix)

	if state.ConfigTelegram {
		cfg.Channels.Telegram.Enabled = true
		cfg.Channels.Telegram.Token = strings.TrimSpace(state.TelegramToken)
	}

	cfg.Archive.Enabled = state.EnableArchive
	cfg.Media.Enabled = state.EnableMedia

	return cfg
}
