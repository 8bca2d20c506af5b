package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/marhthing/pipebot/internal/config"
)

// Status display styles.
var (
	statusTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205")).
				MarginBottom(1).
				Padding(0, 1)

	statusBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Width(60)

	statusSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				MarginTop(1)

	statusLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Width(20)

	statusValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("255"))

	statusEnabledStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("82")).
				Bold(true)

	statusDisabledStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	statusWarningStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214"))

	statusErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196")).
				Bold(true)
)

// ShowStatus displays the current configuration status.
func ShowStatus(cfg *config.Config) error {
	var sb strings.Builder

	sb.WriteString(statusTitleStyle.Render("pipebot Configuration Status"))
	sb.WriteString("\n\n")

	sb.WriteString(statusSectionStyle.Render("Host"))
	sb.WriteString("\n")
	sb.WriteString(renderHostStatus(cfg))
	sb.WriteString("\n")

	sb.WriteString(statusSectionStyle.Render("Channels"))
	sb.WriteString("\n")
	sb.WriteString(renderChannelsStatus(cfg))
	sb.WriteString("\n")

	sb.WriteString(statusSectionStyle.Render("Collaborators"))
	sb.WriteString("\n")
	sb.WriteString(renderCollaboratorsStatus(cfg))

	fmt.Println(statusBoxStyle.Render(sb.String()))
	return nil
}

// renderHostStatus renders the core host configuration.
func renderHostStatus(cfg *config.Config) string {
	var sb strings.Builder

	if cfg.Host.Owner == "" {
		sb.WriteString(renderStatusRow("Owner", statusErrorStyle.Render("not configured")))
		sb.WriteString(renderStatusRow("", statusWarningStyle.Render("Run 'pipebot setup' to configure")))
	} else {
		sb.WriteString(renderStatusRow("Owner", statusEnabledStyle.Render(cfg.Host.Owner)))
	}
	sb.WriteString(renderStatusRow("Prefix", statusValueStyle.Render(cfg.Host.Prefix)))
	sb.WriteString(renderStatusRow("State file", statusValueStyle.Render(cfg.StatePath())))

	return sb.String()
}

// renderChannelsStatus renders the channels configuration status.
func renderChannelsStatus(cfg *config.Config) string {
	var sb strings.Builder

	if cfg.Channels.Telegram.Enabled {
		sb.WriteString(renderStatusRow("Telegram", statusEnabledStyle.Render("enabled")))
		if cfg.Channels.Telegram.Token != "" {
			sb.WriteString(renderStatusRow("  Token", statusValueStyle.Render(maskToken(cfg.Channels.Telegram.Token))))
		} else {
			sb.WriteString(renderStatusRow("  Token", statusErrorStyle.Render("missing")))
		}
	} else {
		sb.WriteString(renderStatusRow("Telegram", statusDisabledStyle.Render("disabled")))
	}

	return sb.String()
}

// renderCollaboratorsStatus renders archive, media and scheduler status.
func renderCollaboratorsStatus(cfg *config.Config) string {
	var sb strings.Builder

	if cfg.Archive.Enabled {
		sb.WriteString(renderStatusRow("Archive", statusEnabledStyle.Render("enabled")))
		sb.WriteString(renderStatusRow("  Database", statusValueStyle.Render(cfg.ArchivePath())))
	} else {
		sb.WriteString(renderStatusRow("Archive", statusDisabledStyle.Render("disabled")))
	}

	if cfg.Media.Enabled {
		sb.WriteString(renderStatusRow("Media", statusEnabledStyle.Render("enabled")))
		sb.WriteString(renderStatusRow("  Vault", statusValueStyle.Render(cfg.MediaDir())))
	} else {
		sb.WriteString(renderStatusRow("Media", statusDisabledStyle.Render("disabled")))
	}

	if cfg.Scheduler.Enabled {
		sb.WriteString(renderStatusRow("Scheduler", statusEnabledStyle.Render("enabled")))
		sb.WriteString(renderStatusRow("  Tasks", statusValueStyle.Render(cfg.SchedulerPath())))
	} else {
		sb.WriteString(renderStatusRow("Scheduler", statusDisabledStyle.Render("disabled")))
	}

	return sb.String()
}

// renderStatusRow renders a label-value row.
func renderStatusRow(label, value string) string {
	if label == "" {
		return fmt.Sprintf("  %s\n", value)
	}
	return fmt.Sprintf("  %s %s\n",
		statusLabelStyle.Render(label+":"),
		value,
	)
}

// maskToken masks a bot token for display.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}

// ShowQuickStatus shows a minimal one-line status.
func ShowQuickStatus(cfg *config.Config) {
	var owner string
	if cfg.Host.Owner == "" {
		owner = statusErrorStyle.Render("not configured")
	} else {
		owner = statusEnabledStyle.Render(cfg.Host.Owner)
	}

	channels := 0
	if cfg.Channels.Telegram.Enabled {
		channels++
	}
	channelStatus := statusDisabledStyle.Render("no channels")
	if channels > 0 {
		channelStatus = statusEnabledStyle.Render(fmt.Sprintf("%d channel(s)", channels))
	}

	fmt.Printf("pipebot: owner %s | %s\n", owner, channelStatus)
}
