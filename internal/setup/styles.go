package setup

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/yolodolo42/txflow/internal/ui"
)

// The wizard shares the CLI palette; only the framing is its own.
var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)

	TitleStyle    = ui.TitleStyle
	SubtitleStyle = ui.LabelStyle
	DimStyle      = ui.LabelStyle
	SuccessStyle  = ui.SuccessStyle
	ErrorStyle    = ui.ErrorStyle
	HelpStyle     = ui.HelpStyle

	// AddressStyle highlights the new wallet address on the final screen
	AddressStyle = ui.HashStyle

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ui.ColorPrimary)
)
