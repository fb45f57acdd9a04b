package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorPrimary = lipgloss.Color("205") // Pink/magenta
	ColorSuccess = lipgloss.Color("35")  // Green
	ColorWarning = lipgloss.Color("214") // Gold/yellow
	ColorError   = lipgloss.Color("196") // Red
	ColorDim     = lipgloss.Color("241") // Gray
	ColorAccent  = lipgloss.Color("39")  // Blue
)

const (
	SymbolBullet = "●"
	SymbolTree   = "└"
	SymbolArrow  = "▸"
	SymbolCheck  = "✓"
	SymbolCross  = "✗"
	SymbolPrompt = "❯"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorDim)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	HashStyle = lipgloss.NewStyle().
			Foreground(ColorAccent)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorDim)

	PromptStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	SelectorCursor = lipgloss.NewStyle().
			Foreground(ColorPrimary)

	SelectorItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	SelectorDim = lipgloss.NewStyle().
			Foreground(ColorDim)

	SelectorActive = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)
)

// Title renders a section heading
func Title(s string) string {
	return TitleStyle.Render(s)
}

// KV renders aligned label/value rows. pairs alternates label and value.
func KV(pairs ...string) string {
	width := 0
	for i := 0; i+1 < len(pairs); i += 2 {
		if w := lipgloss.Width(pairs[i]); w > width {
			width = w
		}
	}

	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		label := pairs[i] + ":" + strings.Repeat(" ", width-lipgloss.Width(pairs[i]))
		fmt.Fprintf(&b, "  %s %s\n", LabelStyle.Render(label), ValueStyle.Render(pairs[i+1]))
	}
	return b.String()
}

// Hash renders a transaction or user operation hash
func Hash(s string) string {
	return HashStyle.Render(s)
}

func Success(msg string) string {
	return SuccessStyle.Render(SymbolCheck + " " + msg)
}

func Warning(msg string) string {
	return WarningStyle.Render(SymbolArrow + " " + msg)
}

func Failure(msg string) string {
	return ErrorStyle.Render(SymbolCross + " " + msg)
}
