package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// SelectorItem is one choice in a Selector. ChainID and Hint are optional
// columns used by the chain picker.
type SelectorItem struct {
	ID          string
	Label       string
	Description string
	ChainID     uint64
	Testnet     bool
	Hint        string
	Current     bool
}

func (i SelectorItem) display() string {
	if i.Label != "" {
		return i.Label
	}
	return i.ID
}

// Selector is a keyboard-driven list. It is embedded in a bubbletea model
// which forwards key messages to Update.
type Selector struct {
	title  string
	items  []SelectorItem
	cursor int
	chosen int
	done   bool
	width  int
}

// NewSelector creates a selector with the cursor on the current item
func NewSelector(title string, items []SelectorItem) Selector {
	cursor := 0
	for i, item := range items {
		if item.Current {
			cursor = i
			break
		}
	}
	return Selector{title: title, items: items, cursor: cursor, chosen: -1, width: 80}
}

// SetWidth sets the render width
func (s *Selector) SetWidth(w int) {
	s.width = w
}

// Active reports whether the selector still waits for a choice
func (s *Selector) Active() bool {
	return !s.done
}

// Selected returns the chosen item ID, or "" while active or after cancel
func (s *Selector) Selected() string {
	if !s.done || s.chosen < 0 || s.chosen >= len(s.items) {
		return ""
	}
	return s.items[s.chosen].ID
}

// Cancelled reports whether the user left without choosing
func (s *Selector) Cancelled() bool {
	return s.done && s.chosen < 0
}

// Update moves the cursor or finishes the selection. Digits 1-9 jump to the
// matching row.
func (s *Selector) Update(msg tea.Msg) (*Selector, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || s.done {
		return s, nil
	}

	switch k := key.String(); k {
	case "esc", "q":
		s.chosen = -1
		s.done = true
	case "up", "k":
		s.cursor = max(0, s.cursor-1)
	case "down", "j":
		s.cursor = max(0, min(len(s.items)-1, s.cursor+1))
	case "home", "g":
		s.cursor = 0
	case "end", "G":
		s.cursor = max(0, len(s.items)-1)
	case "enter":
		if len(s.items) > 0 {
			s.chosen = s.cursor
			s.done = true
		}
	default:
		if len(k) == 1 && k[0] >= '1' && k[0] <= '9' {
			if n := int(k[0] - '1'); n < len(s.items) {
				s.cursor = n
			}
		}
	}
	return s, nil
}

// View renders the list, or nothing once a choice was made
func (s *Selector) View() string {
	if s.done {
		return ""
	}

	labelWidth := min(35, max(10, s.width/2))
	for _, item := range s.items {
		labelWidth = max(labelWidth, min(35, len(item.display())+2))
	}

	var b strings.Builder
	b.WriteString(HelpStyle.Render(s.title + " (↑/↓ navigate, 1-9 jump, enter select, esc cancel)"))
	b.WriteString("\n\n")

	for i, item := range s.items {
		label := fmt.Sprintf("%-*s", labelWidth, item.display())
		if i == s.cursor {
			b.WriteString(SelectorCursor.Render(SymbolArrow) + " " + SelectorActive.Render(label))
		} else {
			b.WriteString("  " + SelectorItemStyle.Render(label))
		}

		var cols []string
		if item.ChainID != 0 {
			cols = append(cols, fmt.Sprintf("#%d", item.ChainID))
		}
		if item.Testnet {
			cols = append(cols, "testnet")
		}
		if item.Description != "" {
			cols = append(cols, item.Description)
		}
		if item.Hint != "" {
			cols = append(cols, item.Hint)
		}
		if item.Current {
			cols = append(cols, "(current)")
		}
		if len(cols) > 0 {
			b.WriteString(SelectorDim.Render(strings.Join(cols, " ")))
		}
		b.WriteString("\n")
	}
	return b.String()
}
