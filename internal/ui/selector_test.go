package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testItems() []SelectorItem {
	return []SelectorItem{
		{ID: "ethereum", Label: "Ethereum Mainnet"},
		{ID: "base", Label: "Base", Current: true},
		{ID: "sepolia", Label: "Sepolia"},
	}
}

func TestSelector_StartsOnCurrent(t *testing.T) {
	s := NewSelector("Choose a chain", testItems())

	assert.True(t, s.Active())
	s.Update(key("enter"))

	assert.False(t, s.Active())
	assert.False(t, s.Cancelled())
	assert.Equal(t, "base", s.Selected())
}

func TestSelector_Navigation(t *testing.T) {
	s := NewSelector("Choose a chain", testItems())

	s.Update(key("down"))
	s.Update(key("down")) // clamps at the last item
	s.Update(key("enter"))
	assert.Equal(t, "sepolia", s.Selected())

	s = NewSelector("Choose a chain", testItems())
	s.Update(key("k"))
	s.Update(key("k"))
	s.Update(key("enter"))
	assert.Equal(t, "ethereum", s.Selected())
}

func TestSelector_Cancel(t *testing.T) {
	s := NewSelector("Choose a chain", testItems())
	s.Update(key("esc"))

	assert.True(t, s.Cancelled())
	assert.Empty(t, s.Selected())
	assert.Empty(t, s.View())
}

func TestSelector_View(t *testing.T) {
	s := NewSelector("Choose a chain", []SelectorItem{
		{ID: "base", Label: "Base", ChainID: 8453, Hint: "basescan.org", Current: true},
		{ID: "sepolia", ChainID: 11155111, Testnet: true},
	})

	view := s.View()
	assert.Contains(t, view, "Choose a chain")
	assert.Contains(t, view, SymbolArrow)
	assert.Contains(t, view, "#8453 basescan.org (current)")
	assert.Contains(t, view, "sepolia")
	assert.Contains(t, view, "#11155111 testnet")
}

func TestSelector_DigitJump(t *testing.T) {
	s := NewSelector("Choose a chain", testItems())
	s.Update(key("3"))
	s.Update(key("enter"))
	assert.Equal(t, "sepolia", s.Selected())

	s = NewSelector("Choose a chain", testItems())
	s.Update(key("9")) // out of range keeps the cursor
	s.Update(key("enter"))
	assert.Equal(t, "base", s.Selected())
}

func TestSelector_SelectedOnlyAfterChoice(t *testing.T) {
	s := NewSelector("Choose a chain", testItems())
	assert.Empty(t, s.Selected())

	s.Update(key("G"))
	s.Update(key("enter"))
	assert.Equal(t, "sepolia", s.Selected())

	s.Update(key("g")) // ignored once done
	assert.Equal(t, "sepolia", s.Selected())
}

func TestSelector_EmptyList(t *testing.T) {
	s := NewSelector("Nothing", nil)
	s.Update(key("down"))
	s.Update(key("G"))
	s.Update(key("enter"))
	assert.True(t, s.Active())
	assert.NotPanics(t, func() { _ = s.View() })

	s.Update(key("esc"))
	assert.True(t, s.Cancelled())
}

func TestPrompt_Value(t *testing.T) {
	p := NewPrompt("client id", false)
	p.SetValue("abc123")
	assert.Equal(t, "abc123", p.Value())
	assert.Contains(t, p.View(), SymbolPrompt)

	p.Reset()
	assert.Empty(t, p.Value())
}
