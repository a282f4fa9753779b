package tui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinePrompter(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		defaultYes bool
		want       bool
	}{
		{"empty takes default yes", "\n", true, true},
		{"empty takes default no", "\n", false, false},
		{"eof takes default", "", true, true},
		{"explicit yes", "y\n", false, true},
		{"explicit no", "No\n", true, false},
		{"asks again on nonsense", "maybe\nyes\n", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := &LinePrompter{In: strings.NewReader(tt.input), Out: &out}

			got, err := p.Confirm(context.Background(), "Replace it?", tt.defaultYes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLinePrompter_Hint(t *testing.T) {
	var out bytes.Buffer
	p := &LinePrompter{In: strings.NewReader("\n\n"), Out: &out}

	_, _ = p.Confirm(context.Background(), "Replace it?", true)
	_, _ = p.Confirm(context.Background(), "Install anyway?", false)

	assert.Contains(t, out.String(), "Replace it? [Y/n]")
	assert.Contains(t, out.String(), "Install anyway? [y/N]")
}

func TestLinePrompter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &LinePrompter{In: strings.NewReader("y\n"), Out: &bytes.Buffer{}}
	_, err := p.Confirm(ctx, "q?", true)
	assert.Error(t, err)
}

func TestAssumePrompter(t *testing.T) {
	got, err := AssumePrompter{Answer: true}.Confirm(context.Background(), "q?", false)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestNewPrompter_AssumeYes(t *testing.T) {
	assert.Equal(t, AssumePrompter{Answer: true}, NewPrompter(true))
}

func press(m tea.Model, keys ...tea.KeyMsg) ConfirmModel {
	for _, k := range keys {
		m, _ = m.Update(k)
	}
	return m.(ConfirmModel)
}

func TestConfirmModel(t *testing.T) {
	enter := tea.KeyMsg{Type: tea.KeyEnter}
	down := tea.KeyMsg{Type: tea.KeyDown}
	esc := tea.KeyMsg{Type: tea.KeyEsc}
	ctrlC := tea.KeyMsg{Type: tea.KeyCtrlC}

	m := press(NewConfirmModel("Replace it?", true), enter)
	assert.True(t, m.Confirmed())
	assert.True(t, m.Selected(), "cursor starts on the default")

	m = press(NewConfirmModel("Replace it?", true), down, enter)
	assert.False(t, m.Selected())

	m = press(NewConfirmModel("Install anyway?", false), esc)
	assert.True(t, m.Confirmed())
	assert.False(t, m.Selected(), "esc takes the default")

	m = press(NewConfirmModel("Replace it?", true), ctrlC)
	assert.False(t, m.Confirmed())
	assert.False(t, m.Selected())

	m = press(NewConfirmModel("Install anyway?", false), tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	assert.True(t, m.Selected())
}

func TestConfirmModel_View(t *testing.T) {
	view := NewConfirmModel("Replace it?", true).View()
	assert.Contains(t, view, "Replace it?")
}
