package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egoavara/plugforge/internal/plugin"
)

func pickerItems() []PickerItem {
	return []PickerItem{
		{Reference: plugin.Reference{Name: "foo-plugin", Artifact: "com.example:foo-plugin"}},
		{Reference: plugin.Reference{Name: "bar", GitRepo: "https://x/bar.git"}, Installed: true},
		{Reference: plugin.Reference{Name: "baz", Artifact: "com.example:baz"}},
	}
}

func typeText(m tea.Model, s string) tea.Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestPicker_ChoosesUnderCursor(t *testing.T) {
	var m tea.Model = NewPickerModel(pickerItems(), "")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	chosen := m.(PickerModel).Chosen()
	require.NotNil(t, chosen)
	assert.Equal(t, "bar", chosen.Reference.Name)
	assert.True(t, chosen.Installed)
}

func TestPicker_FilterNarrowsList(t *testing.T) {
	m := typeText(NewPickerModel(pickerItems(), ""), "foo")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	chosen := m.(PickerModel).Chosen()
	require.NotNil(t, chosen)
	assert.Equal(t, "foo-plugin", chosen.Reference.Name)
}

func TestPicker_InitialQuery(t *testing.T) {
	m := NewPickerModel(pickerItems(), "baz")
	require.Len(t, m.filtered, 1)
	assert.Equal(t, "baz", m.filtered[0].Reference.Name)
}

func TestPicker_EscClearsThenQuits(t *testing.T) {
	var m tea.Model = NewPickerModel(pickerItems(), "zzz")
	assert.Empty(t, m.(PickerModel).filtered)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Len(t, m.(PickerModel).filtered, 3)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.NotNil(t, cmd)
	assert.Nil(t, m.(PickerModel).Chosen())
}

func TestPicker_EnterOnEmptyListDoesNothing(t *testing.T) {
	var m tea.Model = NewPickerModel(pickerItems(), "zzz")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Nil(t, m.(PickerModel).Chosen())
}
