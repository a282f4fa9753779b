package tui

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/egoavara/plugforge/internal/i18n"
	"github.com/egoavara/plugforge/internal/plugin"
	"github.com/egoavara/plugforge/internal/search"
)

// PickerItem is a reference shown in the picker
type PickerItem struct {
	Reference plugin.Reference
	Installed bool
}

// PickerModel is the bubbletea model for choosing one plugin from an index
type PickerModel struct {
	items       []PickerItem
	filtered    []PickerItem
	cursor      int
	width       int
	height      int
	searchInput textinput.Model
	quitting    bool
	chosen      *PickerItem
}

// NewPickerModel creates a picker over items, pre-filtered by query
func NewPickerModel(items []PickerItem, query string) PickerModel {
	ti := textinput.New()
	ti.Placeholder = i18n.T("picker.placeholder", nil)
	ti.CharLimit = 50
	ti.Width = 30
	ti.SetValue(query)

	m := PickerModel{
		items:       items,
		filtered:    items,
		searchInput: ti,
	}
	m.applyFilter()
	return m
}

func (m PickerModel) Init() tea.Cmd {
	return nil
}

func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

func (m PickerModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		// If search has text, clear it; otherwise quit
		if m.searchInput.Value() != "" {
			m.searchInput.SetValue("")
			m.applyFilter()
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case "up":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down":
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
		}

	case "enter":
		if len(m.filtered) > 0 {
			item := m.filtered[m.cursor]
			m.chosen = &item
			m.quitting = true
			return m, tea.Quit
		}

	case "backspace":
		val := m.searchInput.Value()
		if len(val) > 0 {
			m.searchInput.SetValue(val[:len(val)-1])
			m.applyFilter()
		}

	default:
		// Any other printable character goes to search
		if len(msg.String()) == 1 && msg.String()[0] >= 32 && msg.String()[0] < 127 {
			m.searchInput.SetValue(m.searchInput.Value() + msg.String())
			m.applyFilter()
		}
	}

	return m, nil
}

func (m *PickerModel) applyFilter() {
	query := m.searchInput.Value()
	if query == "" {
		m.filtered = m.items
	} else {
		refs := make([]plugin.Reference, len(m.items))
		installed := make(map[string]bool, len(m.items))
		for i, item := range m.items {
			refs[i] = item.Reference
			installed[item.Reference.Name] = item.Installed
		}

		m.filtered = m.filtered[:0:0]
		for _, r := range search.Rank(refs, query) {
			if !r.Matched {
				break
			}
			m.filtered = append(m.filtered, PickerItem{Reference: r.Reference, Installed: installed[r.Reference.Name]})
		}
	}

	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
}

// Chosen returns the picked item, or nil if the picker was cancelled
func (m PickerModel) Chosen() *PickerItem {
	return m.chosen
}

func (m PickerModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	header := titleStyle.Render(i18n.T("picker.header", map[string]any{"Count": len(m.items)}))
	b.WriteString(header)
	b.WriteString("\n\n")

	listWidth := 40
	previewWidth := max(30, m.width-listWidth-6)
	listHeight := max(5, m.height-8)

	var lines []string
	for i, item := range m.filtered {
		lines = append(lines, m.renderItem(i, item))
	}

	// Paginate if needed
	start := 0
	if m.cursor >= listHeight {
		start = m.cursor - listHeight + 1
	}
	end := min(start+listHeight, len(lines))

	listBox := lipgloss.NewStyle().Width(listWidth).Render(strings.Join(lines[start:end], "\n"))
	previewBox := previewStyle.Width(previewWidth).Height(listHeight).Render(m.renderPreview())

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, listBox, "  ", previewBox))
	b.WriteString("\n\n")

	if q := m.searchInput.Value(); q != "" {
		b.WriteString("> " + q + "_")
	} else {
		b.WriteString(helpStyle.Render("> " + i18n.T("picker.placeholder", nil)))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓: " + i18n.T("help.move", nil) + " | Enter: " + i18n.T("help.install", nil) + " | Esc: " + i18n.T("help.quit", nil)))

	return b.String()
}

func (m PickerModel) renderItem(idx int, item PickerItem) string {
	cursor := "  "
	if idx == m.cursor {
		cursor = "> "
	}

	marker := "[ ]"
	style := normalStyle
	if item.Installed {
		marker = "[*]"
		style = installedStyle
	}

	kind := "bin"
	if item.Reference.IsGit() {
		kind = "git"
	}

	text := fmt.Sprintf("%s%s %s (%s)", cursor, marker, item.Reference.Name, kind)
	if idx == m.cursor {
		return selectedStyle.Render(text)
	}
	return style.Render(text)
}

func (m PickerModel) renderPreview() string {
	if len(m.filtered) == 0 || m.cursor >= len(m.filtered) {
		return i18n.T("picker.empty", nil)
	}

	item := m.filtered[m.cursor]
	ref := item.Reference

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", ref.Name)

	version := ref.Version
	if version == "" {
		version = "latest"
	}
	fmt.Fprintf(&b, "Version: %s\n", version)

	if ref.IsGit() {
		fmt.Fprintf(&b, "Repository: %s\n", ref.GitRepo)
		if ref.GitRef != "" {
			fmt.Fprintf(&b, "Ref: %s\n", ref.GitRef)
		}
	} else {
		fmt.Fprintf(&b, "Artifact: %s\n", ref.Artifact)
	}

	if item.Installed {
		b.WriteString(installedStyle.Render("Status: Installed") + "\n")
	}

	if ref.Description != "" {
		fmt.Fprintf(&b, "\nDescription:\n  %s\n", ref.Description)
	}
	if len(ref.Tags) > 0 {
		fmt.Fprintf(&b, "\nTags: %s\n", strings.Join(ref.Tags, ", "))
	}

	return b.String()
}

// RunPicker launches the interactive picker and returns the chosen
// reference, or nil if the user quit without choosing.
func RunPicker(ctx context.Context, items []PickerItem, query string) (*plugin.Reference, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%s", i18n.T("picker.empty", nil))
	}

	p := tea.NewProgram(NewPickerModel(items, query),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithOutput(os.Stderr),
	)

	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	chosen := finalModel.(PickerModel).Chosen()
	if chosen == nil {
		return nil, nil
	}
	ref := chosen.Reference
	return &ref, nil
}
