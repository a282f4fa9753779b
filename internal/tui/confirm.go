package tui

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/egoavara/plugforge/internal/i18n"
)

// confirmOption represents one answer of a yes/no question
type confirmOption struct {
	Value bool
	Label string
}

// ConfirmModel is the bubbletea model for a yes/no question
type ConfirmModel struct {
	question   string
	options    []confirmOption
	defaultYes bool
	cursor     int
	selected   bool
	quitting   bool
	confirmed  bool
}

// NewConfirmModel creates a confirm model with the cursor on the default answer
func NewConfirmModel(question string, defaultYes bool) ConfirmModel {
	options := []confirmOption{
		{Value: true, Label: i18n.T("confirm.option.yes", nil)},
		{Value: false, Label: i18n.T("confirm.option.no", nil)},
	}

	cursor := 1
	if defaultYes {
		cursor = 0
	}

	return ConfirmModel{
		question:   question,
		options:    options,
		defaultYes: defaultYes,
		cursor:     cursor,
		selected:   defaultYes,
	}
}

func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.selected = false
			return m, tea.Quit

		case "up", "k", "left", "h":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j", "right", "l", "tab":
			if m.cursor < len(m.options)-1 {
				m.cursor++
			}

		case "y", "Y":
			m.selected = true
			m.confirmed = true
			m.quitting = true
			return m, tea.Quit

		case "n", "N":
			m.selected = false
			m.confirmed = true
			m.quitting = true
			return m, tea.Quit

		case "enter", " ":
			m.selected = m.options[m.cursor].Value
			m.confirmed = true
			m.quitting = true
			return m, tea.Quit

		case "esc":
			// Take the default and exit
			m.selected = m.defaultYes
			m.confirmed = true
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m ConfirmModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(promptTitleStyle.Render(m.question))
	b.WriteString("\n")

	for i, opt := range m.options {
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}

		if i == m.cursor {
			b.WriteString(optionSelectedStyle.Render(fmt.Sprintf("%s%s", cursor, opt.Label)))
		} else {
			b.WriteString(optionStyle.Render(fmt.Sprintf("%s%s", cursor, opt.Label)))
		}
		b.WriteString("\n")
	}

	help := promptHelpStyle.Render("↑/↓: " + i18n.T("help.move", nil) + " | Enter: " + i18n.T("help.select", nil) + " | Esc: " + i18n.T("help.default", nil))
	b.WriteString(help)

	return promptBoxStyle.Render(b.String())
}

// Selected returns whether the user answered yes
func (m ConfirmModel) Selected() bool {
	return m.selected
}

// Confirmed returns whether the user gave an answer rather than interrupting
func (m ConfirmModel) Confirmed() bool {
	return m.confirmed
}

// ConfirmPrompter asks questions with an interactive bubbletea dialog
type ConfirmPrompter struct{}

// Confirm runs the dialog on the terminal. Interrupting it declines.
func (ConfirmPrompter) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	p := tea.NewProgram(NewConfirmModel(question, defaultYes),
		tea.WithContext(ctx),
		tea.WithOutput(os.Stderr),
	)

	finalModel, err := p.Run()
	if err != nil {
		return false, err
	}

	m := finalModel.(ConfirmModel)
	return m.Confirmed() && m.Selected(), nil
}
