package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytmirror/internal/models"
	"github.com/desertthunder/ytmirror/internal/tasks"
)

// confirmModel asks a single yes/no question about a source playlist.
type confirmModel struct {
	src    *models.SourcePlaylist
	keys   keyMap
	help   help.Model
	answer bool
	done   bool
}

func newConfirmModel(src *models.SourcePlaylist) *confirmModel {
	return &confirmModel{src: src, keys: newKeyMap(), help: help.New()}
}

func (m *confirmModel) Init() tea.Cmd { return nil }

func (m *confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(k, m.keys.yes):
		m.answer, m.done = true, true
		return m, tea.Quit
	case key.Matches(k, m.keys.no), key.Matches(k, m.keys.quit):
		m.answer, m.done = false, true
		return m, tea.Quit
	}
	return m, nil
}

func (m *confirmModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s\n%d tracks → %s\n\n%s\n",
		styles.title.Render(fmt.Sprintf("Sync '%s' by %s?", m.src.Title, m.src.OwnerName)),
		len(m.src.Tracks),
		m.src.TargetTitle(),
		m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no}),
	)
}

// Confirm returns a [tasks.ConfirmFunc] that prompts inline with a small bubbletea program.
func Confirm(opts ...tea.ProgramOption) tasks.ConfirmFunc {
	return func(ctx context.Context, src *models.SourcePlaylist) (bool, error) {
		m := newConfirmModel(src)
		popts := append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
		if _, err := tea.NewProgram(m, popts...).Run(); err != nil {
			return false, fmt.Errorf("failed to read confirmation: %w", err)
		}
		return m.answer, nil
	}
}
