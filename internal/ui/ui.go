package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytmirror/internal/models"
	"github.com/desertthunder/ytmirror/internal/tasks"
)

// RunFunc performs one sync, asking confirm before touching the target and reporting on progress.
type RunFunc func(ctx context.Context, confirm tasks.ConfirmFunc, progress chan<- tasks.ProgressUpdate) (*tasks.Result, error)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	StartingView ViewState = iota
	ConfirmView
	SyncView
	ResultView
)

const maxLines = 12

// Model drives one sync run: confirmation of the source playlist, live progress, and the outcome.
type Model struct {
	ctx       context.Context
	run       RunFunc
	view      ViewState
	events    chan Msg
	answers   chan bool
	source    *models.SourcePlaylist
	trackList list.Model
	progress  tasks.ProgressUpdate
	lines     []string
	result    *tasks.Result
	err       error
	help      help.Model
	keys      keyMap
	width     int
	height    int
}

// NewModel creates a sync model; the run starts when the program initializes.
func NewModel(ctx context.Context, run RunFunc) *Model {
	return &Model{
		ctx:     ctx,
		run:     run,
		view:    StartingView,
		events:  make(chan Msg, 16),
		answers: make(chan bool, 1),
		help:    help.New(),
		keys:    newKeyMap(),
		width:   80,
		height:  24,
	}
}

// RunSync runs the model as a full-screen program and returns the outcome of the sync.
func RunSync(ctx context.Context, run RunFunc, opts ...tea.ProgramOption) (*tasks.Result, error) {
	m := NewModel(ctx, run)
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return nil, fmt.Errorf("error running TUI: %w", err)
	}
	return m.Result()
}

// Result returns the outcome of the run, or [context.Canceled] when the UI quit before it finished.
func (m *Model) Result() (*tasks.Result, error) {
	if m.view != ResultView {
		return m.result, fmt.Errorf("sync interrupted: %w", context.Canceled)
	}
	return m.result, m.err
}

// Init starts the run and begins listening for its events.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.start(), m.waitForEvent())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.source != nil {
			m.trackList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgConfirmRequest:
			m.source = msg.data.(*models.SourcePlaylist)
			m.trackList = newTrackList(m.source, m.width-4, m.height-8)
			m.view = ConfirmView
			return m, m.waitForEvent()
		case MsgProgressUpdate:
			m.progress = msg.data.(tasks.ProgressUpdate)
			if line := FormatUpdate(m.progress); line != "" && isItemPhase(m.progress.Phase) {
				m.lines = append(m.lines, line)
				if len(m.lines) > maxLines {
					m.lines = m.lines[len(m.lines)-maxLines:]
				}
			}
			if m.view == StartingView && m.progress.Phase > tasks.FetchSource {
				m.view = SyncView
			}
			return m, m.waitForEvent()
		case MsgRunComplete:
			done := msg.data.(runComplete)
			m.result = done.result
			m.err = done.err
			m.view = ResultView
			return m, nil
		}
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case StartingView:
		return fmt.Sprintf("%s\n%s\n", styles.title.Render("ytmirror"), m.progress.Message)
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return RenderResult(m.result, m.err) + "\n\n" + m.help.ShortHelpView([]key.Binding{m.keys.quit}) + "\n"
	default:
		return ""
	}
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.view {
	case ConfirmView:
		switch {
		case key.Matches(msg, m.keys.yes):
			m.answer(true)
			m.view = SyncView
			return m, nil
		case key.Matches(msg, m.keys.no):
			m.answer(false)
			m.view = SyncView
			return m, nil
		case key.Matches(msg, m.keys.quit):
			m.answer(false)
			return m, tea.Quit
		}

		var cmd tea.Cmd
		m.trackList, cmd = m.trackList.Update(msg)
		return m, cmd

	case ResultView:
		if key.Matches(msg, m.keys.quit, m.keys.yes, m.keys.no) {
			return m, tea.Quit
		}

	default:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) answer(ok bool) {
	select {
	case m.answers <- ok:
	default:
	}
}

// confirm is the [tasks.ConfirmFunc] handed to the run; it blocks until the user answers.
func (m *Model) confirm(ctx context.Context, src *models.SourcePlaylist) (bool, error) {
	select {
	case m.events <- confirmRequestMsg(src):
	case <-ctx.Done():
		return false, ctx.Err()
	}

	select {
	case ok := <-m.answers:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (m *Model) start() tea.Cmd {
	return func() tea.Msg {
		progress := make(chan tasks.ProgressUpdate)
		forwarded := make(chan struct{})
		go func() {
			for u := range progress {
				m.emit(progressUpdateMsg(u))
			}
			close(forwarded)
		}()

		result, err := m.run(m.ctx, m.confirm, progress)
		close(progress)
		<-forwarded

		m.emit(runCompleteMsg(result, err))
		return nil
	}
}

// emit delivers msg unless the program's context is done.
func (m *Model) emit(msg Msg) {
	select {
	case m.events <- msg:
	case <-m.ctx.Done():
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Sync '%s' to YouTube?", m.source.Title))
	target := styles.help.Render(fmt.Sprintf("Target playlist: %s", m.source.TargetTitle()))
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s\n", title, target, m.trackList.View(), m.help.ShortHelpView(m.keys.ShortHelp()))
}

func (m *Model) renderSync() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Syncing"))
	b.WriteString("\n")

	if m.progress.Total > 0 && isItemPhase(m.progress.Phase) {
		fmt.Fprintf(&b, "%s (%d/%d)\n", m.progress.Phase, m.progress.Step, m.progress.Total)
	} else {
		fmt.Fprintf(&b, "%s\n", m.progress.Message)
	}

	for _, line := range m.lines {
		fmt.Fprintf(&b, "  %s\n", line)
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

func isItemPhase(p tasks.Phase) bool {
	return p == tasks.Added || p == tasks.Removed || p == tasks.Halted
}

// FormatUpdate renders a progress update as a single line, coloring added and removed records.
func FormatUpdate(u tasks.ProgressUpdate) string {
	switch u.Phase {
	case tasks.Added:
		return styles.added.Render(u.Message)
	case tasks.Removed:
		return styles.removed.Render(u.Message)
	case tasks.Halted:
		return styles.warn.Render(u.Message)
	case tasks.Done:
		return styles.ok.Render(u.Message)
	default:
		return u.Message
	}
}

// RenderResult summarizes how a run ended.
func RenderResult(result *tasks.Result, err error) string {
	if err != nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %v", err))
	}
	if result == nil {
		return styles.err.Render("No result available")
	}

	counts := fmt.Sprintf("%d removed, %d added", result.Removed, result.Added)
	if result.Adopted > 0 {
		counts += fmt.Sprintf(" (%d already on target)", result.Adopted)
	}

	switch result.State {
	case models.RunDone:
		return styles.ok.Render("✓ Sync complete") + "\n" + counts
	case models.RunQuotaHalted:
		return styles.warn.Render(fmt.Sprintf("⚠ Quota exhausted for %s; run again to continue", result.Identity)) + "\n" + counts
	case models.RunCancelled:
		return styles.warn.Render("Sync cancelled")
	default:
		return styles.err.Render(fmt.Sprintf("Sync ended in state %s", result.State)) + "\n" + counts
	}
}
