package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytmirror/internal/models"
	"github.com/desertthunder/ytmirror/internal/shared"
	"github.com/desertthunder/ytmirror/internal/tasks"
)

func testSource() *models.SourcePlaylist {
	return &models.SourcePlaylist{
		ID:        "pl1",
		Title:     "Road Trip",
		OwnerName: "Alice",
		Tracks: []models.SourceTrack{
			{SourceID: "a", Title: "Song A", Artist: "Artist A"},
			{SourceID: "b", Title: "Song B", Artist: "Artist B"},
		},
	}
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelFlow(t *testing.T) {
	m := NewModel(context.Background(), nil)

	m.Update(progressUpdateMsg(tasks.ProgressUpdate{Phase: tasks.FetchSource, Message: "Fetching source playlist (pl1)..."}))
	if m.view != StartingView || !strings.Contains(m.View(), "Fetching source playlist") {
		t.Fatalf("unexpected starting view: %s", m.View())
	}

	m.Update(confirmRequestMsg(testSource()))
	if m.view != ConfirmView {
		t.Fatalf("view = %v, want ConfirmView", m.view)
	}
	if view := m.View(); !strings.Contains(view, "Sync 'Road Trip' to YouTube?") || !strings.Contains(view, "Road Trip - by Alice") {
		t.Errorf("unexpected confirm view: %s", view)
	}

	m.Update(keyPress("y"))
	if m.view != SyncView {
		t.Fatalf("view = %v, want SyncView", m.view)
	}
	if ok := <-m.answers; !ok {
		t.Error("expected a positive answer")
	}

	m.Update(progressUpdateMsg(tasks.ProgressUpdate{Phase: tasks.Added, Step: 1, Total: 2, Message: "+ Song A"}))
	m.Update(progressUpdateMsg(tasks.ProgressUpdate{Phase: tasks.Removed, Step: 1, Total: 1, Message: "- Old Song"}))
	view := m.View()
	if !strings.Contains(view, "+ Song A") || !strings.Contains(view, "- Old Song") {
		t.Errorf("unexpected sync view: %s", view)
	}

	result := &tasks.Result{State: models.RunDone, Added: 1, Removed: 1}
	_, cmd := m.Update(runCompleteMsg(result, nil))
	if cmd != nil {
		t.Error("expected no further command after completion")
	}
	if m.view != ResultView || !strings.Contains(m.View(), "Sync complete") {
		t.Errorf("unexpected result view: %s", m.View())
	}

	got, err := m.Result()
	if err != nil || got != result {
		t.Errorf("Result() = %v, %v", got, err)
	}
}

func TestModelConfirm(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
		want bool
	}{
		{"yes", keyPress("y"), true},
		{"enter", tea.KeyMsg{Type: tea.KeyEnter}, true},
		{"no", keyPress("n"), false},
		{"quit", keyPress("q"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel(context.Background(), nil)
			answered := make(chan bool, 1)
			go func() {
				ok, _ := m.confirm(context.Background(), testSource())
				answered <- ok
			}()

			m.Update(<-m.events)
			m.Update(tt.key)

			if got := <-answered; got != tt.want {
				t.Errorf("confirm = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("cancelled context", func(t *testing.T) {
		m := NewModel(context.Background(), nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := m.confirm(ctx, testSource()); err == nil {
			t.Error("expected context error")
		}
	})
}

func TestModelRun(t *testing.T) {
	run := func(ctx context.Context, confirm tasks.ConfirmFunc, progress chan<- tasks.ProgressUpdate) (*tasks.Result, error) {
		ok, err := confirm(ctx, testSource())
		if err != nil || !ok {
			return &tasks.Result{State: models.RunCancelled}, err
		}
		progress <- tasks.ProgressUpdate{Phase: tasks.Added, Step: 1, Total: 1, Message: "+ Song A"}
		return &tasks.Result{State: models.RunDone, Added: 1}, nil
	}

	m := NewModel(context.Background(), run)
	go m.start()()

	m.Update(<-m.events)
	if m.view != ConfirmView {
		t.Fatalf("view = %v, want ConfirmView", m.view)
	}
	m.Update(keyPress("y"))

	for m.view != ResultView {
		m.Update(<-m.events)
	}

	result, err := m.Result()
	if err != nil || result.Added != 1 {
		t.Errorf("Result() = %+v, %v", result, err)
	}
}

func TestModelInterrupted(t *testing.T) {
	m := NewModel(context.Background(), nil)
	if _, err := m.Result(); !errors.Is(err, context.Canceled) {
		t.Errorf("Result() error = %v, want context.Canceled", err)
	}
}

func TestRenderResult(t *testing.T) {
	tests := []struct {
		name   string
		result *tasks.Result
		err    error
		want   string
	}{
		{"done", &tasks.Result{State: models.RunDone, Added: 3, Adopted: 1}, nil, "3 added (1 already on target)"},
		{"halted", &tasks.Result{State: models.RunQuotaHalted, Identity: "primary", Added: 2}, nil, "Quota exhausted for primary"},
		{"cancelled", &tasks.Result{State: models.RunCancelled}, nil, "Sync cancelled"},
		{"failed", nil, shared.ErrNoMatch, "Sync failed: no matching video"},
		{"missing", nil, nil, "No result available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderResult(tt.result, tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("RenderResult() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestFormatUpdate(t *testing.T) {
	for _, phase := range []tasks.Phase{tasks.Added, tasks.Removed, tasks.Halted, tasks.Done, tasks.Compare} {
		u := tasks.ProgressUpdate{Phase: phase, Message: "message " + phase.String()}
		if got := FormatUpdate(u); !strings.Contains(got, u.Message) {
			t.Errorf("FormatUpdate(%s) = %q", phase, got)
		}
	}
}

func TestConfirmModel(t *testing.T) {
	m := newConfirmModel(testSource())
	if view := m.View(); !strings.Contains(view, "Sync 'Road Trip' by Alice?") || !strings.Contains(view, "2 tracks") {
		t.Errorf("unexpected view: %s", view)
	}

	_, cmd := m.Update(keyPress("y"))
	if cmd == nil || !m.answer || !m.done {
		t.Errorf("expected confirmation, got answer=%v done=%v", m.answer, m.done)
	}

	m = newConfirmModel(testSource())
	m.Update(keyPress("x"))
	if m.done {
		t.Error("unrelated key should not answer")
	}
	m.Update(keyPress("n"))
	if m.answer || !m.done {
		t.Error("expected rejection")
	}
}
