package playback

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/ytmirror/internal/shared"
)

// scriptedSession replays snapshots and cancels once they run out; an empty id is an error.
type scriptedSession struct {
	recordingSession
	script []string
	cancel context.CancelFunc
}

func (s *scriptedSession) Snapshot(ctx context.Context) (*Snapshot, error) {
	if len(s.script) == 0 {
		s.cancel()
		return nil, ctx.Err()
	}

	id := s.script[0]
	s.script = s.script[1:]
	if id == "" {
		return nil, errors.New("lounge unavailable")
	}
	return &Snapshot{NowPlaying: &NowPlaying{VideoID: id}}, nil
}

func TestListener(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &scriptedSession{script: []string{"a", "a", "", "b", "b", "c"}, cancel: cancel}

	var changes [][2]string
	observer := func(prev, cur *Snapshot) {
		changes = append(changes, [2]string{prev.VideoID(), cur.VideoID()})
	}

	l := NewListener(s, time.Millisecond, observer, shared.NewLogger(io.Discard))
	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := [][2]string{{"a", "b"}, {"b", "c"}}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %v, want %v", i, changes[i], want[i])
		}
	}
}

func TestListenerDefaults(t *testing.T) {
	l := NewListener(&recordingSession{}, 0, nil, nil)
	if l.interval != 5*time.Second {
		t.Errorf("interval = %v, want 5s", l.interval)
	}
}
