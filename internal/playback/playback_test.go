package playback

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/desertthunder/ytmirror/internal/shared"
)

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("vid%02d", i)
	}
	return out
}

func TestShuffle(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		max     int
		wantLen int
	}{
		{"fewer than max", 10, 50, 10},
		{"capped at max", 80, 50, 50},
		{"custom max", 80, 20, 20},
		{"zero max uses default", 80, 0, MaxQueue},
		{"max above default is capped", 80, 100, MaxQueue},
		{"empty", 0, 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := ids(tt.n)
			orig := slices.Clone(in)

			got := Shuffle(in, tt.max, rand.New(rand.NewPCG(1, 2)))
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			if !slices.Equal(in, orig) {
				t.Error("input was modified")
			}

			seen := make(map[string]bool)
			for _, id := range got {
				if seen[id] || !slices.Contains(orig, id) {
					t.Errorf("unexpected or repeated id %s", id)
				}
				seen[id] = true
			}
		})
	}

	t.Run("deterministic with a seeded source", func(t *testing.T) {
		a := Shuffle(ids(30), 30, rand.New(rand.NewPCG(7, 7)))
		b := Shuffle(ids(30), 30, rand.New(rand.NewPCG(7, 7)))
		if !slices.Equal(a, b) {
			t.Error("expected equal permutations for equal seeds")
		}
	})

	t.Run("global source", func(t *testing.T) {
		if got := Shuffle(ids(5), 3, nil); len(got) != 3 {
			t.Errorf("len = %d, want 3", len(got))
		}
	})
}

type recordingSession struct {
	played []string
	queued []string
	failOn string
}

func (s *recordingSession) PlayVideo(ctx context.Context, videoID string) error {
	if videoID == s.failOn {
		return errors.New("boom")
	}
	s.played = append(s.played, videoID)
	return nil
}

func (s *recordingSession) AddToQueue(ctx context.Context, videoID string) error {
	if videoID == s.failOn {
		return errors.New("boom")
	}
	s.queued = append(s.queued, videoID)
	return nil
}

func (s *recordingSession) Snapshot(ctx context.Context) (*Snapshot, error) {
	return &Snapshot{}, nil
}

func TestEnqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("plays first and queues the rest", func(t *testing.T) {
		s := &recordingSession{}
		var progress []int

		n, err := Enqueue(ctx, s, []string{"a", "b", "c"}, func(n int, _ string) { progress = append(progress, n) })
		if err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		if n != 3 {
			t.Errorf("n = %d, want 3", n)
		}
		if !slices.Equal(s.played, []string{"a"}) || !slices.Equal(s.queued, []string{"b", "c"}) {
			t.Errorf("played %v, queued %v", s.played, s.queued)
		}
		if !slices.Equal(progress, []int{1, 2, 3}) {
			t.Errorf("progress = %v", progress)
		}
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		s := &recordingSession{failOn: "b"}

		n, err := Enqueue(ctx, s, []string{"a", "b", "c"}, nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if n != 1 || len(s.queued) != 0 {
			t.Errorf("n = %d, queued = %v", n, s.queued)
		}
	})

	t.Run("empty queue", func(t *testing.T) {
		_, err := Enqueue(ctx, &recordingSession{}, nil, nil)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("Enqueue() error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		n, err := Enqueue(cctx, &recordingSession{}, []string{"a"}, nil)
		if !errors.Is(err, context.Canceled) || n != 0 {
			t.Errorf("Enqueue() = %d, %v", n, err)
		}
	})
}
