package playback

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/desertthunder/ytmirror/internal/shared"
)

// MaxQueue is the largest queue a screen accepts in one shuffle.
const MaxQueue = 50

// Session controls playback on one screen.
type Session interface {
	// PlayVideo replaces the screen's queue with videoID and starts playing it.
	PlayVideo(ctx context.Context, videoID string) error
	// AddToQueue appends videoID to the screen's queue.
	AddToQueue(ctx context.Context, videoID string) error
	// Snapshot returns the current state of the session.
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// NowPlaying is the video currently loaded on the screen.
type NowPlaying struct {
	VideoID     string `json:"videoId"`
	ListID      string `json:"listId"`
	CurrentTime string `json:"currentTime"`
	State       string `json:"state"`
}

// Event is one message of a lounge channel response.
type Event struct {
	Index int
	Name  string
	Args  []any
}

// Snapshot is the decoded state of a session.
type Snapshot struct {
	NowPlaying *NowPlaying
	Events     []Event
}

// VideoID returns the now-playing video or an empty string.
func (s *Snapshot) VideoID() string {
	if s == nil || s.NowPlaying == nil {
		return ""
	}
	return s.NowPlaying.VideoID
}

// Shuffle returns a random permutation of ids truncated to max entries; max <= 0 or above
// [MaxQueue] is capped at [MaxQueue]. A nil rnd uses the global source.
func Shuffle(ids []string, max int, rnd *rand.Rand) []string {
	if max <= 0 || max > MaxQueue {
		max = MaxQueue
	}

	out := append([]string(nil), ids...)
	swap := func(i, j int) { out[i], out[j] = out[j], out[i] }
	if rnd != nil {
		rnd.Shuffle(len(out), swap)
	} else {
		rand.Shuffle(len(out), swap)
	}

	if len(out) > max {
		out = out[:max]
	}
	return out
}

// Enqueue plays the first video and queues the rest, calling added after each one.
// Returns the number of videos handed to the session.
func Enqueue(ctx context.Context, s Session, ids []string, added func(n int, videoID string)) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no videos to play", shared.ErrInvalidInput)
	}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return i, err
		}

		var err error
		if i == 0 {
			err = s.PlayVideo(ctx, id)
		} else {
			err = s.AddToQueue(ctx, id)
		}
		if err != nil {
			return i, fmt.Errorf("failed to queue %s: %w", id, err)
		}

		if added != nil {
			added(i+1, id)
		}
	}
	return len(ids), nil
}
