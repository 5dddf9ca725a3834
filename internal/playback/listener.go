package playback

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/ytmirror/internal/shared"
)

// Observer is called with the previous and current snapshot when the now-playing video changes.
type Observer func(prev, cur *Snapshot)

// Listener polls a session and notifies an observer of now-playing changes.
type Listener struct {
	session  Session
	interval time.Duration
	observer Observer
	logger   *log.Logger
}

// NewListener creates a listener polling every interval (5s when non-positive).
func NewListener(s Session, interval time.Duration, observer Observer, logger *log.Logger) *Listener {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Listener{session: s, interval: interval, observer: observer, logger: logger}
}

// Run polls until ctx is done. The first snapshot is the baseline and is not reported.
// Snapshot errors are logged and polling continues; cancellation returns nil.
func (l *Listener) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	var prev *Snapshot
	first := true
	for {
		cur, err := l.session.Snapshot(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			l.logger.Warn("failed to read session state", "error", err)
		case first:
			prev, first = cur, false
		case cur.VideoID() != prev.VideoID():
			if l.observer != nil {
				l.observer(prev, cur)
			}
			prev = cur
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
