package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/desertthunder/ytmirror/internal/playback"
	"github.com/desertthunder/ytmirror/internal/shared"
	"github.com/urfave/cli/v3"
)

// CastShuffle plays a shuffled selection of a YouTube playlist on the configured screen.
func (r *Runner) CastShuffle(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.StringArg("playlist")
	if playlistID == "" {
		return fmt.Errorf("%w: playlist", shared.ErrMissingArgument)
	}

	limit := cmd.Int("max")
	if limit <= 0 {
		limit = r.config.Cast.MaxQueue
	}

	var rnd *rand.Rand
	if seed := cmd.Int("seed"); seed != 0 {
		rnd = rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	}

	session, err := r.castSession()
	if err != nil {
		return err
	}
	defer r.closeSession()

	platform, identity, err := r.platform(ctx)
	if err != nil {
		return err
	}

	items, err := platform.ListPlaylistItems(ctx, playlistID)
	if err != nil {
		r.exhausted(ctx, identity, err)
		return fmt.Errorf("failed to list playlist %s: %w", playlistID, err)
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		// deleted and private videos come back without an id
		if item.VideoID == "" {
			continue
		}
		ids = append(ids, item.VideoID)
	}

	queue := playback.Shuffle(ids, limit, rnd)
	r.logger.Info("casting playlist", "playlist", playlistID, "videos", len(ids), "queued", len(queue))

	n, err := playback.Enqueue(ctx, session, queue, func(n int, videoID string) {
		if n == 1 {
			r.writePlain("▶ %s\n", videoID)
			return
		}
		r.writePlain("+ %s\n", videoID)
	})
	if err != nil {
		return err
	}

	r.writePlainln("✓ Queued %d of %d videos", n, len(ids))
	return nil
}

// CastWatch prints a snapshot every time the screen starts a different video, until interrupted.
func (r *Runner) CastWatch(ctx context.Context, cmd *cli.Command) error {
	session, err := r.castSession()
	if err != nil {
		return err
	}
	defer r.closeSession()

	interval := cmd.Duration("interval")
	if interval <= 0 {
		interval = time.Duration(r.config.Cast.PollSeconds) * time.Second
	}
	asJSON := cmd.Bool("json")

	observer := func(prev, cur *playback.Snapshot) {
		if asJSON {
			r.writeJSON(cur, false)
			return
		}

		np := cur.NowPlaying
		r.writePlain("▶ %s  state=%s  t=%ss", np.VideoID, np.State, np.CurrentTime)
		if prev != nil && prev.VideoID() != "" {
			r.writePlain("  (was %s)", prev.VideoID())
		}
		r.writePlain("\n")
	}

	r.writePlain("→ Watching %s (Ctrl+C to stop)\n", r.config.Cast.DeviceName)
	return playback.NewListener(session, interval, observer, r.logger).Run(ctx)
}

func (r *Runner) closeSession() {
	if c, ok := r.session.(interface{ Close() }); ok {
		c.Close()
	}
}
