package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/ytmirror/internal/models"
	"github.com/desertthunder/ytmirror/internal/shared"
	"github.com/desertthunder/ytmirror/internal/tasks"
	"github.com/desertthunder/ytmirror/internal/ui"
	"github.com/urfave/cli/v3"
)

// SyncRun mirrors a playlist, printing progress lines or driving the terminal UI with --tui.
//
// A quota-halted run is not an error: running the command again resumes with the next identity.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("playlist")
	if ref == "" {
		return fmt.Errorf("%w: playlist", shared.ErrMissingArgument)
	}
	skipConfirm := cmd.Bool("yes")

	run := func(ctx context.Context, confirm tasks.ConfirmFunc, progress chan<- tasks.ProgressUpdate) (*tasks.Result, error) {
		if skipConfirm {
			confirm = nil
		}
		rec, err := r.reconciler(ctx, confirm)
		if err != nil {
			return nil, err
		}
		return rec.Run(ctx, ref, progress)
	}

	var (
		result *tasks.Result
		err    error
	)
	if cmd.Bool("tui") {
		result, err = ui.RunSync(ctx, run)
	} else {
		result, err = r.runPlain(ctx, run, ui.Confirm())
	}
	if err != nil {
		return err
	}

	r.writePlainln("%s", ui.RenderResult(result, nil))
	return nil
}

// runPlain prints each progress update on its own line while the run proceeds.
func (r *Runner) runPlain(ctx context.Context, run ui.RunFunc, confirm tasks.ConfirmFunc) (*tasks.Result, error) {
	progress := make(chan tasks.ProgressUpdate)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for u := range progress {
			r.writePlain("%s\n", ui.FormatUpdate(u))
		}
	}()

	result, err := run(ctx, confirm, progress)
	close(progress)
	<-done
	return result, err
}

type recordView struct {
	SourceID string `json:"source_id"`
	Artist   string `json:"artist"`
	Title    string `json:"title"`
	VideoID  string `json:"video_id,omitempty"`
}

type planView struct {
	Identity   string       `json:"identity"`
	Mirror     string       `json:"mirror"`
	Source     string       `json:"source"`
	Target     string       `json:"target"`
	PlaylistID string       `json:"playlist_id,omitempty"`
	Remove     []recordView `json:"remove"`
	Add        []recordView `json:"add"`
}

func newRecordViews(records []models.TrackRecord) []recordView {
	views := make([]recordView, 0, len(records))
	for _, rec := range records {
		views = append(views, recordView{SourceID: rec.SourceID, Artist: rec.Artist, Title: rec.Title, VideoID: rec.VideoID})
	}
	return views
}

// SyncDiff prints the removals and additions a run would apply.
func (r *Runner) SyncDiff(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("playlist")
	if ref == "" {
		return fmt.Errorf("%w: playlist", shared.ErrMissingArgument)
	}

	rec, err := r.reconciler(ctx, nil)
	if err != nil {
		return err
	}

	plan, err := rec.Plan(ctx, ref)
	if err != nil {
		return err
	}

	view := planView{
		Identity:   plan.Identity,
		Mirror:     plan.Key.String(),
		Source:     plan.Source.Title,
		Target:     plan.Source.TargetTitle(),
		PlaylistID: plan.PlaylistID,
		Remove:     newRecordViews(plan.ToRemove),
		Add:        newRecordViews(plan.ToAdd),
	}
	if cmd.Bool("json") {
		return r.writeJSON(view, true)
	}

	r.writePlainHeader(view.Target)
	r.writePlain("Mirror:   %s\n", view.Mirror)
	if view.PlaylistID == "" {
		r.writePlain("Playlist: (will be created)\n")
	} else {
		r.writePlain("Playlist: %s\n", view.PlaylistID)
	}
	r.writePlain("Identity: %s\n\n", view.Identity)

	for _, rec := range plan.ToRemove {
		line := tasks.ProgressUpdate{Phase: tasks.Removed, Message: "- " + rec.Label()}
		r.writePlain("%s\n", ui.FormatUpdate(line))
	}
	for _, rec := range plan.ToAdd {
		line := tasks.ProgressUpdate{Phase: tasks.Added, Message: "+ " + rec.Label()}
		r.writePlain("%s\n", ui.FormatUpdate(line))
	}

	r.writePlainln("%d to remove, %d to add", len(plan.ToRemove), len(plan.ToAdd))
	return nil
}

type runView struct {
	ID         string     `json:"id"`
	Mirror     string     `json:"mirror"`
	Identity   string     `json:"identity"`
	State      string     `json:"state"`
	Added      int        `json:"added"`
	Removed    int        `json:"removed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// SyncStatus lists the most recent sync runs.
func (r *Runner) SyncStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	runs, err := r.runs.Recent(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]runView, 0, len(runs))
		for _, run := range runs {
			views = append(views, runView{
				ID: run.ID, Mirror: run.Mirror, Identity: run.Identity, State: string(run.State),
				Added: run.Added, Removed: run.Removed, Error: run.Error,
				StartedAt: run.StartedAt, FinishedAt: run.FinishedAt,
			})
		}
		return r.writeJSON(views, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No sync runs recorded\n")
	}

	r.writePlain("Found %d runs:\n\n", len(runs))
	for _, run := range runs {
		r.writePlain("%s  %-12s +%d -%d  %s\n", run.StartedAt.Local().Format(time.DateTime), run.State, run.Added, run.Removed, run.Mirror)
		r.writePlain("   Identity: %s\n", run.Identity)
		if run.Error != "" {
			r.writePlain("   Error: %s\n", run.Error)
		}
	}
	return nil
}
