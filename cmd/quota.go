package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/ytmirror/internal/shared"
	"github.com/urfave/cli/v3"
)

type identityView struct {
	Name        string     `json:"name"`
	Position    int        `json:"position"`
	Available   bool       `json:"available"`
	ExhaustedAt *time.Time `json:"exhausted_at,omitempty"`
	AvailableAt *time.Time `json:"available_at,omitempty"`
}

// QuotaList prints every identity in the order they are tried.
func (r *Runner) QuotaList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	identities, err := r.quota.List(ctx)
	if err != nil {
		return err
	}

	now := r.now()
	window := r.quota.Window()
	views := make([]identityView, 0, len(identities))
	for _, id := range identities {
		v := identityView{Name: id.Name, Position: id.Position, Available: id.Available(now, window), ExhaustedAt: id.ExhaustedAt}
		if id.ExhaustedAt != nil {
			at := id.AvailableAt(window)
			v.AvailableAt = &at
		}
		views = append(views, v)
	}

	if cmd.Bool("json") {
		return r.writeJSON(views, true)
	}

	if len(views) == 0 {
		return r.writePlain("No identities registered; add youtube.identities to %s\n", r.configPath)
	}

	for _, v := range views {
		switch {
		case v.ExhaustedAt == nil:
			r.writePlain("%d. %s  available\n", v.Position+1, v.Name)
		case v.Available:
			r.writePlain("%d. %s  available (exhausted %s)\n", v.Position+1, v.Name, v.ExhaustedAt.Local().Format(time.DateTime))
		default:
			r.writePlain("%d. %s  exhausted until %s\n", v.Position+1, v.Name, v.AvailableAt.Local().Format(time.DateTime))
		}
	}
	return nil
}

// QuotaReset clears the exhaustion time of one identity, or of all of them without an argument.
func (r *Runner) QuotaReset(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	name := cmd.StringArg("identity")
	if err := r.quota.Reset(ctx, name); err != nil {
		return err
	}

	if name == "" {
		return r.writePlain("✓ All identities marked available\n")
	}
	return r.writePlain("✓ %s marked available\n", name)
}

// QuotaMark records that an identity ran out of quota, at --at or now.
func (r *Runner) QuotaMark(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("identity")
	if name == "" {
		return fmt.Errorf("%w: identity", shared.ErrMissingArgument)
	}

	at := r.now()
	if s := cmd.String("at"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("%w: --at %q is not RFC3339", shared.ErrInvalidFlag, s)
		}
		at = parsed
	}

	if err := r.open(ctx); err != nil {
		return err
	}
	if err := r.quota.MarkExhausted(ctx, name, at); err != nil {
		return err
	}
	return r.writePlain("✓ %s marked exhausted\n", name)
}
