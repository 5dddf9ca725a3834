package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/ytmirror/internal/formatter"
	"github.com/desertthunder/ytmirror/internal/models"
	"github.com/desertthunder/ytmirror/internal/services"
	"github.com/desertthunder/ytmirror/internal/shared"
	"github.com/urfave/cli/v3"
)

type mirrorView struct {
	Key              string    `json:"key"`
	SourceTitle      string    `json:"source_title"`
	SourceOwner      string    `json:"source_owner"`
	TargetOwner      string    `json:"target_owner"`
	TargetPlaylistID string    `json:"target_playlist_id"`
	Tracks           int       `json:"tracks"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MirrorList prints every known mirror.
func (r *Runner) MirrorList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	mirrors, err := r.mirrors.Keys(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]mirrorView, 0, len(mirrors))
		for _, m := range mirrors {
			views = append(views, mirrorView{
				Key: m.Key.String(), SourceTitle: m.SourceTitle, SourceOwner: m.SourceOwner,
				TargetOwner: m.TargetOwner, TargetPlaylistID: m.TargetPlaylistID,
				Tracks: m.TrackCount, UpdatedAt: m.UpdatedAt,
			})
		}
		return r.writeJSON(views, true)
	}

	if len(mirrors) == 0 {
		return r.writePlain("No mirrors yet\n")
	}

	r.writePlain("Found %d mirrors:\n\n", len(mirrors))
	for i, m := range mirrors {
		title := m.SourceTitle
		if title == "" {
			title = m.Key.SourcePlaylist
		}
		r.writePlain("%d. %s\n", i+1, title)
		r.writePlain("   Key: %s\n", m.Key)
		if m.SourceOwner != "" || m.TargetOwner != "" {
			r.writePlain("   Owners: %s → %s\n", m.SourceOwner, m.TargetOwner)
		}
		if m.TargetPlaylistID != "" {
			r.writePlain("   Playlist: %s\n", m.TargetPlaylistID)
		}
		r.writePlain("   Tracks: %d\n", m.TrackCount)
	}
	return nil
}

// MirrorExport writes the records of one mirror as CSV, markdown or text.
func (r *Runner) MirrorExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if err := r.open(ctx); err != nil {
		return err
	}

	mirror, err := r.findMirror(ctx, cmd.StringArg("mirror"))
	if err != nil {
		return err
	}

	records, err := r.mirrors.Peek(ctx, mirror.Key)
	if err != nil {
		return err
	}
	export := &formatter.MirrorExport{Mirror: *mirror, Records: records}

	output := cmd.String("output")
	if output == "-" {
		data, err := formatter.Export(export, format)
		if err != nil {
			return err
		}
		if _, err := r.output.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	path, err := formatter.WriteExport(export, format, output)
	if err != nil {
		return err
	}

	r.logger.Infof("mirror exported to %v with %v records", path, len(records))
	r.writePlain("✓ Mirror exported to %s\n", path)
	r.writePlain("  Mirror: %s\n", mirror.Key)
	r.writePlain("  Records: %d\n", len(records))
	return nil
}

// MirrorImport appends the records of a CSV file to a mirror.
//
// Records already mirrored are skipped. With --prune-duplicates the target items of repeated
// source ids are deleted from the target playlist, leaving the first occurrence.
func (r *Runner) MirrorImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}

	key, err := parseMirrorKey(cmd.String("key"))
	if err != nil {
		return err
	}

	records, err := formatter.ReadCSVFile(path)
	if err != nil {
		return err
	}
	unique, dups := formatter.Duplicates(records)

	if err := r.open(ctx); err != nil {
		return err
	}

	ids := make([]string, 0, len(unique))
	for _, rec := range unique {
		ids = append(ids, rec.SourceID)
	}
	missing, err := r.mirrors.Missing(ctx, key, ids)
	if err != nil {
		return err
	}
	wanted := make(map[string]bool, len(missing))
	for _, id := range missing {
		wanted[id] = true
	}

	var imported int
	skipped := len(unique) - len(missing)
	for _, rec := range unique {
		if !wanted[rec.SourceID] {
			continue
		}
		err := r.mirrors.Append(ctx, key, rec)
		switch {
		case err == nil:
			imported++
		case errors.Is(err, shared.ErrDuplicateIdentity):
			skipped++
		default:
			return fmt.Errorf("failed to import %s: %w", rec.SourceID, err)
		}
	}

	r.writePlain("✓ Imported %d records into %s\n", imported, key)
	if skipped > 0 {
		r.writePlain("  %d already mirrored\n", skipped)
	}
	if len(dups) == 0 {
		return nil
	}

	if !cmd.Bool("prune-duplicates") {
		r.writePlain("⚠ %d duplicated tracks ignored; use --prune-duplicates to delete them from the target\n", len(dups))
		return nil
	}
	return r.pruneDuplicates(ctx, key, dups)
}

// pruneDuplicates deletes the target items of duplicated records, stopping at quota exhaustion.
// A duplicate is only deleted while its first occurrence is still mirrored under key.
func (r *Runner) pruneDuplicates(ctx context.Context, key models.MirrorKey, dups []models.TrackRecord) error {
	platform, identity, err := r.platform(ctx)
	if err != nil {
		return err
	}

	var deleted int
	for _, rec := range dups {
		if !rec.Resolved() {
			continue
		}

		kept, err := r.mirrors.ContainsAny(ctx, key, []string{rec.SourceID})
		if err != nil {
			return err
		}
		if !kept {
			r.logger.Warn("keeping duplicate, first occurrence is not mirrored", "source", rec.SourceID)
			continue
		}

		err = platform.DeletePlaylistItem(ctx, rec.ResolvedItemID)
		switch {
		case err == nil:
			deleted++
			r.writePlain("- %s\n", rec.Label())
		case errors.Is(err, shared.ErrItemNotFound):
			r.logger.Warn("duplicate already gone from target", "item", rec.ResolvedItemID)
		case r.exhausted(ctx, identity, err):
			r.writePlain("⚠ Quota exhausted for %s after %d deletions; run again to continue\n", identity, deleted)
			return nil
		default:
			return fmt.Errorf("failed to delete %s: %w", rec.ResolvedItemID, err)
		}
	}

	r.writePlain("✓ Deleted %d duplicated items\n", deleted)
	return nil
}

// findMirror resolves a full mirror key or a source playlist reference to a single mirror.
func (r *Runner) findMirror(ctx context.Context, ref string) (*models.Mirror, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: mirror", shared.ErrMissingArgument)
	}

	if strings.Count(ref, "/") == 2 && !strings.Contains(ref, ":") {
		key, err := parseMirrorKey(ref)
		if err != nil {
			return nil, err
		}
		return r.mirrors.Get(ctx, key)
	}

	playlistID, err := services.ParsePlaylistRef(ref)
	if err != nil {
		return nil, err
	}

	mirrors, err := r.mirrors.Keys(ctx)
	if err != nil {
		return nil, err
	}

	var found []models.Mirror
	for _, m := range mirrors {
		if m.Key.SourcePlaylist == playlistID {
			found = append(found, m)
		}
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: no mirror for playlist %s", shared.ErrNotFound, playlistID)
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("%w: playlist %s is mirrored into %d accounts, pass the full key", shared.ErrInvalidArgument, playlistID, len(found))
	}
}

// parseMirrorKey parses the "source account/source playlist/target account" form printed by mirror list.
func parseMirrorKey(s string) (models.MirrorKey, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return models.MirrorKey{}, fmt.Errorf("%w: mirror key %q must have three parts", shared.ErrInvalidArgument, s)
	}

	key := models.MirrorKey{SourceAccount: parts[0], SourcePlaylist: parts[1], TargetAccount: parts[2]}
	if err := key.Validate(); err != nil {
		return models.MirrorKey{}, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return key, nil
}
