package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytmirror/internal/models"
	"github.com/desertthunder/ytmirror/internal/shared"
)

// MirrorRepository persists the ordered track records of each mirror.
//
// Records are kept in append order via an autoincrement position column.
// A source id appears at most once per mirror, enforced by UNIQUE(mirror_id, source_id).
type MirrorRepository struct {
	db *sql.DB
}

// NewMirrorRepository creates a new MirrorRepository with the given database connection
func NewMirrorRepository(db *sql.DB) *MirrorRepository {
	return &MirrorRepository{db: db}
}

// Load returns the records of the mirror identified by key, in append order.
//
// A mirror seen for the first time is created empty.
func (r *MirrorRepository) Load(ctx context.Context, key models.MirrorKey) ([]models.TrackRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	mirrorID, err := r.ensure(ctx, key)
	if err != nil {
		return nil, err
	}
	return r.records(ctx, mirrorID)
}

// Peek returns the records of a mirror without creating it; a missing mirror yields no records.
func (r *MirrorRepository) Peek(ctx context.Context, key models.MirrorKey) ([]models.TrackRecord, error) {
	mirrorID, err := r.lookup(ctx, r.db, key)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.records(ctx, mirrorID)
}

// Append adds one record to the end of the mirror and commits.
//
// Returns [shared.ErrDuplicateIdentity] when the source id is already mirrored.
func (r *MirrorRepository) Append(ctx context.Context, key models.MirrorKey, rec models.TrackRecord) error {
	if rec.SourceID == "" {
		return fmt.Errorf("%w: record has no source id", shared.ErrInvalidInput)
	}

	mirrorID, err := r.ensure(ctx, key)
	if err != nil {
		return err
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM mirror_tracks WHERE mirror_id = ? AND source_id = ?)",
			mirrorID, rec.SourceID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check record: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: %s in %s", shared.ErrDuplicateIdentity, rec.SourceID, key)
		}

		query := `
			INSERT INTO mirror_tracks (mirror_id, source_id, title, artist, added_at, resolved_title, resolved_item_id, video_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err = tx.ExecContext(ctx, query,
			mirrorID,
			rec.SourceID,
			rec.Title,
			rec.Artist,
			nullTime(&rec.AddedAt),
			rec.ResolvedTitle,
			rec.ResolvedItemID,
			rec.VideoID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}

		return touch(ctx, tx, mirrorID)
	})
}

// Remove deletes the record with the given source id and commits.
//
// Returns [shared.ErrNotFound] when no such record exists.
func (r *MirrorRepository) Remove(ctx context.Context, key models.MirrorKey, sourceID string) error {
	mirrorID, err := r.lookup(ctx, r.db, key)
	if err != nil {
		return fmt.Errorf("%w: %s in %s", shared.ErrNotFound, sourceID, key)
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"DELETE FROM mirror_tracks WHERE mirror_id = ? AND source_id = ?",
			mirrorID, sourceID,
		)
		if err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: %s in %s", shared.ErrNotFound, sourceID, key)
		}

		return touch(ctx, tx, mirrorID)
	})
}

// ContainsAny reports whether at least one of ids is mirrored under key.
func (r *MirrorRepository) ContainsAny(ctx context.Context, key models.MirrorKey, ids []string) (bool, error) {
	present, err := r.sourceIDs(ctx, key)
	if err != nil {
		return false, err
	}

	for _, id := range ids {
		if present[id] {
			return true, nil
		}
	}
	return false, nil
}

// Missing returns the ids that are not mirrored under key, preserving input order.
func (r *MirrorRepository) Missing(ctx context.Context, key models.MirrorKey, ids []string) ([]string, error) {
	present, err := r.sourceIDs(ctx, key)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, id := range ids {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Get returns the mirror header for key.
func (r *MirrorRepository) Get(ctx context.Context, key models.MirrorKey) (*models.Mirror, error) {
	query := mirrorSelect + " WHERE m.source_account = ? AND m.source_playlist = ? AND m.target_account = ?"
	return r.scanOne(r.db.QueryRowContext(ctx, query, key.SourceAccount, key.SourcePlaylist, key.TargetAccount))
}

// Keys lists every known mirror with its record count, most recently updated first.
func (r *MirrorRepository) Keys(ctx context.Context) ([]models.Mirror, error) {
	rows, err := r.db.QueryContext(ctx, mirrorSelect+" ORDER BY m.updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query mirrors: %w", err)
	}
	defer rows.Close()

	var mirrors []models.Mirror
	for rows.Next() {
		m, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		mirrors = append(mirrors, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return mirrors, nil
}

// SetTargetPlaylist records the target playlist id and display metadata of a mirror.
func (r *MirrorRepository) SetTargetPlaylist(ctx context.Context, key models.MirrorKey, playlistID string, meta models.MirrorMeta) error {
	mirrorID, err := r.ensure(ctx, key)
	if err != nil {
		return err
	}

	query := `
		UPDATE mirrors
		SET target_playlist_id = ?, source_title = ?, source_owner = ?, target_owner = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, playlistID, meta.SourceTitle, meta.SourceOwner, meta.TargetOwner, time.Now().UTC(), mirrorID); err != nil {
		return fmt.Errorf("failed to update mirror: %w", err)
	}
	return nil
}

// ensure returns the id of the mirror for key, creating the row if needed.
func (r *MirrorRepository) ensure(ctx context.Context, key models.MirrorKey) (string, error) {
	var mirrorID string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		id, err := r.lookup(ctx, tx, key)
		if err == nil {
			mirrorID = id
			return nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		mirrorID = shared.GenerateID()
		now := time.Now().UTC()
		query := `
			INSERT INTO mirrors (id, source_account, source_playlist, target_account, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		if _, err := tx.ExecContext(ctx, query, mirrorID, key.SourceAccount, key.SourcePlaylist, key.TargetAccount, now, now); err != nil {
			return fmt.Errorf("failed to create mirror: %w", err)
		}
		return nil
	})
	return mirrorID, err
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *MirrorRepository) lookup(ctx context.Context, q queryRower, key models.MirrorKey) (string, error) {
	var id string
	err := q.QueryRowContext(ctx,
		"SELECT id FROM mirrors WHERE source_account = ? AND source_playlist = ? AND target_account = ?",
		key.SourceAccount, key.SourcePlaylist, key.TargetAccount,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: mirror %s", shared.ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up mirror: %w", err)
	}
	return id, nil
}

func (r *MirrorRepository) records(ctx context.Context, mirrorID string) ([]models.TrackRecord, error) {
	query := `
		SELECT source_id, title, artist, added_at, resolved_title, resolved_item_id, video_id
		FROM mirror_tracks
		WHERE mirror_id = ?
		ORDER BY position ASC
	`
	rows, err := r.db.QueryContext(ctx, query, mirrorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []models.TrackRecord{}
	for rows.Next() {
		var (
			rec     models.TrackRecord
			addedAt sql.NullTime
		)
		if err := rows.Scan(&rec.SourceID, &rec.Title, &rec.Artist, &addedAt, &rec.ResolvedTitle, &rec.ResolvedItemID, &rec.VideoID); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if addedAt.Valid {
			rec.AddedAt = addedAt.Time
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

func (r *MirrorRepository) sourceIDs(ctx context.Context, key models.MirrorKey) (map[string]bool, error) {
	records, err := r.Peek(ctx, key)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]bool, len(records))
	for _, rec := range records {
		ids[rec.SourceID] = true
	}
	return ids, nil
}

func touch(ctx context.Context, tx *sql.Tx, mirrorID string) error {
	if _, err := tx.ExecContext(ctx, "UPDATE mirrors SET updated_at = ? WHERE id = ?", time.Now().UTC(), mirrorID); err != nil {
		return fmt.Errorf("failed to touch mirror: %w", err)
	}
	return nil
}

const mirrorSelect = `
	SELECT m.id, m.source_account, m.source_playlist, m.target_account, m.source_title, m.source_owner,
		m.target_owner, m.target_playlist_id,
		(SELECT COUNT(*) FROM mirror_tracks t WHERE t.mirror_id = m.id),
		m.created_at, m.updated_at
	FROM mirrors m
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMirror(s rowScanner) (*models.Mirror, error) {
	var m models.Mirror
	err := s.Scan(
		&m.ID,
		&m.Key.SourceAccount,
		&m.Key.SourcePlaylist,
		&m.Key.TargetAccount,
		&m.SourceTitle,
		&m.SourceOwner,
		&m.TargetOwner,
		&m.TargetPlaylistID,
		&m.TrackCount,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// scanOne scans a single row into a [models.Mirror]
func (r *MirrorRepository) scanOne(row *sql.Row) (*models.Mirror, error) {
	m, err := scanMirror(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: mirror", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan mirror: %w", err)
	}
	return m, nil
}

// scanRow scans a row from [sql.Rows] into a [models.Mirror]
func (r *MirrorRepository) scanRow(rows *sql.Rows) (*models.Mirror, error) {
	m, err := scanMirror(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan mirror: %w", err)
	}
	return m, nil
}
