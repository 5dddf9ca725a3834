package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/ytmirror/internal/models"
	"github.com/desertthunder/ytmirror/internal/shared"
)

// QuotaRepository is the sqlite-backed quota ledger.
//
// Identities are tried in position order; one is available when it was never marked exhausted
// or when window has elapsed since it was.
type QuotaRepository struct {
	db        *sql.DB
	window    time.Duration
	resetHour int
}

// NewQuotaRepository creates a ledger. A resetHour in 0-23 rounds recorded exhaustion times back
// to the most recent occurrence of that hour; -1 records the exact time.
func NewQuotaRepository(db *sql.DB, window time.Duration, resetHour int) *QuotaRepository {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &QuotaRepository{db: db, window: window, resetHour: resetHour}
}

// Window returns the replenish window of the ledger.
func (r *QuotaRepository) Window() time.Duration { return r.window }

// Register upserts the configured identities in order and drops identities no longer configured.
//
// Exhaustion times of identities that remain are preserved.
func (r *QuotaRepository) Register(ctx context.Context, identities []shared.IdentityConfig) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		names := make([]any, 0, len(identities))
		for i, id := range identities {
			query := `
				INSERT INTO identities (name, position, client_secret_path, token_path)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(name) DO UPDATE SET
					position = excluded.position,
					client_secret_path = excluded.client_secret_path,
					token_path = excluded.token_path
			`
			if _, err := tx.ExecContext(ctx, query, id.Name, i, id.ClientSecretPath, id.TokenPath); err != nil {
				return fmt.Errorf("failed to register identity %s: %w", id.Name, err)
			}
			names = append(names, id.Name)
		}

		query := "DELETE FROM identities"
		if len(names) > 0 {
			query += " WHERE name NOT IN (?" + strings.Repeat(", ?", len(names)-1) + ")"
		}
		if _, err := tx.ExecContext(ctx, query, names...); err != nil {
			return fmt.Errorf("failed to prune identities: %w", err)
		}
		return nil
	})
}

// PickAvailable returns the first identity, by position, whose quota is presumed replenished at now.
//
// Returns [shared.ErrNoAvailableIdentity] when every identity is still exhausted or none is registered.
func (r *QuotaRepository) PickAvailable(ctx context.Context, now time.Time) (models.Identity, error) {
	identities, err := r.List(ctx)
	if err != nil {
		return models.Identity{}, err
	}

	for _, id := range identities {
		if id.Available(now, r.window) {
			return id, nil
		}
	}

	if len(identities) == 0 {
		return models.Identity{}, fmt.Errorf("%w: no identities registered", shared.ErrNoAvailableIdentity)
	}

	next := identities[0].AvailableAt(r.window)
	for _, id := range identities[1:] {
		if at := id.AvailableAt(r.window); at.Before(next) {
			next = at
		}
	}
	return models.Identity{}, fmt.Errorf("%w: next available at %s", shared.ErrNoAvailableIdentity, next.Format(time.RFC3339))
}

// MarkExhausted records that the named identity ran out of quota at the given time.
func (r *QuotaRepository) MarkExhausted(ctx context.Context, name string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE identities SET exhausted_at = ? WHERE name = ?",
		AnchorTime(at, r.resetHour), name,
	)
	if err != nil {
		return fmt.Errorf("failed to mark identity exhausted: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUnknownIdentity, name)
	}
	return nil
}

// Reset clears the exhaustion time of the named identity, or of every identity when name is empty.
func (r *QuotaRepository) Reset(ctx context.Context, name string) error {
	if name == "" {
		if _, err := r.db.ExecContext(ctx, "UPDATE identities SET exhausted_at = NULL"); err != nil {
			return fmt.Errorf("failed to reset identities: %w", err)
		}
		return nil
	}

	result, err := r.db.ExecContext(ctx, "UPDATE identities SET exhausted_at = NULL WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to reset identity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUnknownIdentity, name)
	}
	return nil
}

// List returns all registered identities in position order.
func (r *QuotaRepository) List(ctx context.Context) ([]models.Identity, error) {
	query := `
		SELECT position, name, client_secret_path, token_path, exhausted_at
		FROM identities
		ORDER BY position ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer rows.Close()

	var identities []models.Identity
	for rows.Next() {
		var (
			id          models.Identity
			exhaustedAt sql.NullTime
		)
		if err := rows.Scan(&id.Position, &id.Name, &id.ClientSecretPath, &id.TokenPath, &exhaustedAt); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		id.ExhaustedAt = timePtr(exhaustedAt)
		identities = append(identities, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return identities, nil
}

// AnchorTime rounds at back to the most recent hh:00 in at's location. A negative hour returns at unchanged.
func AnchorTime(at time.Time, hour int) time.Time {
	if hour < 0 || hour > 23 {
		return at
	}

	anchored := time.Date(at.Year(), at.Month(), at.Day(), hour, 0, 0, 0, at.Location())
	if anchored.After(at) {
		anchored = anchored.AddDate(0, 0, -1)
	}
	return anchored
}
