package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/desertthunder/ytmirror/internal/models"
	"github.com/desertthunder/ytmirror/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

var testKey = models.MirrorKey{SourceAccount: "owner", SourcePlaylist: "pl1", TargetAccount: "chan"}

func record(id string) models.TrackRecord {
	return models.TrackRecord{
		SourceID:       id,
		Title:          "Title " + id,
		Artist:         "Artist " + id,
		AddedAt:        time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		ResolvedTitle:  "Video " + id,
		ResolvedItemID: "item-" + id,
		VideoID:        "vid-" + id,
	}
}

func sourceIDs(records []models.TrackRecord) []string {
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.SourceID
	}
	return ids
}

func TestMirrorRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Load creates an empty mirror", func(t *testing.T) {
		repo := NewMirrorRepository(setupTestDB(t))

		records, err := repo.Load(ctx, testKey)
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("expected empty mirror, got %d records", len(records))
		}

		mirror, err := repo.Get(ctx, testKey)
		if err != nil {
			t.Fatalf("mirror should exist after load: %v", err)
		}
		if mirror.Key != testKey {
			t.Errorf("expected key %v, got %v", testKey, mirror.Key)
		}
	})

	t.Run("Load rejects incomplete key", func(t *testing.T) {
		repo := NewMirrorRepository(setupTestDB(t))

		_, err := repo.Load(ctx, models.MirrorKey{SourceAccount: "owner"})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Append preserves order and fields", func(t *testing.T) {
		repo := NewMirrorRepository(setupTestDB(t))

		for _, id := range []string{"c", "a", "b"} {
			if err := repo.Append(ctx, testKey, record(id)); err != nil {
				t.Fatalf("failed to append %s: %v", id, err)
			}
		}

		records, err := repo.Load(ctx, testKey)
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}

		got := sourceIDs(records)
		want := []string{"c", "a", "b"}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("expected order %v, got %v", want, got)
		}

		first := records[0]
		if first.ResolvedItemID != "item-c" || first.VideoID != "vid-c" || first.ResolvedTitle != "Video c" {
			t.Errorf("resolution fields not round-tripped: %+v", first)
		}
		if !first.AddedAt.Equal(record("c").AddedAt) {
			t.Errorf("expected added_at %v, got %v", record("c").AddedAt, first.AddedAt)
		}
	})

	t.Run("Append duplicate", func(t *testing.T) {
		repo := NewMirrorRepository(setupTestDB(t))

		if err := repo.Append(ctx, testKey, record("a")); err != nil {
			t.Fatalf("failed to append: %v", err)
		}

		err := repo.Append(ctx, testKey, record("a"))
		if !errors.Is(err, shared.ErrDuplicateIdentity) {
			t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
		}

		records, _ := repo.Load(ctx, testKey)
		if len(records) != 1 {
			t.Errorf("expected 1 record after rejected duplicate, got %d", len(records))
		}
	})

	t.Run("Same source id in different mirrors", func(t *testing.T) {
		repo := NewMirrorRepository(setupTestDB(t))
		other := models.MirrorKey{SourceAccount: "owner", SourcePlaylist: "pl1", TargetAccount: "other-chan"}

		if err := repo.Append(ctx, testKey, record("a")); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
		if err := repo.Append(ctx, other, record("a")); err != nil {
			t.Fatalf("same id under another key should be accepted: %v", err)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		repo := NewMirrorRepository(setupTestDB(t))

		for _, id := range []string{"a", "b", "c"} {
			if err := repo.Append(ctx, testKey, record(id)); err != nil {
				t.Fatalf("failed to append %s: %v", id, err)
			}
		}

		if err := repo.Remove(ctx, testKey, "b"); err != nil {
			t.Fatalf("failed to remove: %v", err)
		}

		records, _ := repo.Load(ctx, testKey)
		if got := fmt.Sprint(sourceIDs(records)); got != "[a c]" {
			t.Errorf("expected [a c], got %s", got)
		}
	})

	t.Run("Remove missing", func(t *testing.T) {
		repo := NewMirrorRepository(setupTestDB(t))

		if err := repo.Remove(ctx, testKey, "a"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown mirror, got %v", err)
		}

		if err := repo.Append(ctx, testKey, record("a")); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
		if err := repo.Remove(ctx, testKey, "zzz"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown record, got %v", err)
		}
	})

	t.Run("ContainsAny and Missing", func(t *testing.T) {
		repo := NewMirrorRepository(setupTestDB(t))

		for _, id := range []string{"a", "b"} {
			if err := repo.Append(ctx, testKey, record(id)); err != nil {
				t.Fatalf("failed to append %s: %v", id, err)
			}
		}

		tc := []struct {
			name     string
			ids      []string
			contains bool
			missing  string
		}{
			{name: "all present", ids: []string{"a", "b"}, contains: true, missing: "[]"},
			{name: "none present", ids: []string{"y", "x"}, contains: false, missing: "[y x]"},
			{name: "mixed", ids: []string{"z", "a", "c"}, contains: true, missing: "[z c]"},
			{name: "empty", ids: nil, contains: false, missing: "[]"},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				contains, err := repo.ContainsAny(ctx, testKey, tt.ids)
				if err != nil {
					t.Fatalf("ContainsAny failed: %v", err)
				}
				if contains != tt.contains {
					t.Errorf("ContainsAny = %v, want %v", contains, tt.contains)
				}

				missing, err := repo.Missing(ctx, testKey, tt.ids)
				if err != nil {
					t.Fatalf("Missing failed: %v", err)
				}
				if got := fmt.Sprint(missing); got != tt.missing {
					t.Errorf("Missing = %s, want %s", got, tt.missing)
				}
			})
		}
	})

	t.Run("Peek does not create", func(t *testing.T) {
		repo := NewMirrorRepository(setupTestDB(t))

		records, err := repo.Peek(ctx, testKey)
		if err != nil {
			t.Fatalf("Peek failed: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("expected no records, got %d", len(records))
		}

		if _, err := repo.Get(ctx, testKey); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected mirror to be absent, got %v", err)
		}
	})

	t.Run("SetTargetPlaylist and Keys", func(t *testing.T) {
		repo := NewMirrorRepository(setupTestDB(t))

		meta := models.MirrorMeta{SourceTitle: "Road Trip", SourceOwner: "Owner", TargetOwner: "Channel"}
		if err := repo.SetTargetPlaylist(ctx, testKey, "PL123", meta); err != nil {
			t.Fatalf("SetTargetPlaylist failed: %v", err)
		}
		if err := repo.Append(ctx, testKey, record("a")); err != nil {
			t.Fatalf("failed to append: %v", err)
		}

		mirrors, err := repo.Keys(ctx)
		if err != nil {
			t.Fatalf("Keys failed: %v", err)
		}
		if len(mirrors) != 1 {
			t.Fatalf("expected 1 mirror, got %d", len(mirrors))
		}

		m := mirrors[0]
		if m.TargetPlaylistID != "PL123" || m.SourceTitle != "Road Trip" || m.TargetOwner != "Channel" {
			t.Errorf("metadata not stored: %+v", m)
		}
		if m.TrackCount != 1 {
			t.Errorf("expected track count 1, got %d", m.TrackCount)
		}
	})
}

// TestMirrorRepositoryRandomOps applies random append/remove sequences and checks the store
// against an in-memory model after every step.
func TestMirrorRepositoryRandomOps(t *testing.T) {
	ctx := context.Background()
	repo := NewMirrorRepository(setupTestDB(t))
	rng := rand.New(rand.NewSource(42))

	var model []string
	index := func(id string) int {
		for i, m := range model {
			if m == id {
				return i
			}
		}
		return -1
	}

	for step := range 300 {
		id := fmt.Sprintf("t%d", rng.Intn(25))
		pos := index(id)

		if rng.Intn(2) == 0 {
			err := repo.Append(ctx, testKey, record(id))
			switch {
			case pos >= 0 && !errors.Is(err, shared.ErrDuplicateIdentity):
				t.Fatalf("step %d: expected duplicate for %s, got %v", step, id, err)
			case pos < 0 && err != nil:
				t.Fatalf("step %d: append %s failed: %v", step, id, err)
			case pos < 0:
				model = append(model, id)
			}
		} else {
			err := repo.Remove(ctx, testKey, id)
			switch {
			case pos < 0 && !errors.Is(err, shared.ErrNotFound):
				t.Fatalf("step %d: expected not found for %s, got %v", step, id, err)
			case pos >= 0 && err != nil:
				t.Fatalf("step %d: remove %s failed: %v", step, id, err)
			case pos >= 0:
				model = append(model[:pos], model[pos+1:]...)
			}
		}

		records, err := repo.Load(ctx, testKey)
		if err != nil {
			t.Fatalf("step %d: load failed: %v", step, err)
		}

		seen := make(map[string]bool)
		for _, rec := range records {
			if seen[rec.SourceID] {
				t.Fatalf("step %d: duplicate source id %s", step, rec.SourceID)
			}
			seen[rec.SourceID] = true
		}

		if got, want := fmt.Sprint(sourceIDs(records)), fmt.Sprint(model); got != want && !(len(records) == 0 && len(model) == 0) {
			t.Fatalf("step %d: store %s diverged from model %s", step, got, want)
		}
	}
}

func TestQuotaRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 18, 30, 0, 0, time.UTC)
	configured := []shared.IdentityConfig{
		{Name: "first", ClientSecretPath: "/s/0.json", TokenPath: "/t/0.json"},
		{Name: "second", ClientSecretPath: "/s/1.json", TokenPath: "/t/1.json"},
	}

	setup := func(t *testing.T) *QuotaRepository {
		t.Helper()
		repo := NewQuotaRepository(setupTestDB(t), 24*time.Hour, -1)
		if err := repo.Register(ctx, configured); err != nil {
			t.Fatalf("failed to register identities: %v", err)
		}
		return repo
	}

	t.Run("PickAvailable prefers position order", func(t *testing.T) {
		repo := setup(t)

		id, err := repo.PickAvailable(ctx, now)
		if err != nil {
			t.Fatalf("PickAvailable failed: %v", err)
		}
		if id.Name != "first" || id.ClientSecretPath != "/s/0.json" {
			t.Errorf("expected first identity, got %+v", id)
		}
	})

	t.Run("Exhausted identity is skipped", func(t *testing.T) {
		repo := setup(t)

		if err := repo.MarkExhausted(ctx, "first", now.Add(-time.Hour)); err != nil {
			t.Fatalf("MarkExhausted failed: %v", err)
		}

		id, err := repo.PickAvailable(ctx, now)
		if err != nil {
			t.Fatalf("PickAvailable failed: %v", err)
		}
		if id.Name != "second" {
			t.Errorf("expected second identity, got %s", id.Name)
		}
	})

	t.Run("Identity replenishes after window", func(t *testing.T) {
		repo := setup(t)

		if err := repo.MarkExhausted(ctx, "first", now.Add(-24*time.Hour)); err != nil {
			t.Fatalf("MarkExhausted failed: %v", err)
		}

		id, err := repo.PickAvailable(ctx, now)
		if err != nil {
			t.Fatalf("PickAvailable failed: %v", err)
		}
		if id.Name != "first" {
			t.Errorf("expected first identity after exactly 24h, got %s", id.Name)
		}
	})

	t.Run("All exhausted", func(t *testing.T) {
		repo := setup(t)

		for _, name := range []string{"first", "second"} {
			if err := repo.MarkExhausted(ctx, name, now); err != nil {
				t.Fatalf("MarkExhausted failed: %v", err)
			}
		}

		_, err := repo.PickAvailable(ctx, now.Add(23*time.Hour))
		if !errors.Is(err, shared.ErrNoAvailableIdentity) {
			t.Errorf("expected ErrNoAvailableIdentity, got %v", err)
		}
	})

	t.Run("Nothing registered", func(t *testing.T) {
		repo := NewQuotaRepository(setupTestDB(t), 0, -1)

		if _, err := repo.PickAvailable(ctx, now); !errors.Is(err, shared.ErrNoAvailableIdentity) {
			t.Errorf("expected ErrNoAvailableIdentity, got %v", err)
		}
	})

	t.Run("Register preserves exhaustion and prunes", func(t *testing.T) {
		repo := setup(t)

		if err := repo.MarkExhausted(ctx, "second", now); err != nil {
			t.Fatalf("MarkExhausted failed: %v", err)
		}

		reordered := []shared.IdentityConfig{configured[1], {Name: "third"}}
		if err := repo.Register(ctx, reordered); err != nil {
			t.Fatalf("Register failed: %v", err)
		}

		ids, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(ids) != 2 || ids[0].Name != "second" || ids[1].Name != "third" {
			t.Fatalf("expected [second third], got %+v", ids)
		}
		if ids[0].ExhaustedAt == nil || !ids[0].ExhaustedAt.Equal(now) {
			t.Errorf("expected exhaustion time to survive re-register, got %v", ids[0].ExhaustedAt)
		}
	})

	t.Run("Unknown identity", func(t *testing.T) {
		repo := setup(t)

		if err := repo.MarkExhausted(ctx, "ghost", now); !errors.Is(err, shared.ErrUnknownIdentity) {
			t.Errorf("expected ErrUnknownIdentity, got %v", err)
		}
		if err := repo.Reset(ctx, "ghost"); !errors.Is(err, shared.ErrUnknownIdentity) {
			t.Errorf("expected ErrUnknownIdentity, got %v", err)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		repo := setup(t)

		for _, name := range []string{"first", "second"} {
			if err := repo.MarkExhausted(ctx, name, now); err != nil {
				t.Fatalf("MarkExhausted failed: %v", err)
			}
		}

		if err := repo.Reset(ctx, "second"); err != nil {
			t.Fatalf("Reset failed: %v", err)
		}
		id, err := repo.PickAvailable(ctx, now)
		if err != nil || id.Name != "second" {
			t.Fatalf("expected second after reset, got %+v, %v", id, err)
		}

		if err := repo.Reset(ctx, ""); err != nil {
			t.Fatalf("Reset all failed: %v", err)
		}
		id, err = repo.PickAvailable(ctx, now)
		if err != nil || id.Name != "first" {
			t.Fatalf("expected first after reset all, got %+v, %v", id, err)
		}
	})

	t.Run("Reset hour anchors exhaustion", func(t *testing.T) {
		repo := NewQuotaRepository(setupTestDB(t), 24*time.Hour, 15)
		if err := repo.Register(ctx, configured[:1]); err != nil {
			t.Fatalf("failed to register: %v", err)
		}

		if err := repo.MarkExhausted(ctx, "first", now); err != nil {
			t.Fatalf("MarkExhausted failed: %v", err)
		}

		// Anchored to 15:00 on the same day, so usable again at 15:00 tomorrow.
		if _, err := repo.PickAvailable(ctx, time.Date(2024, 5, 11, 14, 59, 0, 0, time.UTC)); !errors.Is(err, shared.ErrNoAvailableIdentity) {
			t.Errorf("expected identity to still be exhausted, got %v", err)
		}
		if _, err := repo.PickAvailable(ctx, time.Date(2024, 5, 11, 15, 0, 0, 0, time.UTC)); err != nil {
			t.Errorf("expected identity to be available at the reset hour, got %v", err)
		}
	})
}

func TestAnchorTime(t *testing.T) {
	base := time.Date(2024, 5, 10, 18, 30, 0, 0, time.UTC)

	tc := []struct {
		name string
		at   time.Time
		hour int
		want time.Time
	}{
		{name: "disabled", at: base, hour: -1, want: base},
		{name: "after reset hour", at: base, hour: 15, want: time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)},
		{name: "before reset hour", at: base, hour: 20, want: time.Date(2024, 5, 9, 20, 0, 0, 0, time.UTC)},
		{name: "exactly at reset hour", at: time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC), hour: 15, want: time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)},
		{name: "out of range", at: base, hour: 24, want: base},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := AnchorTime(tt.at, tt.hour); !got.Equal(tt.want) {
				t.Errorf("AnchorTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Start and Finish", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))

		run := &models.SyncRun{Mirror: testKey.String(), Identity: "first"}
		if err := repo.Start(ctx, run); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if run.ID == "" || run.State != models.RunRunning {
			t.Fatalf("expected id and running state, got %+v", run)
		}

		run.State = models.RunQuotaHalted
		run.Added, run.Removed = 3, 1
		if err := repo.Finish(ctx, run); err != nil {
			t.Fatalf("Finish failed: %v", err)
		}

		runs, err := repo.Recent(ctx, 5)
		if err != nil {
			t.Fatalf("Recent failed: %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("expected 1 run, got %d", len(runs))
		}

		got := runs[0]
		if got.State != models.RunQuotaHalted || got.Added != 3 || got.Removed != 1 || got.FinishedAt == nil {
			t.Errorf("unexpected run: %+v", got)
		}
	})

	t.Run("Recent orders newest first", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		for i := range 3 {
			run := &models.SyncRun{ID: fmt.Sprintf("run-%d", i), StartedAt: start.Add(time.Duration(i) * time.Hour)}
			if err := repo.Start(ctx, run); err != nil {
				t.Fatalf("Start failed: %v", err)
			}
		}

		runs, err := repo.Recent(ctx, 2)
		if err != nil {
			t.Fatalf("Recent failed: %v", err)
		}
		if len(runs) != 2 || runs[0].ID != "run-2" || runs[1].ID != "run-1" {
			t.Errorf("expected [run-2 run-1], got %+v", runs)
		}
	})

	t.Run("Finish unknown run", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))

		err := repo.Finish(ctx, &models.SyncRun{ID: "missing", State: models.RunDone})
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
