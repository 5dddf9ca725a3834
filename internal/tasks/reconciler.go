package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmirror/internal/models"
	"github.com/desertthunder/ytmirror/internal/services"
	"github.com/desertthunder/ytmirror/internal/shared"
)

// MirrorStore persists mirror records; every mutating call must be durable when it returns.
type MirrorStore interface {
	Load(ctx context.Context, key models.MirrorKey) ([]models.TrackRecord, error)
	Peek(ctx context.Context, key models.MirrorKey) ([]models.TrackRecord, error)
	Append(ctx context.Context, key models.MirrorKey, rec models.TrackRecord) error
	Remove(ctx context.Context, key models.MirrorKey, sourceID string) error
	SetTargetPlaylist(ctx context.Context, key models.MirrorKey, playlistID string, meta models.MirrorMeta) error
}

// RunRecorder stores the history of sync runs.
type RunRecorder interface {
	Start(ctx context.Context, run *models.SyncRun) error
	Finish(ctx context.Context, run *models.SyncRun) error
}

// ConfirmFunc is asked before anything touches the target. Returning false cancels the run.
type ConfirmFunc func(ctx context.Context, src *models.SourcePlaylist) (bool, error)

var errCancelled = errors.New("cancelled")

// Result describes how a run ended.
type Result struct {
	State      models.RunState
	Identity   string
	Key        models.MirrorKey
	Source     *models.SourcePlaylist
	PlaylistID string
	Removed    int
	Added      int
	Adopted    int // Added records whose video was already on the target
}

// Plan is the delta a run would apply.
type Plan struct {
	Identity   string
	Key        models.MirrorKey
	Source     *models.SourcePlaylist
	PlaylistID string
	ToRemove   []models.TrackRecord
	ToAdd      []models.TrackRecord
}

// ReconcilerOpts configures a [Reconciler]. Runs, Confirm and Logger are optional.
type ReconcilerOpts struct {
	Source        services.SourceProvider
	Connector     services.Connector
	Ledger        services.Ledger
	Store         MirrorStore
	Runs          RunRecorder
	Confirm       ConfirmFunc
	Logger        *log.Logger
	Now           func() time.Time
	SearchResults int
	AdoptOrphans  bool
}

// Reconciler syncs one source playlist into its target playlist.
//
// A run is strictly sequential: each remote mutation is followed by the matching store call
// before the next item is touched.
type Reconciler struct {
	source        services.SourceProvider
	connector     services.Connector
	ledger        services.Ledger
	store         MirrorStore
	runs          RunRecorder
	confirm       ConfirmFunc
	logger        *log.Logger
	now           func() time.Time
	searchResults int
	adoptOrphans  bool
}

// NewReconciler creates a new Reconciler.
func NewReconciler(opts ReconcilerOpts) *Reconciler {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Reconciler{
		source:        opts.Source,
		connector:     opts.Connector,
		ledger:        opts.Ledger,
		store:         opts.Store,
		runs:          opts.Runs,
		confirm:       opts.Confirm,
		logger:        opts.Logger,
		now:           opts.Now,
		searchResults: opts.SearchResults,
		adoptOrphans:  opts.AdoptOrphans,
	}
}

// Run performs one sync of the playlist identified by ref.
//
// Quota exhaustion is not an error: the identity is marked exhausted and the result is returned
// in the [models.RunQuotaHalted] state with the counters reached so far.
// Returns [shared.ErrNoAvailableIdentity] before fetching anything when the ledger has no usable identity.
func (r *Reconciler) Run(ctx context.Context, ref string, progress chan<- ProgressUpdate) (*Result, error) {
	identity, err := r.ledger.PickAvailable(ctx, r.now())
	if err != nil {
		return nil, err
	}
	sendProgress(ctx, progress, pickedIdentityUpdate(identity.Name))

	result := &Result{State: models.RunRunning, Identity: identity.Name}
	run := &models.SyncRun{Identity: identity.Name, StartedAt: r.now()}
	r.startRun(ctx, run)

	err = r.run(ctx, identity, ref, progress, result)
	switch {
	case err == nil:
		result.State = models.RunDone
		sendProgress(ctx, progress, doneUpdate(result.Removed, result.Added))
	case errors.Is(err, errCancelled):
		result.State = models.RunCancelled
		err = nil
	case errors.Is(err, shared.ErrQuotaExhausted):
		r.logger.Warn("quota exhausted", "identity", identity.Name, "cause", err)
		if markErr := r.ledger.MarkExhausted(ctx, identity.Name, r.now()); markErr != nil {
			result.State = models.RunFailed
			err = fmt.Errorf("failed to record quota exhaustion for %s: %w", identity.Name, markErr)
			break
		}
		result.State = models.RunQuotaHalted
		sendProgress(ctx, progress, haltedUpdate(identity.Name, result.Removed, result.Added))
		err = nil
	default:
		result.State = models.RunFailed
	}

	r.finishRun(ctx, run, result, err)
	return result, err
}

func (r *Reconciler) run(ctx context.Context, identity models.Identity, ref string, progress chan<- ProgressUpdate, result *Result) error {
	sendProgress(ctx, progress, fetchingSourceUpdate(ref))
	src, err := r.source.FetchPlaylist(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to fetch source playlist: %w", err)
	}
	result.Source = src
	sendProgress(ctx, progress, foundSourceUpdate(src))

	if r.confirm != nil {
		ok, err := r.confirm(ctx, src)
		if err != nil {
			return err
		}
		if !ok {
			return errCancelled
		}
	}

	platform, key, account, err := r.connect(ctx, identity, src)
	if err != nil {
		return err
	}
	result.Key = key

	playlistID, err := r.targetPlaylist(ctx, platform, src, progress)
	if err != nil {
		return err
	}
	result.PlaylistID = playlistID

	meta := models.MirrorMeta{SourceTitle: src.Title, SourceOwner: src.OwnerName, TargetOwner: account.Name}
	if err := r.store.SetTargetPlaylist(ctx, key, playlistID, meta); err != nil {
		return err
	}

	records, err := r.store.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load mirror: %w", err)
	}
	sendProgress(ctx, progress, loadedMirrorUpdate(key, len(records)))

	toRemove, toAdd := Diff(records, src.Tracks)
	sendProgress(ctx, progress, diffUpdate(len(toRemove), len(toAdd)))

	if err := r.removeLoop(ctx, platform, key, toRemove, progress, result); err != nil {
		return err
	}

	kept := keptRecords(records, toRemove)
	return r.addLoop(ctx, platform, key, playlistID, kept, toAdd, progress, result)
}

// Plan computes the delta a run would apply without mutating the target, the mirror or the ledger.
func (r *Reconciler) Plan(ctx context.Context, ref string) (*Plan, error) {
	identity, err := r.ledger.PickAvailable(ctx, r.now())
	if err != nil {
		return nil, err
	}

	src, err := r.source.FetchPlaylist(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source playlist: %w", err)
	}

	platform, key, _, err := r.connect(ctx, identity, src)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Identity: identity.Name, Key: key, Source: src}

	playlists, err := platform.ListOwnedPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	if p, ok := findPlaylist(playlists, src.TargetTitle()); ok {
		plan.PlaylistID = p.ID
	}

	records, err := r.store.Peek(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load mirror: %w", err)
	}

	plan.ToRemove, plan.ToAdd = Diff(records, src.Tracks)
	return plan, nil
}

func (r *Reconciler) connect(ctx context.Context, identity models.Identity, src *models.SourcePlaylist) (services.VideoPlatform, models.MirrorKey, models.Account, error) {
	platform, err := r.connector.Connect(ctx, identity)
	if err != nil {
		return nil, models.MirrorKey{}, models.Account{}, fmt.Errorf("failed to connect %s: %w", identity.Name, err)
	}

	account, err := platform.Account(ctx)
	if err != nil {
		return nil, models.MirrorKey{}, models.Account{}, err
	}

	key := models.MirrorKey{SourceAccount: src.OwnerID, SourcePlaylist: src.ID, TargetAccount: account.ID}
	return platform, key, account, nil
}

// targetPlaylist finds the owned playlist named after src or creates it.
func (r *Reconciler) targetPlaylist(ctx context.Context, platform services.VideoPlatform, src *models.SourcePlaylist, progress chan<- ProgressUpdate) (string, error) {
	title := src.TargetTitle()

	playlists, err := platform.ListOwnedPlaylists(ctx)
	if err != nil {
		return "", err
	}
	if p, ok := findPlaylist(playlists, title); ok {
		sendProgress(ctx, progress, targetPlaylistUpdate(title, p.ID, false))
		return p.ID, nil
	}

	id, err := platform.CreatePlaylist(ctx, title)
	if err != nil {
		return "", err
	}
	sendProgress(ctx, progress, targetPlaylistUpdate(title, id, true))
	return id, nil
}

func (r *Reconciler) removeLoop(ctx context.Context, platform services.VideoPlatform, key models.MirrorKey, toRemove []models.TrackRecord, progress chan<- ProgressUpdate, result *Result) error {
	for i, rec := range toRemove {
		if rec.ResolvedItemID == "" {
			r.logger.Warn("record has no playlist item, dropping from mirror only", "source_id", rec.SourceID)
		} else if err := platform.DeletePlaylistItem(ctx, rec.ResolvedItemID); err != nil {
			if !errors.Is(err, shared.ErrItemNotFound) {
				return fmt.Errorf("failed to remove %s: %w", rec.Label(), err)
			}
			r.logger.Warn("playlist item already gone", "source_id", rec.SourceID, "item", rec.ResolvedItemID)
		}

		if err := r.store.Remove(ctx, key, rec.SourceID); err != nil {
			return err
		}

		result.Removed++
		sendProgress(ctx, progress, removedUpdate(i+1, len(toRemove), rec))
	}
	return nil
}

func (r *Reconciler) addLoop(ctx context.Context, platform services.VideoPlatform, key models.MirrorKey, playlistID string, kept, toAdd []models.TrackRecord, progress chan<- ProgressUpdate, result *Result) error {
	if len(toAdd) == 0 {
		return nil
	}

	var orphans map[string]models.PlaylistItem
	if r.adoptOrphans {
		items, err := platform.ListPlaylistItems(ctx, playlistID)
		if err != nil {
			return err
		}
		orphans = unclaimedItems(items, kept)
	}

	resolver := NewResolver(platform, r.searchResults)
	for i, rec := range toAdd {
		cand, err := resolver.Resolve(ctx, rec.Artist, rec.Title)
		if err != nil {
			return fmt.Errorf("failed to resolve %s - %s: %w", rec.Artist, rec.Title, err)
		}

		item, adopted := orphans[cand.VideoID]
		if adopted {
			delete(orphans, cand.VideoID)
			r.logger.Info("adopting item already on target", "source_id", rec.SourceID, "item", item.ID)
		} else {
			item, err = platform.InsertPlaylistItem(ctx, playlistID, cand.VideoID)
			if err != nil {
				return fmt.Errorf("failed to add %s - %s: %w", rec.Artist, rec.Title, err)
			}
		}

		rec.ResolvedTitle = item.Title
		rec.ResolvedItemID = item.ID
		rec.VideoID = cand.VideoID
		if err := r.store.Append(ctx, key, rec); err != nil {
			return err
		}

		result.Added++
		if adopted {
			result.Adopted++
		}
		sendProgress(ctx, progress, addedUpdate(i+1, len(toAdd), rec))
	}
	return nil
}

func (r *Reconciler) startRun(ctx context.Context, run *models.SyncRun) {
	if r.runs == nil {
		return
	}
	if err := r.runs.Start(ctx, run); err != nil {
		r.logger.Warn("failed to record run start", "error", err)
	}
}

func (r *Reconciler) finishRun(ctx context.Context, run *models.SyncRun, result *Result, err error) {
	if r.runs == nil || run.ID == "" {
		return
	}

	now := r.now()
	run.Mirror = result.Key.String()
	run.State = result.State
	run.Added = result.Added
	run.Removed = result.Removed
	run.FinishedAt = &now
	if err != nil {
		run.Error = err.Error()
	}

	if err := r.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		r.logger.Warn("failed to record run result", "error", err)
	}
}

// Diff returns the mirror records absent from the source, in mirror order, and the source tracks absent
// from the mirror, in source order. A source id listed twice in the source is added once.
func Diff(mirror []models.TrackRecord, source []models.SourceTrack) (toRemove, toAdd []models.TrackRecord) {
	inSource := make(map[string]bool, len(source))
	for _, t := range source {
		inSource[t.SourceID] = true
	}

	inMirror := make(map[string]bool, len(mirror))
	for _, rec := range mirror {
		inMirror[rec.SourceID] = true
		if !inSource[rec.SourceID] {
			toRemove = append(toRemove, rec)
		}
	}

	for _, t := range source {
		if inMirror[t.SourceID] {
			continue
		}
		inMirror[t.SourceID] = true
		toAdd = append(toAdd, t.Record())
	}
	return toRemove, toAdd
}

func keptRecords(records, removed []models.TrackRecord) []models.TrackRecord {
	gone := make(map[string]bool, len(removed))
	for _, rec := range removed {
		gone[rec.SourceID] = true
	}

	kept := make([]models.TrackRecord, 0, len(records)-len(removed))
	for _, rec := range records {
		if !gone[rec.SourceID] {
			kept = append(kept, rec)
		}
	}
	return kept
}

// unclaimedItems indexes by video id the target items no mirror record points at.
func unclaimedItems(items []models.PlaylistItem, records []models.TrackRecord) map[string]models.PlaylistItem {
	claimed := make(map[string]bool, len(records))
	for _, rec := range records {
		claimed[rec.ResolvedItemID] = true
	}

	orphans := make(map[string]models.PlaylistItem)
	for _, item := range items {
		if claimed[item.ID] || item.VideoID == "" {
			continue
		}
		if _, ok := orphans[item.VideoID]; !ok {
			orphans[item.VideoID] = item
		}
	}
	return orphans
}

func findPlaylist(playlists []models.TargetPlaylist, title string) (models.TargetPlaylist, bool) {
	for _, p := range playlists {
		if p.Title == title {
			return p, true
		}
	}
	return models.TargetPlaylist{}, false
}
