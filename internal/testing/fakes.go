package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/ytmirror/internal/models"
	"github.com/desertthunder/ytmirror/internal/services"
	"github.com/desertthunder/ytmirror/internal/shared"
)

// FakeSource is an in-memory [services.SourceProvider].
type FakeSource struct {
	Playlists map[string]*models.SourcePlaylist
	Err       error
	Calls     int
}

// NewFakeSource serves a single playlist under its own id, or nothing when p is nil.
func NewFakeSource(p *models.SourcePlaylist) *FakeSource {
	s := &FakeSource{Playlists: map[string]*models.SourcePlaylist{}}
	if p != nil {
		s.Playlists[p.ID] = p
	}
	return s
}

func (s *FakeSource) FetchPlaylist(ctx context.Context, ref string) (*models.SourcePlaylist, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}

	p, ok := s.Playlists[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, ref)
	}

	cp := *p
	cp.Tracks = append([]models.SourceTrack(nil), p.Tracks...)
	return &cp, nil
}

// FakePlatform is an in-memory [services.VideoPlatform] holding real playlist state.
//
// Search results are keyed by query; a video missing from Views has no statistics.
type FakePlatform struct {
	mu sync.Mutex

	AccountID   string
	AccountName string
	Playlists   []models.TargetPlaylist
	Items       map[string][]models.PlaylistItem
	Search      map[string][]string
	Views       map[string]uint64
	Titles      map[string]string

	// Errs fails every call of the named method.
	Errs map[string]error
	// QuotaOn fails the named method with a quota error once it has succeeded QuotaAfter times.
	QuotaOn    string
	QuotaAfter int

	Calls  map[string]int
	nextID int
}

// NewFakePlatform creates a platform for the channel id with no playlists.
func NewFakePlatform(accountID string) *FakePlatform {
	return &FakePlatform{
		AccountID:   accountID,
		AccountName: "Channel " + accountID,
		Items:       make(map[string][]models.PlaylistItem),
		Search:      make(map[string][]string),
		Views:       make(map[string]uint64),
		Titles:      make(map[string]string),
		Errs:        make(map[string]error),
		Calls:       make(map[string]int),
	}
}

// AddVideo makes a single-hit search for query return videoID.
func (p *FakePlatform) AddVideo(query, videoID string, views uint64) {
	p.Search[query] = append(p.Search[query], videoID)
	p.Views[videoID] = views
	p.Titles[videoID] = "Video " + videoID
}

// Mutations returns the number of insert and delete calls made so far.
func (p *FakePlatform) Mutations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls["InsertPlaylistItem"] + p.Calls["DeletePlaylistItem"]
}

// VideoIDs returns the video ids of a playlist, top first.
func (p *FakePlatform) VideoIDs(playlistID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.Items[playlistID]))
	for _, item := range p.Items[playlistID] {
		ids = append(ids, item.VideoID)
	}
	return ids
}

func (p *FakePlatform) call(method string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.Errs[method]; err != nil {
		p.Calls[method]++
		return err
	}
	if p.QuotaOn == method && p.Calls[method] >= p.QuotaAfter {
		return fmt.Errorf("%w: %s", shared.ErrQuotaExhausted, method)
	}
	p.Calls[method]++
	return nil
}

func (p *FakePlatform) Account(ctx context.Context) (models.Account, error) {
	if err := p.call("Account"); err != nil {
		return models.Account{}, err
	}
	return models.Account{ID: p.AccountID, Name: p.AccountName}, nil
}

func (p *FakePlatform) ListOwnedPlaylists(ctx context.Context) ([]models.TargetPlaylist, error) {
	if err := p.call("ListOwnedPlaylists"); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.TargetPlaylist(nil), p.Playlists...), nil
}

func (p *FakePlatform) CreatePlaylist(ctx context.Context, title string) (string, error) {
	if err := p.call("CreatePlaylist"); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := fmt.Sprintf("PL%d", p.nextID)
	p.Playlists = append(p.Playlists, models.TargetPlaylist{ID: id, Title: title, Owner: p.AccountName})
	return id, nil
}

func (p *FakePlatform) SearchVideos(ctx context.Context, query string, max int) ([]string, error) {
	if err := p.call("SearchVideos"); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ids := p.Search[query]
	if len(ids) > max {
		ids = ids[:max]
	}
	return append([]string(nil), ids...), nil
}

func (p *FakePlatform) ViewCounts(ctx context.Context, ids []string) (map[string]uint64, error) {
	if err := p.call("ViewCounts"); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	counts := make(map[string]uint64, len(ids))
	for _, id := range ids {
		if v, ok := p.Views[id]; ok {
			counts[id] = v
		}
	}
	return counts, nil
}

func (p *FakePlatform) InsertPlaylistItem(ctx context.Context, playlistID, videoID string) (models.PlaylistItem, error) {
	if err := p.call("InsertPlaylistItem"); err != nil {
		return models.PlaylistItem{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	title := p.Titles[videoID]
	if title == "" {
		title = videoID
	}
	item := models.PlaylistItem{ID: fmt.Sprintf("item-%d", p.nextID), VideoID: videoID, Title: title}
	p.Items[playlistID] = append([]models.PlaylistItem{item}, p.Items[playlistID]...)
	return item, nil
}

func (p *FakePlatform) DeletePlaylistItem(ctx context.Context, itemID string) error {
	if err := p.call("DeletePlaylistItem"); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for pl, items := range p.Items {
		for i, item := range items {
			if item.ID == itemID {
				p.Items[pl] = append(items[:i:i], items[i+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s", shared.ErrItemNotFound, itemID)
}

func (p *FakePlatform) ListPlaylistItems(ctx context.Context, playlistID string) ([]models.PlaylistItem, error) {
	if err := p.call("ListPlaylistItems"); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.PlaylistItem(nil), p.Items[playlistID]...), nil
}

// FakeConnector hands out the same platform for every identity.
type FakeConnector struct {
	Platform  services.VideoPlatform
	Err       error
	Connected []string
}

func (c *FakeConnector) Connect(ctx context.Context, identity models.Identity) (services.VideoPlatform, error) {
	c.Connected = append(c.Connected, identity.Name)
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Platform, nil
}

// FakeLedger is an in-memory [services.Ledger] with a 24 hour window.
type FakeLedger struct {
	Identities []models.Identity
	Exhausted  map[string]time.Time
	Picks      int
}

// NewFakeLedger registers identities with the given names, all available.
func NewFakeLedger(names ...string) *FakeLedger {
	l := &FakeLedger{Exhausted: make(map[string]time.Time)}
	for i, name := range names {
		l.Identities = append(l.Identities, models.Identity{Position: i, Name: name})
	}
	return l
}

func (l *FakeLedger) PickAvailable(ctx context.Context, now time.Time) (models.Identity, error) {
	l.Picks++
	for _, id := range l.Identities {
		at, ok := l.Exhausted[id.Name]
		if !ok || !now.Before(at.Add(24*time.Hour)) {
			return id, nil
		}
	}
	return models.Identity{}, shared.ErrNoAvailableIdentity
}

func (l *FakeLedger) MarkExhausted(ctx context.Context, name string, at time.Time) error {
	for _, id := range l.Identities {
		if id.Name == name {
			l.Exhausted[name] = at
			return nil
		}
	}
	return fmt.Errorf("%w: %s", shared.ErrUnknownIdentity, name)
}
