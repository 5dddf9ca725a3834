// package services defines the collaborator interfaces consumed by the sync engine
package services

import (
	"context"
	"time"

	"github.com/desertthunder/ytmirror/internal/models"
)

// SourceProvider fetches the complete contents of a source playlist.
type SourceProvider interface {
	// FetchPlaylist accepts a playlist id, URI or share URL and returns every track, in playlist order.
	FetchPlaylist(ctx context.Context, ref string) (*models.SourcePlaylist, error)
}

// VideoPlatform is an authenticated session with the target platform.
type VideoPlatform interface {
	// Account returns the authenticated channel.
	Account(ctx context.Context) (models.Account, error)

	// ListOwnedPlaylists returns the playlists owned by the account.
	ListOwnedPlaylists(ctx context.Context) ([]models.TargetPlaylist, error)

	// CreatePlaylist creates a private playlist and returns its id.
	CreatePlaylist(ctx context.Context, title string) (string, error)

	// SearchVideos returns up to max video ids for query, in relevance order.
	SearchVideos(ctx context.Context, query string, max int) ([]string, error)

	// ViewCounts maps each id to its view count. Ids whose statistics are unavailable are absent from the result.
	ViewCounts(ctx context.Context, ids []string) (map[string]uint64, error)

	// InsertPlaylistItem inserts videoID at the top of the playlist.
	InsertPlaylistItem(ctx context.Context, playlistID, videoID string) (models.PlaylistItem, error)

	// DeletePlaylistItem deletes a playlist item by its item id.
	DeletePlaylistItem(ctx context.Context, itemID string) error

	// ListPlaylistItems returns every item of a playlist.
	ListPlaylistItems(ctx context.Context, playlistID string) ([]models.PlaylistItem, error)
}

// Connector opens a [VideoPlatform] session for a quota identity.
type Connector interface {
	Connect(ctx context.Context, identity models.Identity) (VideoPlatform, error)
}

// Ledger tracks which quota identity may be used next.
type Ledger interface {
	PickAvailable(ctx context.Context, now time.Time) (models.Identity, error)
	MarkExhausted(ctx context.Context, name string, at time.Time) error
}
