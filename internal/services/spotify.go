// Spotify implementation of [SourceProvider]
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/ytmirror/internal/models"
	"github.com/desertthunder/ytmirror/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"

	spotifyPageSize = 100
)

// SpotifyService reads playlists from the Spotify Web API.
// Uses [oauth2] for authentication; tokens are cached on disk and refreshed automatically.
type SpotifyService struct {
	config *oauth2.Config
	cache  *TokenCache
	client *spotify.Client
}

// NewSpotifyService creates a new Spotify service from the configured OAuth2 credentials.
func NewSpotifyService(cfg shared.SpotifyConfig) (*SpotifyService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing spotify client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing spotify client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/spotify/callback"
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"playlist-read-private",
			"playlist-read-collaborative",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	tokenPath := cfg.TokenPath
	if tokenPath == "" {
		tokenPath = "spotify_token.json"
	}

	return &SpotifyService{config: config, cache: NewTokenCache(tokenPath)}, nil
}

// NewSpotifyServiceWithClient wraps an already authenticated API client.
func NewSpotifyServiceWithClient(client *spotify.Client) *SpotifyService {
	return &SpotifyService{client: client}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// RedirectURL returns the callback URL registered with the OAuth2 config.
func (s *SpotifyService) RedirectURL() string {
	return s.config.RedirectURL
}

// TokenPath returns where the token is cached.
func (s *SpotifyService) TokenPath() string {
	return s.cache.Path()
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and caches it.
func (s *SpotifyService) Exchange(ctx context.Context, code string) error {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: failed to exchange auth code: %w", shared.ErrAuthFailed, err)
	}

	if err := s.cache.Save(token); err != nil {
		return err
	}

	s.client = spotify.New(s.config.Client(ctx, token))
	return nil
}

// Authenticate builds the API client from the cached token.
//
// Returns [shared.ErrNotAuthenticated] when no token has been cached yet.
func (s *SpotifyService) Authenticate(ctx context.Context) error {
	if s.client != nil {
		return nil
	}

	token, err := s.cache.Load()
	if err != nil {
		return err
	}
	if token == nil {
		return fmt.Errorf("%w: run `ytmirror auth spotify` first", shared.ErrNotAuthenticated)
	}

	ts := PersistingTokenSource(ctx, s.config, token, s.cache)
	s.client = spotify.New(oauth2.NewClient(ctx, ts))
	return nil
}

// CurrentUser returns the authenticated Spotify account.
func (s *SpotifyService) CurrentUser(ctx context.Context) (models.Account, error) {
	if err := s.Authenticate(ctx); err != nil {
		return models.Account{}, err
	}

	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		return models.Account{}, fmt.Errorf("%w: failed to get current user: %w", shared.ErrAPIRequest, err)
	}
	return models.Account{ID: user.ID, Name: user.DisplayName}, nil
}

// FetchPlaylist retrieves the playlist metadata and every track, following pagination to the end.
func (s *SpotifyService) FetchPlaylist(ctx context.Context, ref string) (*models.SourcePlaylist, error) {
	id, err := ParsePlaylistRef(ref)
	if err != nil {
		return nil, err
	}

	if err := s.Authenticate(ctx); err != nil {
		return nil, err
	}

	full, err := s.client.GetPlaylist(ctx, spotify.ID(id))
	if err != nil {
		return nil, classifySpotify("get playlist", err)
	}

	playlist := &models.SourcePlaylist{
		ID:        full.ID.String(),
		Title:     full.Name,
		OwnerID:   full.Owner.ID,
		OwnerName: full.Owner.DisplayName,
	}
	if playlist.OwnerName == "" {
		playlist.OwnerName = playlist.OwnerID
	}

	page, err := s.client.GetPlaylistTracks(ctx, spotify.ID(id), spotify.Limit(spotifyPageSize))
	if err != nil {
		return nil, classifySpotify("get playlist tracks", err)
	}

	for {
		for _, item := range page.Tracks {
			if track, ok := convertTrack(item); ok {
				playlist.Tracks = append(playlist.Tracks, track)
			}
		}

		err = s.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, classifySpotify("get next page", err)
		}
	}

	return playlist, nil
}

// convertTrack converts a playlist entry, reporting false for entries without a track id.
func convertTrack(item spotify.PlaylistTrack) (models.SourceTrack, bool) {
	if item.Track.ID == "" {
		return models.SourceTrack{}, false
	}

	var artist string
	if len(item.Track.Artists) > 0 {
		artist = item.Track.Artists[0].Name
	}

	// Zero value when Spotify omits the timestamp
	addedAt, _ := time.Parse(time.RFC3339, item.AddedAt)

	return models.SourceTrack{
		SourceID: item.Track.ID.String(),
		Title:    item.Track.Name,
		Artist:   artist,
		AddedAt:  addedAt,
	}, true
}

// ParsePlaylistRef extracts a playlist id from a bare id, a spotify:playlist: URI or an open.spotify.com URL.
func ParsePlaylistRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty playlist reference", shared.ErrInvalidArgument)
	}

	if rest, ok := strings.CutPrefix(ref, "spotify:playlist:"); ok {
		ref = rest
	} else if strings.Contains(ref, "://") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}

		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) < 2 || parts[len(parts)-2] != "playlist" {
			return "", fmt.Errorf("%w: not a playlist URL: %s", shared.ErrInvalidArgument, ref)
		}
		ref = parts[len(parts)-1]
	}

	if ref == "" || strings.ContainsAny(ref, "/:?") {
		return "", fmt.Errorf("%w: invalid playlist id %q", shared.ErrInvalidArgument, ref)
	}
	return ref, nil
}

func classifySpotify(op string, err error) error {
	var serr spotify.Error
	if errors.As(err, &serr) {
		switch serr.Status {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s: %w", shared.ErrPlaylistNotFound, op, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s: %w", shared.ErrNotAuthenticated, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %w", shared.ErrAPIRequest, op, err)
}
