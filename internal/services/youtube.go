// YouTube Data API v3 implementation of [VideoPlatform]
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmirror/internal/models"
	"github.com/desertthunder/ytmirror/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"
	"google.golang.org/api/youtube/v3"
)

const (
	// Only private playlists are created.
	privacyPrivate = "private"

	playlistPageSize = 50
)

// YouTubeService talks to the YouTube Data API on behalf of one identity.
//
// Each call waits on the limiter before it is sent.
type YouTubeService struct {
	svc     *youtube.Service
	client  *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewYouTubeService creates a service from the given client options.
// A nil limiter disables pacing.
func NewYouTubeService(ctx context.Context, limiter *rate.Limiter, logger *log.Logger, opts ...option.ClientOption) (*YouTubeService, error) {
	client, _, err := htransport.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube transport: %w", err)
	}

	svc, err := youtube.NewService(ctx, append(opts, option.WithHTTPClient(client))...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}

	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &YouTubeService{svc: svc, client: client, limiter: limiter, logger: logger}, nil
}

func (s *YouTubeService) Name() string {
	return "YouTube"
}

func (s *YouTubeService) wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// Account returns the channel of the authenticated identity.
func (s *YouTubeService) Account(ctx context.Context) (models.Account, error) {
	if err := s.wait(ctx); err != nil {
		return models.Account{}, err
	}

	resp, err := s.svc.Channels.List([]string{"snippet"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return models.Account{}, Classify("list channels", err)
	}
	if len(resp.Items) == 0 {
		return models.Account{}, fmt.Errorf("%w: identity has no channel", shared.ErrNotAuthenticated)
	}

	ch := resp.Items[0]
	account := models.Account{ID: ch.Id}
	if ch.Snippet != nil {
		account.Name = ch.Snippet.Title
	}
	return account, nil
}

// ListOwnedPlaylists returns every playlist of the authenticated channel.
func (s *YouTubeService) ListOwnedPlaylists(ctx context.Context) ([]models.TargetPlaylist, error) {
	var (
		playlists []models.TargetPlaylist
		pageToken string
	)

	for {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}

		call := s.svc.Playlists.List([]string{"snippet"}).Mine(true).MaxResults(playlistPageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, Classify("list playlists", err)
		}

		for _, p := range resp.Items {
			playlist := models.TargetPlaylist{ID: p.Id}
			if p.Snippet != nil {
				playlist.Title = p.Snippet.Title
				playlist.Owner = p.Snippet.ChannelTitle
			}
			playlists = append(playlists, playlist)
		}

		if resp.NextPageToken == "" {
			return playlists, nil
		}
		pageToken = resp.NextPageToken
	}
}

// CreatePlaylist creates a private playlist with the given title.
func (s *YouTubeService) CreatePlaylist(ctx context.Context, title string) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}

	playlist := &youtube.Playlist{
		Snippet: &youtube.PlaylistSnippet{Title: title},
		Status:  &youtube.PlaylistStatus{PrivacyStatus: privacyPrivate},
	}

	resp, err := s.svc.Playlists.Insert([]string{"snippet", "status"}, playlist).Context(ctx).Do()
	if err != nil {
		return "", Classify("create playlist", err)
	}

	s.logger.Info("created playlist", "title", title, "id", resp.Id)
	return resp.Id, nil
}

// SearchVideos returns up to max video ids for query in relevance order.
func (s *YouTubeService) SearchVideos(ctx context.Context, query string, max int) ([]string, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := s.svc.Search.List([]string{"id"}).
		Q(query).
		Type("video").
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, Classify("search", err)
	}

	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		ids = append(ids, item.Id.VideoId)
	}
	return ids, nil
}

// videoStatistics mirrors the statistics part of videos.list. The generated client decodes an
// absent viewCount as 0, so the count is kept as an optional string here.
type videoStatistics struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics *struct {
			ViewCount *string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// ViewCounts fetches the view count of each video.
//
// Videos missing from the response, or whose statistics carry no viewCount, are left out of the map.
func (s *YouTubeService) ViewCounts(ctx context.Context, ids []string) (map[string]uint64, error) {
	counts := make(map[string]uint64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"part":        {"statistics"},
		"id":          {strings.Join(ids, ",")},
		"alt":         {"json"},
		"prettyPrint": {"false"},
	}
	endpoint := googleapi.ResolveRelative(s.svc.BasePath, "videos") + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build videos request: %w", err)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return nil, Classify("list videos", err)
	}
	defer googleapi.CloseBody(res)

	if err := googleapi.CheckResponse(res); err != nil {
		return nil, Classify("list videos", err)
	}

	var body videoStatistics
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode videos response: %w", err)
	}

	for _, v := range body.Items {
		if v.Statistics == nil || v.Statistics.ViewCount == nil {
			s.logger.Debug("video has no view count", "video", v.ID)
			continue
		}

		n, err := strconv.ParseUint(*v.Statistics.ViewCount, 10, 64)
		if err != nil {
			s.logger.Warn("unreadable view count", "video", v.ID, "value", *v.Statistics.ViewCount)
			continue
		}
		counts[v.ID] = n
	}
	return counts, nil
}

// InsertPlaylistItem adds videoID at position 0 of the playlist.
func (s *YouTubeService) InsertPlaylistItem(ctx context.Context, playlistID, videoID string) (models.PlaylistItem, error) {
	if err := s.wait(ctx); err != nil {
		return models.PlaylistItem{}, err
	}

	item := &youtube.PlaylistItem{
		Snippet: &youtube.PlaylistItemSnippet{
			PlaylistId: playlistID,
			Position:   0,
			ResourceId: &youtube.ResourceId{
				Kind:    "youtube#video",
				VideoId: videoID,
			},
			ForceSendFields: []string{"Position"},
		},
	}

	resp, err := s.svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do()
	if err != nil {
		return models.PlaylistItem{}, Classify("insert playlist item", err)
	}

	inserted := models.PlaylistItem{ID: resp.Id, VideoID: videoID}
	if resp.Snippet != nil {
		inserted.Title = resp.Snippet.Title
	}
	return inserted, nil
}

// DeletePlaylistItem deletes an item by its playlist item id.
func (s *YouTubeService) DeletePlaylistItem(ctx context.Context, itemID string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}

	if err := s.svc.PlaylistItems.Delete(itemID).Context(ctx).Do(); err != nil {
		return Classify("delete playlist item", err)
	}
	return nil
}

// ListPlaylistItems returns every item of playlistID, following page tokens.
func (s *YouTubeService) ListPlaylistItems(ctx context.Context, playlistID string) ([]models.PlaylistItem, error) {
	var (
		items     []models.PlaylistItem
		pageToken string
	)

	for {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}

		call := s.svc.PlaylistItems.List([]string{"snippet"}).
			PlaylistId(playlistID).
			MaxResults(playlistPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, Classify("list playlist items", err)
		}

		for _, it := range resp.Items {
			item := models.PlaylistItem{ID: it.Id}
			if it.Snippet != nil {
				item.Title = it.Snippet.Title
				if it.Snippet.ResourceId != nil {
					item.VideoID = it.Snippet.ResourceId.VideoId
				}
			}
			items = append(items, item)
		}

		if resp.NextPageToken == "" {
			return items, nil
		}
		pageToken = resp.NextPageToken
	}
}

// YouTubeConnector opens a [YouTubeService] per quota identity.
//
// All services it creates share one limiter.
type YouTubeConnector struct {
	RedirectURL string
	Limiter     *rate.Limiter
	Logger      *log.Logger

	// Options are appended to the client options of every connection.
	Options []option.ClientOption
}

// NewYouTubeConnector creates a connector pacing requests at rps per second; rps <= 0 disables pacing.
func NewYouTubeConnector(cfg shared.YouTubeConfig, logger *log.Logger) *YouTubeConnector {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &YouTubeConnector{RedirectURL: cfg.RedirectURI, Limiter: limiter, Logger: logger}
}

// OAuthConfig reads the identity's client secret file.
func (c *YouTubeConnector) OAuthConfig(identity models.Identity) (*oauth2.Config, error) {
	data, err := os.ReadFile(identity.ClientSecretPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read client secret for %s: %w", shared.ErrMissingCredentials, identity.Name, err)
	}

	config, err := google.ConfigFromJSON(data, youtube.YoutubeScope)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrInvalidCredentials, identity.Name, err)
	}
	if c.RedirectURL != "" {
		config.RedirectURL = c.RedirectURL
	}
	return config, nil
}

// Connect loads the identity's cached token and returns an authenticated service.
func (c *YouTubeConnector) Connect(ctx context.Context, identity models.Identity) (VideoPlatform, error) {
	config, err := c.OAuthConfig(identity)
	if err != nil {
		return nil, err
	}

	cache := NewTokenCache(identity.TokenPath)
	token, err := cache.Load()
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, fmt.Errorf("%w: run `ytmirror auth youtube --identity %s` first", shared.ErrNotAuthenticated, identity.Name)
	}

	ts := PersistingTokenSource(ctx, config, token, cache)
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, c.Options...)

	logger := c.Logger
	if logger != nil {
		logger = shared.WithLogger(logger, "identity", identity.Name)
	}
	return NewYouTubeService(ctx, c.Limiter, logger, opts...)
}

// Exchange trades an authorization code for a token and caches it at the identity's token path.
func (c *YouTubeConnector) Exchange(ctx context.Context, identity models.Identity, code string) error {
	config, err := c.OAuthConfig(identity)
	if err != nil {
		return err
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: failed to exchange auth code: %w", shared.ErrAuthFailed, err)
	}
	return NewTokenCache(identity.TokenPath).Save(token)
}
