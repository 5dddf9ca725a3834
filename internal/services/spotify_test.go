package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/ytmirror/internal/shared"
	"github.com/zmb3/spotify/v2"
)

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(shared.SpotifyConfig{
				ClientID:     "test_client_id",
				ClientSecret: "test_client_secret",
				RedirectURI:  "http://127.0.0.1:3000/spotify/callback",
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(shared.SpotifyConfig{ClientSecret: "test_client_secret"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(shared.SpotifyConfig{ClientID: "test_client_id"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			srv, err := NewSpotifyService(shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.config.RedirectURL != "http://127.0.0.1:3000/spotify/callback" {
				t.Errorf("expected default redirect URI, got %s", srv.config.RedirectURL)
			}
		})
	})

	t.Run("AuthURL", func(t *testing.T) {
		srv, err := NewSpotifyService(shared.SpotifyConfig{ClientID: "test_client_id", ClientSecret: "secret"})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		authURL := srv.AuthURL("test_state")
		if !strings.Contains(authURL, "accounts.spotify.com") {
			t.Error("auth URL should contain Spotify domain")
		}
		if !strings.Contains(authURL, "test_client_id") {
			t.Error("auth URL should contain client_id")
		}
		if !strings.Contains(authURL, "test_state") {
			t.Error("auth URL should contain state")
		}
	})

	t.Run("Authenticate without cached token", func(t *testing.T) {
		srv, err := NewSpotifyService(shared.SpotifyConfig{
			ClientID:     "id",
			ClientSecret: "secret",
			TokenPath:    t.TempDir() + "/token.json",
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		if err := srv.Authenticate(context.Background()); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestSpotifyFetchPlaylist(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/playlists/pl1":
			fmt.Fprint(w, `{"id":"pl1","name":"Road Trip","owner":{"id":"owner1","display_name":"Owner"},"tracks":{"items":[]}}`)
		case r.URL.Path == "/playlists/pl1/tracks" && r.URL.Query().Get("offset") == "":
			fmt.Fprintf(w, `{"items":[
				{"added_at":"2024-01-02T03:04:05Z","track":{"id":"t1","name":"First","uri":"spotify:track:t1","artists":[{"name":"Artist A"},{"name":"Feat"}]}},
				{"added_at":"2024-01-03T03:04:05Z","track":{"id":"","name":"Local File","artists":[]}}
			],"next":"%s/playlists/pl1/tracks?offset=2&limit=2","total":3}`, server.URL)
		case r.URL.Path == "/playlists/pl1/tracks":
			fmt.Fprint(w, `{"items":[
				{"added_at":"2024-01-04T03:04:05Z","track":{"id":"t2","name":"Second","uri":"spotify:track:t2","artists":[{"name":"Artist B"}]}}
			],"next":null,"total":3}`)
		case r.URL.Path == "/playlists/gone":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"status":404,"message":"Not found."}}`)
		default:
			t.Errorf("unexpected request %s", r.URL)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := spotify.New(server.Client(), spotify.WithBaseURL(server.URL+"/"))
	srv := NewSpotifyServiceWithClient(client)

	t.Run("Follows pagination and skips null tracks", func(t *testing.T) {
		playlist, err := srv.FetchPlaylist(context.Background(), "https://open.spotify.com/playlist/pl1?si=abc")
		if err != nil {
			t.Fatalf("FetchPlaylist failed: %v", err)
		}

		if playlist.Title != "Road Trip" || playlist.OwnerID != "owner1" || playlist.OwnerName != "Owner" {
			t.Errorf("unexpected metadata %+v", playlist)
		}
		if playlist.TargetTitle() != "Road Trip - by Owner" {
			t.Errorf("unexpected target title %q", playlist.TargetTitle())
		}

		if len(playlist.Tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(playlist.Tracks))
		}

		first := playlist.Tracks[0]
		if first.SourceID != "t1" || first.Artist != "Artist A" || first.Title != "First" {
			t.Errorf("unexpected first track %+v", first)
		}
		if !first.AddedAt.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
			t.Errorf("unexpected added_at %v", first.AddedAt)
		}
		if playlist.Tracks[1].SourceID != "t2" {
			t.Errorf("expected second page track t2, got %s", playlist.Tracks[1].SourceID)
		}
	})

	t.Run("Not found", func(t *testing.T) {
		_, err := srv.FetchPlaylist(context.Background(), "gone")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})
}

func TestParsePlaylistRef(t *testing.T) {
	tc := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{name: "bare id", ref: "37i9dQZF1DXcBWIGoYBM5M", want: "37i9dQZF1DXcBWIGoYBM5M"},
		{name: "uri", ref: "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", want: "37i9dQZF1DXcBWIGoYBM5M"},
		{name: "share url", ref: "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=123", want: "37i9dQZF1DXcBWIGoYBM5M"},
		{name: "localized url", ref: "https://open.spotify.com/intl-de/playlist/abc", want: "abc"},
		{name: "padded", ref: "  abc  ", want: "abc"},
		{name: "empty", ref: "", wantErr: true},
		{name: "album url", ref: "https://open.spotify.com/album/abc", wantErr: true},
		{name: "track uri", ref: "spotify:track:abc", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePlaylistRef(tt.ref)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParsePlaylistRef(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}
