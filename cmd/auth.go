package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/ytmirror/internal/models"
	"github.com/desertthunder/ytmirror/internal/server"
	"github.com/desertthunder/ytmirror/internal/services"
	"github.com/desertthunder/ytmirror/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// AuthSpotify performs the OAuth2 authorization code flow for Spotify and caches the token.
func (r *Runner) AuthSpotify(ctx context.Context, cmd *cli.Command) error {
	svc, err := services.NewSpotifyService(r.config.Credentials.Spotify)
	if err != nil {
		return fmt.Errorf("%w: set credentials.spotify.client_id and client_secret in %s", err, r.configPath)
	}

	state := shared.GenerateID()
	path := callbackPath(svc.RedirectURL(), "/spotify/callback")
	if err := r.doOAuth(ctx, "Spotify", svc.AuthURL(state), path, state, svc.Exchange); err != nil {
		return err
	}

	user, err := svc.CurrentUser(ctx)
	if err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Signed in as %s (%s)\n", user.Name, user.ID)
	r.writePlain("✓ Token saved to %s\n", svc.TokenPath())
	return nil
}

// AuthYouTube performs the OAuth2 flow for one quota identity and caches its token.
func (r *Runner) AuthYouTube(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	identity, err := r.identity(ctx, cmd.String("identity"))
	if err != nil {
		return err
	}

	connector := services.NewYouTubeConnector(r.config.YouTube, r.logger)
	config, err := connector.OAuthConfig(identity)
	if err != nil {
		return err
	}

	state := shared.GenerateID()
	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	path := callbackPath(config.RedirectURL, "/youtube/callback")
	exchange := func(ctx context.Context, code string) error {
		return connector.Exchange(ctx, identity, code)
	}

	provider := fmt.Sprintf("YouTube (%s)", identity.Name)
	if err := r.doOAuth(ctx, provider, authURL, path, state, exchange); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Token for %s saved to %s\n", identity.Name, identity.TokenPath)
	return nil
}

// identity finds a registered identity by name; an empty name selects the first one.
func (r *Runner) identity(ctx context.Context, name string) (models.Identity, error) {
	identities, err := r.quota.List(ctx)
	if err != nil {
		return models.Identity{}, err
	}
	if len(identities) == 0 {
		return models.Identity{}, fmt.Errorf("%w: no youtube.identities configured", shared.ErrMissingConfig)
	}
	if name == "" {
		return identities[0], nil
	}

	for _, id := range identities {
		if id.Name == name {
			return id, nil
		}
	}
	return models.Identity{}, fmt.Errorf("%w: %s", shared.ErrUnknownIdentity, name)
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, provider, authURL, path, state string, exchange server.ExchangeFunc) error {
	oauthHandler := server.NewOAuthHandler(path, provider, state, exchange)
	router := server.NewBasicRouter()
	router.Use(server.Recoverer(r.logger), server.RequestLogger(r.logger))
	router.Handler(oauthHandler)

	serverAddr := r.config.Server.Addr()
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", provider, serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for %s authorization...\n", provider)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	select {
	case result := <-oauthHandler.Result():
		if result.Error() != nil {
			return fmt.Errorf("authorization failed: %w", result.Error())
		}
		return nil
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// callbackPath returns the path component of a redirect URI.
func callbackPath(redirectURI, fallback string) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Path == "" {
		return fallback
	}
	return u.Path
}
