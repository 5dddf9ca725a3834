// Package services implements the remote collaborators of the mirror engine.
//
// # Source
//
// [SpotifyService] implements [SourceProvider] on top of github.com/zmb3/spotify/v2. Playlists are
// fetched completely, following page links until the API reports no more pages. Entries without a
// track id (removed tracks, local files, episodes) are skipped.
//
// # Target
//
// [YouTubeService] implements [VideoPlatform] on the YouTube Data API v3. Every request waits on a
// shared [rate.Limiter] first. [YouTubeConnector] builds one service per quota identity from that
// identity's client secret file and cached token.
//
// # Tokens
//
// [TokenCache] stores OAuth tokens as JSON files. Refreshed tokens are written back by the token
// source returned from [PersistingTokenSource], so an identity authorized once keeps working.
//
// # Error Handling
//
// Remote failures are classified with [Classify]:
//   - [shared.ErrQuotaExhausted] : HTTP 403 with reason quotaExceeded or dailyLimitExceeded
//   - [shared.ErrItemNotFound] : HTTP 404 on a playlist item
//   - [shared.ErrNotAuthenticated] : HTTP 401 or a missing token
//   - [shared.ErrAPIRequest] : everything else
//
// The original error stays in the chain, so callers can still inspect the [googleapi.Error].
package services
