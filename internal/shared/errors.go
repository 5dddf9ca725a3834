package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrItemNotFound     = fmt.Errorf("playlist item not found")

	// Quota errors
	ErrQuotaExhausted      = fmt.Errorf("request quota exhausted")
	ErrNoAvailableIdentity = fmt.Errorf("no identity with available quota")
	ErrUnknownIdentity     = fmt.Errorf("unknown identity")

	// Resolution errors
	ErrNoMatch             = fmt.Errorf("no matching video")
	ErrAmbiguousSourceData = fmt.Errorf("malformed video statistics")

	// Mirror store errors
	ErrDuplicateIdentity = fmt.Errorf("record already mirrored")
	ErrNotFound          = fmt.Errorf("record not found")

	// Playback errors
	ErrSessionClosed = fmt.Errorf("playback session not connected")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
