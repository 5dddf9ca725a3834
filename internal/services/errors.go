package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/ytmirror/internal/shared"
	"google.golang.org/api/googleapi"
)

var quotaReasons = map[string]bool{
	"quotaExceeded":      true,
	"dailyLimitExceeded": true,
}

// IsQuotaError reports whether err carries a YouTube quota rejection.
func IsQuotaError(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusForbidden {
		return false
	}

	for _, item := range gerr.Errors {
		if quotaReasons[item.Reason] {
			return true
		}
	}
	return false
}

// Classify wraps a YouTube API error with the matching sentinel from [shared], keeping err in the chain.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	if IsQuotaError(err) {
		return fmt.Errorf("%w: %s: %w", shared.ErrQuotaExhausted, op, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s: %w", shared.ErrItemNotFound, op, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s: %w", shared.ErrNotAuthenticated, op, err)
		}
	}

	return fmt.Errorf("%w: %s: %w", shared.ErrAPIRequest, op, err)
}
