package errors

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

// NewGoogleAPIError classifies an error returned by a Google API call.
// Rate limiting, server errors and transport failures are reported as
// ErrRemoteUnavailable; every other API status is reported as ErrAPIError.
func NewGoogleAPIError(msg string, cause error) error {
	var gErr *googleapi.Error
	if errors.As(cause, &gErr) {
		if gErr.Code == http.StatusTooManyRequests || gErr.Code >= http.StatusInternalServerError {
			return NewRemoteUnavailable(msg, cause)
		}
		return NewAPIError(msg, cause)
	}
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return NewAPIError(msg, cause)
	}
	return NewRemoteUnavailable(msg, cause)
}

// IsGoogleAPINotFound reports whether err is a Google API 404 response.
func IsGoogleAPINotFound(err error) bool {
	var gErr *googleapi.Error
	return errors.As(err, &gErr) && gErr.Code == http.StatusNotFound
}
