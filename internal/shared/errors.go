package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")

	// API and service errors
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrTrackNotFound    = fmt.Errorf("track not found")

	// Input validation errors
	ErrInvalidInput = fmt.Errorf("invalid input")
)

// UpstreamError reports a failed call to the provider API.
//
// Status carries the provider's HTTP status code. A Status of zero means the
// request never completed (transport failure or timeout); Err holds the cause.
type UpstreamError struct {
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("spotify API request failed: %v", e.Err)
	}
	return fmt.Sprintf("spotify API error: status %d", e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
