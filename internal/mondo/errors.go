package mondo

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToken is returned when an authenticated call or a refresh is
	// attempted before any token has been obtained or adopted.
	ErrNoToken = errors.New("no token available, authorization required")

	// ErrNoAccount is returned when an account-scoped call has no account id
	// to work with.
	ErrNoAccount = errors.New("no account available")

	// ErrEmptyID is returned when a call that addresses a single resource is
	// made without the resource id.
	ErrEmptyID = errors.New("resource id is empty")

	// ErrMalformedResponse is returned when a successful response lacks the
	// key its payload is wrapped in.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrForeignURL is returned by Request for an absolute URL outside the
	// API base, which would otherwise receive the bearer token.
	ErrForeignURL = errors.New("url is outside the api base")
)

func missingKey(op, key string) error {
	return fmt.Errorf("%s: %w: response has no %q", op, ErrMalformedResponse, key)
}

// AuthError reports that the token endpoint rejected an authorization code or
// a refresh token. The caller has to restart the authorization flow.
type AuthError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: rejected with status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// APIError reports a resource call that returned a non-success status.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}
