package api

import (
	"errors"
	"fmt"
)

// Failure classes. Every RemoteFetchError and RemoteMutationError wraps
// exactly one of these.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrTransport    = errors.New("transport failure")
)

// RemoteFetchError reports a failed read (listing, entity or workflow status).
type RemoteFetchError struct {
	Path string
	Err  error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Path, e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// RemoteMutationError reports a rejected or undeliverable mutation request.
// When it is returned no workflow was started.
type RemoteMutationError struct {
	Path string
	Err  error
}

func (e *RemoteMutationError) Error() string {
	return fmt.Sprintf("mutate %s: %v", e.Path, e.Err)
}

func (e *RemoteMutationError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err stems from a 401 or 403 response.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }
