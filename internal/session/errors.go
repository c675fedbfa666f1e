// Package session holds the in-memory per-session execution state: the
// turn lock that serializes a session's turns, the profile read-through
// cache and the last-known history cursor.
package session

import "errors"

// Sentinel errors for registry operations.
var (
	// ErrEmptySessionID indicates a missing session identifier.
	ErrEmptySessionID = errors.New("session: empty session id")

	// ErrNoProfileStore indicates the registry was built without a
	// profile store and cannot load profiles.
	ErrNoProfileStore = errors.New("session: no profile store configured")
)
