// ABOUTME: Common storage errors
// ABOUTME: Shared by the SQLite and Badger backends

package storage

import "errors"

// ErrNotFound is returned when a requested position does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnknownBackend is returned for a backend name Open does not support.
var ErrUnknownBackend = errors.New("unknown storage backend")
