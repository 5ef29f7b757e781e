// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrNotFound indicates that a lookup matched no document,
// while ErrStaleDocument signals that a compare-and-swap update lost a
// race with a concurrent writer and should be retried after re-reading.
package repository

import "errors"

// ErrNotFound is returned when a document lookup matches nothing.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert collides with the unique
// email of an existing account. The original system reports this as
// HTTP 400 rather than 409, and handlers preserve that.
var ErrEmailExists = errors.New("email already exists")

// ErrStaleDocument is returned when a revision-filtered update matched no
// document because the revision moved underneath the caller. Callers
// re-read and retry a bounded number of times.
var ErrStaleDocument = errors.New("stale document revision")
