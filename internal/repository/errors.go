// Package repository defines the persistence boundary of the booking engine
// and its MySQL implementation.  Sentinel errors declared here are shared by
// every Store implementation so that higher layers such as services and
// handlers can distinguish failure scenarios with errors.Is.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist.  Handlers
// translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as inserting a second booking for the same user
// and event. Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
