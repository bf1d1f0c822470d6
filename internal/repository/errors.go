// Package repository stores simulation run records.  The sentinel errors
// below are shared by every backend so handlers can map them to HTTP
// status codes without knowing which store is configured.
package repository

import "errors"

// ErrRunNotFound is returned when no record exists for a run ID, or the
// record has expired.  Handlers translate this into a 404 response.
var ErrRunNotFound = errors.New("run not found")

// ErrRunExists is returned by Create when the ID is already taken.
var ErrRunExists = errors.New("run already exists")
