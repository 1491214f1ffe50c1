// Package repository defines the persistence ports of the reservation
// engine and their backends.  The sentinel values below are shared by
// every backend so the service layer can tell failure scenarios apart
// without knowing which database is in use.
package repository

import "errors"

// ErrNotFound is returned when a reservation, destination or flight does
// not exist.  Handlers translate it into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrDuplicateReference is returned by ReservationStore.Create when the
// unique index on reference rejects the insert.  It is the storage-level
// backstop of the reference generator and is retried by the caller.
var ErrDuplicateReference = errors.New("duplicate reservation reference")

// ErrVersionConflict is returned by ReservationStore.Update when the
// stored version differs from the version the caller read.
var ErrVersionConflict = errors.New("reservation version conflict")

// ErrConflict is returned when a write collides with an existing unique
// record, such as creating a flight with an existing flight number.
var ErrConflict = errors.New("conflict")
