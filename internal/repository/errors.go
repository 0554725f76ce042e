// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrSlotConflict indicates that another booking won the race
// for a requested slot, while ErrInvalidTransition signals that a
// requested state change is not reachable from the booking's current
// state.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrSlotConflict is returned when a claim finds at least one of the
// requested slots no longer available. The whole claim fails and no
// slot remains reserved. Handlers should translate this into an HTTP
// 409 response; the caller may retry with different slots.
var ErrSlotConflict = errors.New("slot conflict")

// ErrInvalidTransition is returned when a booking state change is not
// reachable from the current state, for example completing a booking
// that is already cancelled. The request is not retryable.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrPreconditionFailed is returned when an operation's precondition
// does not hold, such as deleting a slot that is not available or
// confirming a booking without a recorded payment proof. Handlers
// should translate this into an HTTP 422 response.
var ErrPreconditionFailed = errors.New("precondition failed")

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrDuplicate is returned when an insert violates a uniqueness
// constraint. The notification sweep treats this as "already sent"
// rather than as a failure.
var ErrDuplicate = errors.New("duplicate record")

// isDuplicateKey reports whether the error is a MySQL duplicate-entry
// violation (error 1062). The unique constraints on notification_log
// and bookings.code surface through this check.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
