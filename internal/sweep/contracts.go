// Package sweep implements the periodic batch passes over booking and
// slot data: payment/appointment notifications, photo retention and
// past-slot cleanup. Sweeps are triggered externally, hold no state
// between runs and are safe to re-run at any time; de-duplication
// comes from the notification log's uniqueness constraint and from
// conditional writes in the repositories, never from sweep-local
// bookkeeping. Per-item failures are counted and skipped, they never
// abort the remaining batch.
package sweep

import (
	"context"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// Dispatcher delivers one reminder event to the outside world. The
// sweep calls it before writing the notification log entry; when Send
// fails the log entry is withheld so the reminder is retried on the
// next pass.
type Dispatcher interface {
	Send(ctx context.Context, bookingID, bookingCode string, customerID uint64, notifType string) error
}

// NotificationLogStore records emitted notifications. Insert returns
// repository.ErrDuplicate when the (booking, type) pair already exists.
type NotificationLogStore interface {
	Insert(ctx context.Context, bookingID, notifType string, scheduledFor, sentAt time.Time) error
	Exists(ctx context.Context, bookingID, notifType string) (bool, error)
}

// BookingSource is the read side the sweeps need from the booking
// repository.
type BookingSource interface {
	PendingUnpaid(ctx context.Context) ([]model.Booking, error)
	ConfirmedUpcoming(ctx context.Context, now time.Time) ([]repository.UpcomingBooking, error)
	CompletedWithPhotosBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	ListPhotos(ctx context.Context, bookingID string) ([]model.BookingPhoto, error)
	DeletePhoto(ctx context.Context, photoID uint64) error
}

// Canceller terminates a booking through the regular lifecycle rules,
// releasing its slots. The unpaid auto-cancel goes through here so the
// sweep can never bypass the state machine.
type Canceller interface {
	Cancel(ctx context.Context, actor, id, reason string) (model.Booking, error)
}

// SlotCleaner deletes past slots that no live booking references.
type SlotCleaner interface {
	SweepUnbookedPast(ctx context.Context, now time.Time) (int64, error)
}

// Throttle bounds how often an action may run across every instance of
// the service. Allow reports whether the caller won the slot for the
// given key; losers simply skip the action.
type Throttle interface {
	Allow(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Summary aggregates the outcome of one sweep pass. Per-item failures
// land in Failed and never abort the pass.
type Summary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Cancelled int `json:"cancelled"`
	Deleted   int `json:"deleted"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}
