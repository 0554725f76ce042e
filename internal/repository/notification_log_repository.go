package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
)

// NotificationLogRepo persists the idempotency records for scheduled
// notifications. The table carries UNIQUE(booking_id, type); that
// constraint, not application logic, is what deduplicates concurrent
// sweep passes. Rows are inserted once and never updated.
type NotificationLogRepo struct {
	db *sql.DB
}

// NewNotificationLogRepo returns a repo bound to the given database.
func NewNotificationLogRepo(db *sql.DB) *NotificationLogRepo {
	return &NotificationLogRepo{db: db}
}

// Insert records that a notification of the given type was emitted
// for the booking. When another sweep pass already wrote the same
// (booking, type) pair the duplicate-key violation is mapped to
// ErrDuplicate so callers can treat it as "already sent".
func (r *NotificationLogRepo) Insert(ctx context.Context, bookingID, notifType string, scheduledFor, sentAt time.Time) error {
	const q = `INSERT INTO notification_log (booking_id, type, scheduled_for, sent_at)
	           VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, bookingID, notifType, scheduledFor, sentAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// Exists reports whether a log entry for (booking, type) is present.
// The sweep uses it to skip work early; the insert remains the real
// guard against duplicates.
func (r *NotificationLogRepo) Exists(ctx context.Context, bookingID, notifType string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM notification_log WHERE booking_id = ? AND type = ? LIMIT 1`,
		bookingID, notifType).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListByBooking returns every notification recorded for a booking in
// emission order.
func (r *NotificationLogRepo) ListByBooking(ctx context.Context, bookingID string) ([]model.NotificationLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, booking_id, type, scheduled_for, sent_at
		 FROM notification_log WHERE booking_id = ? ORDER BY sent_at`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.NotificationLog, 0)
	for rows.Next() {
		var n model.NotificationLog
		if err := rows.Scan(&n.ID, &n.BookingID, &n.Type, &n.ScheduledFor, &n.SentAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
