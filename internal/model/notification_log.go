package model

import "time"

// Notification types emitted by the notification sweep. The payment_*
// types count from booking creation; the appt_* types count down to
// the earliest slot start. payment_24h_cancel records the terminal
// auto-cancel action rather than a reminder.
const (
	NotificationPayment6h        = "payment_6h"
	NotificationPayment12h       = "payment_12h"
	NotificationPayment23h       = "payment_23h"
	NotificationPayment24hCancel = "payment_24h_cancel"
	NotificationAppt24h          = "appt_24h"
	NotificationAppt2h           = "appt_2h"
)

// NotificationLog is the idempotency record for one scheduled
// notification. The database enforces UNIQUE(booking_id, type); the
// sweep relies on that constraint, not on its own window logic, to
// guarantee at-most-once emission. Rows are never updated.
type NotificationLog struct {
	ID           uint64    // notification_log.id
	BookingID    string    // notification_log.booking_id
	Type         string    // notification_log.type
	ScheduledFor time.Time // notification_log.scheduled_for
	SentAt       time.Time // notification_log.sent_at
}
