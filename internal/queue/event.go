// Package queue defines message payloads exchanged over the message broker.
package queue

// ReminderEvent is published when the notification sweep decides a
// reminder (or the unpaid auto-cancel notice) is due for a booking.
// Actual delivery to the customer (email/SMS) happens in a downstream
// consumer; the engine only schedules.
type ReminderEvent struct {
	BookingID   string `json:"booking_id"`
	BookingCode string `json:"booking_code"`
	CustomerID  uint64 `json:"customer_id"`
	Type        string `json:"type"`
	ScheduledAt string `json:"scheduled_at"`
}
