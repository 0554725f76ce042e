package model

import "time"

// Slot statuses. A slot mirrors the status of its owning booking
// once claimed; only `available` slots can be claimed or deleted.
const (
	SlotStatusAvailable = "available"
	SlotStatusPending   = "pending"
	SlotStatusConfirmed = "confirmed"
	SlotStatusCompleted = "completed"
	SlotStatusCancelled = "cancelled"
)

// Slot describes one bookable time unit for a provider. The calendar
// day and clock time are stored as plain strings in the studio's local
// time ("2006-01-02" and "15:04") because customers book against wall
// clock times, not instants. A slot is claimed by at most one booking
// at a time; BookingID carries the reverse reference.
//
// Fields:
//  ID        – primary key identifier.
//  ProviderID – staff member who serves this slot.
//  Date      – calendar day, "2006-01-02".
//  Time      – local clock time, "15:04".
//  Status    – one of the SlotStatus* constants.
//  SlotType  – free-form category (e.g. "standard", "extended").
//  IsHidden  – hidden slots are not offered to customers.
//  Notes     – staff-facing notes.
//  BookingID – owning booking when claimed (nullable).
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Slot struct {
	ID         uint64    // slots.id
	ProviderID uint64    // slots.provider_id
	Date       string    // slots.slot_date
	Time       string    // slots.slot_time
	Status     string    // slots.status
	SlotType   string    // slots.slot_type
	IsHidden   bool      // slots.is_hidden
	Notes      string    // slots.notes
	BookingID  *string   // slots.booking_id (nullable)
	CreatedAt  time.Time // slots.created_at
	UpdatedAt  time.Time // slots.updated_at
}

// SlotTimeLayout is the combined layout used when parsing a slot's
// date and time into a single wall clock instant.
const SlotTimeLayout = "2006-01-02 15:04"

// StartTime parses the slot's date and time in the given location.
// It returns the zero time when the stored strings are malformed so
// that callers can treat unparseable slots as never starting.
func (s *Slot) StartTime(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(SlotTimeLayout, s.Date+" "+s.Time, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// IsPast reports whether the slot's start is strictly before now.
func (s *Slot) IsPast(now time.Time) bool {
	start := s.StartTime(now.Location())
	if start.IsZero() {
		return false
	}
	return start.Before(now)
}
