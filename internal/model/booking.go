package model

import "time"

// Booking statuses. A booking starts in `pending` and ends in either
// `completed` or `cancelled`; both terminal states are final.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

// Payment statuses derived from the amounts recorded against a
// booking. `paid` is reachable only once an invoice total exists.
const (
	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusPartial = "partial"
	PaymentStatusPaid    = "paid"
)

// Booking records a customer's reservation of one or more slots with a
// single provider, together with its payment lifecycle. All monetary
// amounts are integer cents. The ID is a UUID generated by the caller
// before the slots are claimed, so the claim can reference a booking
// that has not been persisted yet.
//
// Fields:
//  ID                 – primary key (UUID string).
//  Code               – short human-readable booking code, unique.
//  CustomerID         – customer who owns the booking.
//  ProviderID         – staff member serving the appointment.
//  ServiceDescription – free-form description of the requested work.
//  Status             – one of the BookingStatus* constants.
//  PaymentStatus      – one of the PaymentStatus* constants.
//  SubtotalCents      – quoted subtotal before discount.
//  DiscountCents      – discount applied to the subtotal.
//  PaidCents          – total amount received so far.
//  TipCents           – portion of payments beyond the balance due.
//  InvoiceQuoteID     – external quotation id, set when finalized.
//  InvoiceTotalCents  – finalized total owed (nullable until invoiced).
//  StatusReason       – free-form reason for the last status change.
//  ProofRef           – object storage reference of the payment proof.
//  ProofURL           – public URL of the payment proof.
//  FullyPaidAt        – when the balance reached zero (nullable).
//  CreatedAt          – creation timestamp.
//  ConfirmedAt        – when staff verified the deposit (nullable).
//  CompletedAt        – when the appointment was settled (nullable).
type Booking struct {
	ID                 string     // bookings.id
	Code               string     // bookings.code
	CustomerID         uint64     // bookings.customer_id
	ProviderID         uint64     // bookings.provider_id
	ServiceDescription string     // bookings.service_description
	Status             string     // bookings.status
	PaymentStatus      string     // bookings.payment_status
	SubtotalCents      int64      // bookings.subtotal_cents
	DiscountCents      int64      // bookings.discount_cents
	PaidCents          int64      // bookings.paid_cents
	TipCents           int64      // bookings.tip_cents
	InvoiceQuoteID     *string    // bookings.invoice_quote_id (nullable)
	InvoiceTotalCents  *int64     // bookings.invoice_total_cents (nullable)
	StatusReason       string     // bookings.status_reason
	ProofRef           string     // bookings.proof_ref
	ProofURL           string     // bookings.proof_url
	FullyPaidAt        *time.Time // bookings.fully_paid_at (nullable)
	CreatedAt          time.Time  // bookings.created_at
	ConfirmedAt        *time.Time // bookings.confirmed_at (nullable)
	CompletedAt        *time.Time // bookings.completed_at (nullable)
}

// HasInvoice reports whether a finalized total exists for the booking.
// Either a quotation id or a positive invoice total qualifies.
func (b *Booking) HasInvoice() bool {
	if b.InvoiceQuoteID != nil && *b.InvoiceQuoteID != "" {
		return true
	}
	return b.InvoiceTotalCents != nil && *b.InvoiceTotalCents > 0
}

// BalanceDue returns the outstanding amount once an invoice exists.
// The boolean is false while no invoice has been attached; the value
// is advisory in that case and callers must not treat it as owed.
func (b *Booking) BalanceDue() (int64, bool) {
	if b.InvoiceTotalCents == nil {
		return 0, false
	}
	due := *b.InvoiceTotalCents - b.PaidCents
	if due < 0 {
		due = 0
	}
	return due, true
}

// IsTerminal reports whether the booking reached a final state.
func (b *Booking) IsTerminal() bool {
	return b.Status == BookingStatusCompleted || b.Status == BookingStatusCancelled
}

// CanBeCancelled reports whether a cancel transition is allowed.
func (b *Booking) CanBeCancelled() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
}

// BookingSlot links a booking to one of its slots. Position preserves
// the order the slots were requested in.
type BookingSlot struct {
	BookingID string // booking_slots.booking_id
	SlotID    uint64 // booking_slots.slot_id
	Position  int    // booking_slots.position
}

// Photo categories for client-submitted images. Payment proofs are not
// photos; they live on the booking row and are never swept.
const (
	PhotoCategoryInspiration  = "inspiration"
	PhotoCategoryCurrentState = "current_state"
)

// MaxPhotosPerCategory bounds how many images a customer may attach
// per category.
const MaxPhotosPerCategory = 3

// BookingPhoto is one client-submitted image attached to a booking.
type BookingPhoto struct {
	ID        uint64    // booking_photos.id
	BookingID string    // booking_photos.booking_id
	Category  string    // booking_photos.category
	ObjectRef string    // booking_photos.object_ref
	URL       string    // booking_photos.url
	CreatedAt time.Time // booking_photos.created_at
}
