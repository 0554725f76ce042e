// Package lifecycle drives a booking through its state machine:
// pending → confirmed/cancelled → completed. It owns the
// claim-then-persist creation protocol, the mirroring of booking
// status onto slots, and the payment bookkeeping done through the
// ledger package. All cross-request safety comes from conditional
// writes in the repositories; this package holds no locks.
package lifecycle

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/studio-booking/internal/audit"
	"github.com/iliyamo/studio-booking/internal/ledger"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/storage"
)

// SlotRegistry is the slice of the slot repository the lifecycle
// needs for the creation saga: atomic claims and the compensating
// release. Status mirroring on transitions is owned by the
// BookingStore, inside the same write as the booking update.
type SlotRegistry interface {
	ClaimSlots(ctx context.Context, slotIDs []uint64, bookingID string) error
	ReleaseForBooking(ctx context.Context, bookingID string, now time.Time) error
	GetByIDs(ctx context.Context, ids []uint64) ([]model.Slot, error)
}

// BookingStore is the slice of the booking repository the lifecycle
// needs. Every Mark* call is a conditional write that reports whether
// it matched, so lost races surface as ordinary invalid transitions.
// Mark* transitions apply the booking update and its slot mirror
// (confirm/complete) or slot release (cancel) atomically: a failed
// call leaves neither side changed.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking, slotIDs []uint64) error
	GetByID(ctx context.Context, id string) (model.Booking, error)
	SlotIDs(ctx context.Context, bookingID string) ([]uint64, error)
	MarkConfirmed(ctx context.Context, id string, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id, reason string, now time.Time) (bool, error)
	MarkCompleted(ctx context.Context, id string, at time.Time, paidCents, tipCents int64, paymentStatus string, fullyPaidAt *time.Time) (bool, error)
	UpdatePayment(ctx context.Context, id string, paidCents, tipCents int64, paymentStatus string, fullyPaidAt *time.Time) (bool, error)
	SetInvoice(ctx context.Context, id string, quoteID string, totalCents, tipCents int64, paymentStatus string, fullyPaidAt *time.Time) (bool, error)
	SetProof(ctx context.Context, id, ref, url string) (bool, error)
	CountPhotos(ctx context.Context, bookingID, category string) (int, error)
	AddPhoto(ctx context.Context, p model.BookingPhoto) error
}

// CustomerStats receives aggregate updates when bookings complete.
type CustomerStats interface {
	RecordCompletedBooking(ctx context.Context, customerID uint64, paidCents int64) error
}

// Service wires the collaborators together. The location is the
// studio's local timezone: slot date/time comparisons are wall clock
// comparisons, not UTC ones.
type Service struct {
	slots    SlotRegistry
	bookings BookingStore
	stats    CustomerStats
	store    storage.ObjectStore
	auditor  audit.Recorder
	loc      *time.Location
	now      func() time.Time
}

// NewService constructs a lifecycle service. A nil now falls back to
// time.Now; tests inject a fixed clock.
func NewService(slots SlotRegistry, bookings BookingStore, stats CustomerStats,
	store storage.ObjectStore, auditor audit.Recorder, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		slots:    slots,
		bookings: bookings,
		stats:    stats,
		store:    store,
		auditor:  auditor,
		loc:      loc,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) localNow() time.Time { return s.now().In(s.loc) }

// CreateRequest carries everything needed to open a booking.
type CreateRequest struct {
	CustomerID         uint64
	ProviderID         uint64
	SlotIDs            []uint64
	ServiceDescription string
	SubtotalCents      int64
	DiscountCents      int64
}

// Create reserves the requested slots and persists the booking. The
// protocol is a two-step saga: (1) claim every slot under a booking id
// generated up front, (2) persist the booking record. When step 2
// fails the claim is rolled back by releasing the slots, so nothing is
// ever left reserved without an owning booking.
func (s *Service) Create(ctx context.Context, req CreateRequest) (model.Booking, error) {
	slotIDs := dedupe(req.SlotIDs)
	if len(slotIDs) == 0 {
		return model.Booking{}, repository.ErrPreconditionFailed
	}
	// Validate the requested slots before racing for them: they must
	// all exist, belong to the requested provider, be visible and lie
	// in the future. The claim's conditional writes still decide who
	// wins contested slots.
	slots, err := s.slots.GetByIDs(ctx, slotIDs)
	if err != nil {
		return model.Booking{}, err
	}
	if len(slots) != len(slotIDs) {
		return model.Booking{}, repository.ErrNotFound
	}
	now := s.localNow()
	for i := range slots {
		sl := &slots[i]
		if sl.ProviderID != req.ProviderID || sl.IsHidden {
			return model.Booking{}, repository.ErrPreconditionFailed
		}
		if sl.IsPast(now) {
			return model.Booking{}, repository.ErrPreconditionFailed
		}
	}

	b := model.Booking{
		ID:                 uuid.NewString(),
		Code:               newBookingCode(),
		CustomerID:         req.CustomerID,
		ProviderID:         req.ProviderID,
		ServiceDescription: req.ServiceDescription,
		Status:             model.BookingStatusPending,
		PaymentStatus:      model.PaymentStatusUnpaid,
		SubtotalCents:      req.SubtotalCents,
		DiscountCents:      req.DiscountCents,
	}

	if err := s.slots.ClaimSlots(ctx, slotIDs, b.ID); err != nil {
		return model.Booking{}, err
	}
	if err := s.bookings.Create(ctx, &b, slotIDs); err != nil {
		// Compensating action: the claim succeeded but the booking
		// record did not land, so hand the slots back.
		_ = s.slots.ReleaseForBooking(ctx, b.ID, s.localNow())
		return model.Booking{}, err
	}
	s.auditor.Record("customer:"+itoa(req.CustomerID), "booking.create", b.ID, b.Code)
	return s.bookings.GetByID(ctx, b.ID)
}

// Confirm verifies the deposit and moves a pending booking to
// confirmed. A recorded payment proof is required; without one the
// request fails with ErrPreconditionFailed and nothing changes.
func (s *Service) Confirm(ctx context.Context, actor, id string) (model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Status != model.BookingStatusPending {
		return model.Booking{}, repository.ErrInvalidTransition
	}
	if b.ProofRef == "" {
		return model.Booking{}, repository.ErrPreconditionFailed
	}
	ok, err := s.bookings.MarkConfirmed(ctx, id, s.now().UTC())
	if err != nil {
		return model.Booking{}, err
	}
	if !ok {
		// Someone else moved the booking between our read and write.
		return model.Booking{}, repository.ErrInvalidTransition
	}
	s.auditor.Record(actor, "booking.confirm", id, "")
	return s.bookings.GetByID(ctx, id)
}

// Cancel moves a pending or confirmed booking to cancelled, records
// the reason and releases its future slots back to the pool. Slots
// whose time has already passed keep a terminal status. Cancel is
// used by staff, by customers (on their own bookings) and by the
// unpaid auto-cancel sweep.
func (s *Service) Cancel(ctx context.Context, actor, id, reason string) (model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if !b.CanBeCancelled() {
		return model.Booking{}, repository.ErrInvalidTransition
	}
	ok, err := s.bookings.MarkCancelled(ctx, id, reason, s.localNow())
	if err != nil {
		return model.Booking{}, err
	}
	if !ok {
		return model.Booking{}, repository.ErrInvalidTransition
	}
	s.auditor.Record(actor, "booking.cancel", id, reason)
	return s.bookings.GetByID(ctx, id)
}

// Complete settles a booking: the final payment (possibly zero when
// everything was paid up front) is applied through the ledger, the
// booking and its slots become completed, and the customer's
// aggregate statistics are updated. An invoice must exist before
// completion; settling without a finalized total has no meaning.
func (s *Service) Complete(ctx context.Context, actor, id string, finalPaymentCents int64) (model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.IsTerminal() {
		return model.Booking{}, repository.ErrInvalidTransition
	}
	if !b.HasInvoice() {
		return model.Booking{}, repository.ErrPreconditionFailed
	}
	if finalPaymentCents < 0 {
		return model.Booking{}, repository.ErrPreconditionFailed
	}

	app := ledger.Apply(&b, finalPaymentCents)
	b.PaidCents += finalPaymentCents
	b.TipCents += app.TipCents
	status := ledger.StatusFor(&b)
	fullyPaidAt := b.FullyPaidAt
	if status == model.PaymentStatusPaid && fullyPaidAt == nil {
		t := s.now().UTC()
		fullyPaidAt = &t
	}

	ok, err := s.bookings.MarkCompleted(ctx, id, s.now().UTC(), b.PaidCents, b.TipCents, status, fullyPaidAt)
	if err != nil {
		return model.Booking{}, err
	}
	if !ok {
		return model.Booking{}, repository.ErrInvalidTransition
	}
	if err := s.stats.RecordCompletedBooking(ctx, b.CustomerID, b.PaidCents); err != nil {
		// Aggregates are derived data; failing the completion over
		// them would strand a settled appointment.
		s.auditor.Record(actor, "booking.stats_failed", id, err.Error())
	}
	s.auditor.Record(actor, "booking.complete", id, "")
	return s.bookings.GetByID(ctx, id)
}

// RecordPayment applies a manually verified payment against a live
// booking. The split between balance and tip follows the ledger
// rules; paymentStatus is rederived afterwards.
func (s *Service) RecordPayment(ctx context.Context, actor, id string, amountCents int64) (model.Booking, error) {
	if amountCents <= 0 {
		return model.Booking{}, repository.ErrPreconditionFailed
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.IsTerminal() {
		return model.Booking{}, repository.ErrInvalidTransition
	}
	app := ledger.Apply(&b, amountCents)
	b.PaidCents += amountCents
	b.TipCents += app.TipCents
	status := ledger.StatusFor(&b)
	fullyPaidAt := b.FullyPaidAt
	if status == model.PaymentStatusPaid && fullyPaidAt == nil {
		t := s.now().UTC()
		fullyPaidAt = &t
	}
	ok, err := s.bookings.UpdatePayment(ctx, id, b.PaidCents, b.TipCents, status, fullyPaidAt)
	if err != nil {
		return model.Booking{}, err
	}
	if !ok {
		return model.Booking{}, repository.ErrInvalidTransition
	}
	s.auditor.Record(actor, "booking.payment", id, itoa64(amountCents))
	return s.bookings.GetByID(ctx, id)
}

// AttachInvoice records the finalized quotation for a booking. Until
// this happens the booking can never report paymentStatus=paid, no
// matter how much money was received. Payments taken before the total
// was known could not be split yet, so the tip is rederived from the
// finalized total: whatever was paid beyond it becomes tip.
func (s *Service) AttachInvoice(ctx context.Context, actor, id, quoteID string, totalCents int64) (model.Booking, error) {
	if quoteID == "" && totalCents <= 0 {
		return model.Booking{}, repository.ErrPreconditionFailed
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.IsTerminal() {
		return model.Booking{}, repository.ErrInvalidTransition
	}
	b.InvoiceQuoteID = &quoteID
	b.InvoiceTotalCents = &totalCents
	b.TipCents = 0
	if over := b.PaidCents - totalCents; over > 0 {
		b.TipCents = over
	}
	status := ledger.StatusFor(&b)
	fullyPaidAt := b.FullyPaidAt
	if status == model.PaymentStatusPaid && fullyPaidAt == nil {
		t := s.now().UTC()
		fullyPaidAt = &t
	}
	ok, err := s.bookings.SetInvoice(ctx, id, quoteID, totalCents, b.TipCents, status, fullyPaidAt)
	if err != nil {
		return model.Booking{}, err
	}
	if !ok {
		return model.Booking{}, repository.ErrInvalidTransition
	}
	s.auditor.Record(actor, "booking.invoice", id, quoteID)
	return s.bookings.GetByID(ctx, id)
}

// AttachProof uploads a payment proof image and points the booking at
// it. At most one proof is active: the previous remote object is
// deleted, but only after the new one is durably referenced, so a
// failed delete can never leave the booking proof-less. When the
// booking turns out to be terminal the fresh upload is removed again.
func (s *Service) AttachProof(ctx context.Context, actor, id string, data []byte, filename string) (model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.IsTerminal() {
		return model.Booking{}, repository.ErrInvalidTransition
	}
	obj, err := s.store.Upload(ctx, data, "proofs", filename)
	if err != nil {
		return model.Booking{}, err
	}
	ok, err := s.bookings.SetProof(ctx, id, obj.Ref, obj.URL)
	if err != nil || !ok {
		// The booking did not take the reference; clean up the upload.
		_ = s.store.Delete(ctx, obj.Ref)
		if err != nil {
			return model.Booking{}, err
		}
		return model.Booking{}, repository.ErrInvalidTransition
	}
	if b.ProofRef != "" && b.ProofRef != obj.Ref {
		// Best effort: the new proof is already referenced, a stale
		// object at worst lingers until manual cleanup.
		_ = s.store.Delete(ctx, b.ProofRef)
	}
	s.auditor.Record(actor, "booking.proof", id, obj.Ref)
	return s.bookings.GetByID(ctx, id)
}

// AddPhoto uploads one client photo (inspiration or current state)
// and attaches it to the booking, enforcing the per-category limit.
func (s *Service) AddPhoto(ctx context.Context, actor, id, category string, data []byte, filename string) error {
	if category != model.PhotoCategoryInspiration && category != model.PhotoCategoryCurrentState {
		return repository.ErrPreconditionFailed
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if b.IsTerminal() {
		return repository.ErrInvalidTransition
	}
	n, err := s.bookings.CountPhotos(ctx, id, category)
	if err != nil {
		return err
	}
	if n >= model.MaxPhotosPerCategory {
		return repository.ErrPreconditionFailed
	}
	obj, err := s.store.Upload(ctx, data, "photos", filename)
	if err != nil {
		return err
	}
	p := model.BookingPhoto{BookingID: id, Category: category, ObjectRef: obj.Ref, URL: obj.URL}
	if err := s.bookings.AddPhoto(ctx, p); err != nil {
		_ = s.store.Delete(ctx, obj.Ref)
		return err
	}
	s.auditor.Record(actor, "booking.photo", id, category)
	return nil
}

// newBookingCode builds a short human-readable code such as
// "BK-4F21A9". Uniqueness is enforced by the database; the collision
// chance for 4 random bytes is acceptable for a studio's volume.
func newBookingCode() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// Fall back to a uuid fragment; rand.Read failing at all
		// means the host is in serious trouble anyway.
		return "BK-" + strings.ToUpper(uuid.NewString()[:8])
	}
	return "BK-" + strings.ToUpper(hex.EncodeToString(buf))
}

// dedupe drops zero and repeated ids and returns the rest in
// ascending order. The sorted order matters: every claim acquires
// slots along the same global order, so two overlapping claims always
// contest their first shared slot first and exactly one of them backs
// off.
func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func itoa(v uint64) string  { return strconv.FormatUint(v, 10) }
func itoa64(v int64) string { return strconv.FormatInt(v, 10) }
