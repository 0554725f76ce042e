package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/audit"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/storage"
)

// fakeSlots implements SlotRegistry in memory.
type fakeSlots struct {
	slots    map[uint64]model.Slot
	claims   map[uint64]string // slot id -> booking id
	order    []uint64          // slot ids in the order they were claimed
	released []string          // booking ids whose slots were released
	marked   map[string]string // booking id -> last mirrored status
	claimErr error
}

func newFakeSlots(slots ...model.Slot) *fakeSlots {
	f := &fakeSlots{
		slots:  make(map[uint64]model.Slot),
		claims: make(map[uint64]string),
		marked: make(map[string]string),
	}
	for _, s := range slots {
		f.slots[s.ID] = s
	}
	return f
}

func (f *fakeSlots) ClaimSlots(ctx context.Context, slotIDs []uint64, bookingID string) error {
	if f.claimErr != nil {
		return f.claimErr
	}
	for _, id := range slotIDs {
		if _, taken := f.claims[id]; taken {
			return repository.ErrSlotConflict
		}
	}
	for _, id := range slotIDs {
		f.claims[id] = bookingID
		f.order = append(f.order, id)
	}
	return nil
}

func (f *fakeSlots) ReleaseForBooking(ctx context.Context, bookingID string, now time.Time) error {
	f.release(bookingID)
	return nil
}

func (f *fakeSlots) release(bookingID string) {
	f.released = append(f.released, bookingID)
	for id, owner := range f.claims {
		if owner == bookingID {
			delete(f.claims, id)
		}
	}
}

func (f *fakeSlots) GetByIDs(ctx context.Context, ids []uint64) ([]model.Slot, error) {
	out := make([]model.Slot, 0, len(ids))
	for _, id := range ids {
		if s, ok := f.slots[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// fakeBookings implements BookingStore in memory with the same
// conditional-write semantics as the SQL repository. Transitions
// mirror onto the linked fakeSlots in the same call, matching the
// repository's all-or-nothing transaction: an injected error mutates
// nothing.
type fakeBookings struct {
	byID        map[string]*model.Booking
	photos      map[string][]model.BookingPhoto
	slots       *fakeSlots
	createErr   error
	cancelErr   error
	proofDenied bool // force SetProof to report no match
}

func newFakeBookings(existing ...*model.Booking) *fakeBookings {
	f := &fakeBookings{
		byID:   make(map[string]*model.Booking),
		photos: make(map[string][]model.BookingPhoto),
	}
	for _, b := range existing {
		f.byID[b.ID] = b
	}
	return f
}

func (f *fakeBookings) Create(ctx context.Context, b *model.Booking, slotIDs []uint64) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *b
	f.byID[b.ID] = &cp
	return nil
}

func (f *fakeBookings) GetByID(ctx context.Context, id string) (model.Booking, error) {
	b, ok := f.byID[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return *b, nil
}

func (f *fakeBookings) SlotIDs(ctx context.Context, bookingID string) ([]uint64, error) {
	return nil, nil
}

func (f *fakeBookings) MarkConfirmed(ctx context.Context, id string, at time.Time) (bool, error) {
	b, ok := f.byID[id]
	if !ok || b.Status != model.BookingStatusPending || b.ProofRef == "" {
		return false, nil
	}
	b.Status = model.BookingStatusConfirmed
	b.ConfirmedAt = &at
	if f.slots != nil {
		f.slots.marked[id] = model.SlotStatusConfirmed
	}
	return true, nil
}

func (f *fakeBookings) MarkCancelled(ctx context.Context, id, reason string, now time.Time) (bool, error) {
	if f.cancelErr != nil {
		return false, f.cancelErr
	}
	b, ok := f.byID[id]
	if !ok || !b.CanBeCancelled() {
		return false, nil
	}
	b.Status = model.BookingStatusCancelled
	b.StatusReason = reason
	if f.slots != nil {
		f.slots.release(id)
	}
	return true, nil
}

func (f *fakeBookings) MarkCompleted(ctx context.Context, id string, at time.Time, paidCents, tipCents int64, paymentStatus string, fullyPaidAt *time.Time) (bool, error) {
	b, ok := f.byID[id]
	if !ok || b.IsTerminal() {
		return false, nil
	}
	b.Status = model.BookingStatusCompleted
	b.CompletedAt = &at
	b.PaidCents = paidCents
	b.TipCents = tipCents
	b.PaymentStatus = paymentStatus
	b.FullyPaidAt = fullyPaidAt
	if f.slots != nil {
		f.slots.marked[id] = model.SlotStatusCompleted
	}
	return true, nil
}

func (f *fakeBookings) UpdatePayment(ctx context.Context, id string, paidCents, tipCents int64, paymentStatus string, fullyPaidAt *time.Time) (bool, error) {
	b, ok := f.byID[id]
	if !ok || b.IsTerminal() {
		return false, nil
	}
	b.PaidCents = paidCents
	b.TipCents = tipCents
	b.PaymentStatus = paymentStatus
	b.FullyPaidAt = fullyPaidAt
	return true, nil
}

func (f *fakeBookings) SetInvoice(ctx context.Context, id string, quoteID string, totalCents, tipCents int64, paymentStatus string, fullyPaidAt *time.Time) (bool, error) {
	b, ok := f.byID[id]
	if !ok || b.IsTerminal() {
		return false, nil
	}
	b.InvoiceQuoteID = &quoteID
	b.InvoiceTotalCents = &totalCents
	b.TipCents = tipCents
	b.PaymentStatus = paymentStatus
	b.FullyPaidAt = fullyPaidAt
	return true, nil
}

func (f *fakeBookings) SetProof(ctx context.Context, id, ref, url string) (bool, error) {
	b, ok := f.byID[id]
	if !ok || b.IsTerminal() || f.proofDenied {
		return false, nil
	}
	b.ProofRef = ref
	b.ProofURL = url
	return true, nil
}

func (f *fakeBookings) CountPhotos(ctx context.Context, bookingID, category string) (int, error) {
	n := 0
	for _, p := range f.photos[bookingID] {
		if p.Category == category {
			n++
		}
	}
	return n, nil
}

func (f *fakeBookings) AddPhoto(ctx context.Context, p model.BookingPhoto) error {
	f.photos[p.BookingID] = append(f.photos[p.BookingID], p)
	return nil
}

// fakeStats records completion aggregates.
type fakeStats struct {
	customerID uint64
	paidCents  int64
	calls      int
}

func (f *fakeStats) RecordCompletedBooking(ctx context.Context, customerID uint64, paidCents int64) error {
	f.customerID = customerID
	f.paidCents = paidCents
	f.calls++
	return nil
}

// fakeStore counts uploads and deletions.
type fakeStore struct {
	uploads int
	deleted []string
}

func (f *fakeStore) Upload(ctx context.Context, data []byte, folder, filename string) (storage.StoredObject, error) {
	f.uploads++
	ref := fmt.Sprintf("%s/obj-%d", folder, f.uploads)
	return storage.StoredObject{Ref: ref, URL: "/static/" + ref}, nil
}

func (f *fakeStore) Delete(ctx context.Context, ref string) error {
	f.deleted = append(f.deleted, ref)
	return nil
}

var testClock = func() time.Time {
	return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
}

func newTestService(slots *fakeSlots, bookings *fakeBookings, stats *fakeStats, store *fakeStore) *Service {
	if stats == nil {
		stats = &fakeStats{}
	}
	if store == nil {
		store = &fakeStore{}
	}
	bookings.slots = slots
	return NewService(slots, bookings, stats, store, audit.NopRecorder{}, time.UTC).WithClock(testClock)
}

func futureSlot(id, providerID uint64) model.Slot {
	return model.Slot{ID: id, ProviderID: providerID, Date: "2026-09-02", Time: "14:00", Status: model.SlotStatusAvailable}
}

func TestCreateClaimsSlotsAndPersists(t *testing.T) {
	slots := newFakeSlots(futureSlot(1, 7), futureSlot(2, 7))
	bookings := newFakeBookings()
	svc := newTestService(slots, bookings, nil, nil)

	b, err := svc.Create(context.Background(), CreateRequest{
		CustomerID: 42, ProviderID: 7, SlotIDs: []uint64{1, 2},
		ServiceDescription: "full set", SubtotalCents: 8000,
	})
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, b.Status)
	assert.Equal(t, model.PaymentStatusUnpaid, b.PaymentStatus)
	assert.NotEmpty(t, b.ID)
	assert.Contains(t, b.Code, "BK-")
	assert.Equal(t, b.ID, slots.claims[1])
	assert.Equal(t, b.ID, slots.claims[2])
}

func TestCreateClaimsSlotsInAscendingOrder(t *testing.T) {
	slots := newFakeSlots(futureSlot(1, 7), futureSlot(2, 7), futureSlot(3, 7))
	svc := newTestService(slots, newFakeBookings(), nil, nil)

	// Duplicates collapse and the claim walks the ids in ascending
	// order regardless of how the request listed them; concurrent
	// overlapping requests therefore contest their first shared slot
	// and cannot abort each other mutually.
	_, err := svc.Create(context.Background(), CreateRequest{
		CustomerID: 42, ProviderID: 7, SlotIDs: []uint64{3, 1, 2, 3},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, slots.order)
}

func TestCreateReleasesClaimWhenPersistFails(t *testing.T) {
	slots := newFakeSlots(futureSlot(1, 7))
	bookings := newFakeBookings()
	bookings.createErr = errors.New("insert failed")
	svc := newTestService(slots, bookings, nil, nil)

	_, err := svc.Create(context.Background(), CreateRequest{
		CustomerID: 42, ProviderID: 7, SlotIDs: []uint64{1},
	})
	require.Error(t, err)
	assert.Len(t, slots.released, 1, "compensation must release the claim")
	assert.Empty(t, slots.claims, "no slot may stay reserved without a booking")
}

func TestCreateRejectsContestedSlots(t *testing.T) {
	s := futureSlot(1, 7)
	slots := newFakeSlots(s)
	slots.claims[1] = "someone-else"
	svc := newTestService(slots, newFakeBookings(), nil, nil)

	_, err := svc.Create(context.Background(), CreateRequest{CustomerID: 42, ProviderID: 7, SlotIDs: []uint64{1}})
	assert.ErrorIs(t, err, repository.ErrSlotConflict)
}

func TestCreateRejectsBadSlots(t *testing.T) {
	hidden := futureSlot(2, 7)
	hidden.IsHidden = true
	past := model.Slot{ID: 3, ProviderID: 7, Date: "2026-08-31", Time: "09:00"}
	slots := newFakeSlots(futureSlot(1, 7), hidden, past)
	svc := newTestService(slots, newFakeBookings(), nil, nil)

	cases := []struct {
		name    string
		ids     []uint64
		wantErr error
	}{
		{"no slots", nil, repository.ErrPreconditionFailed},
		{"unknown slot", []uint64{99}, repository.ErrNotFound},
		{"hidden slot", []uint64{2}, repository.ErrPreconditionFailed},
		{"past slot", []uint64{3}, repository.ErrPreconditionFailed},
		{"wrong provider", []uint64{1}, repository.ErrPreconditionFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			providerID := uint64(7)
			if tc.name == "wrong provider" {
				providerID = 8
			}
			_, err := svc.Create(context.Background(), CreateRequest{CustomerID: 42, ProviderID: providerID, SlotIDs: tc.ids})
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, slots.claims)
		})
	}
}

func TestConfirmRequiresProof(t *testing.T) {
	b := &model.Booking{ID: "b1", Status: model.BookingStatusPending}
	svc := newTestService(newFakeSlots(), newFakeBookings(b), nil, nil)

	_, err := svc.Confirm(context.Background(), "staff:1", "b1")
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed)
}

func TestConfirmMirrorsSlots(t *testing.T) {
	b := &model.Booking{ID: "b1", Status: model.BookingStatusPending, ProofRef: "proofs/x"}
	slots := newFakeSlots()
	svc := newTestService(slots, newFakeBookings(b), nil, nil)

	out, err := svc.Confirm(context.Background(), "staff:1", "b1")
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, out.Status)
	require.NotNil(t, out.ConfirmedAt)
	assert.Equal(t, model.SlotStatusConfirmed, slots.marked["b1"])
}

func TestConfirmRejectsNonPending(t *testing.T) {
	for _, status := range []string{model.BookingStatusConfirmed, model.BookingStatusCompleted, model.BookingStatusCancelled} {
		b := &model.Booking{ID: "b1", Status: status, ProofRef: "proofs/x"}
		svc := newTestService(newFakeSlots(), newFakeBookings(b), nil, nil)
		_, err := svc.Confirm(context.Background(), "staff:1", "b1")
		assert.ErrorIs(t, err, repository.ErrInvalidTransition, status)
	}
}

func TestCancelReleasesSlotsAndKeepsReason(t *testing.T) {
	b := &model.Booking{ID: "b1", Status: model.BookingStatusConfirmed}
	slots := newFakeSlots()
	slots.claims[5] = "b1"
	svc := newTestService(slots, newFakeBookings(b), nil, nil)

	out, err := svc.Cancel(context.Background(), "staff:1", "b1", "customer request")
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, out.Status)
	assert.Equal(t, "customer request", out.StatusReason)
	assert.Contains(t, slots.released, "b1")
}

func TestCancelFailureRetainsNoPartialState(t *testing.T) {
	b := &model.Booking{ID: "b1", Status: model.BookingStatusConfirmed}
	slots := newFakeSlots()
	slots.claims[5] = "b1"
	bookings := newFakeBookings(b)
	bookings.cancelErr = errors.New("lock wait timeout")
	svc := newTestService(slots, bookings, nil, nil)

	_, err := svc.Cancel(context.Background(), "staff:1", "b1", "customer request")
	require.Error(t, err)
	got, gerr := bookings.GetByID(context.Background(), "b1")
	require.NoError(t, gerr)
	assert.Equal(t, model.BookingStatusConfirmed, got.Status, "a failed transition must not change the booking")
	assert.Equal(t, "b1", slots.claims[5], "the slot must stay claimed")
	assert.Empty(t, slots.released)
}

func TestCancelRejectsTerminal(t *testing.T) {
	b := &model.Booking{ID: "b1", Status: model.BookingStatusCompleted}
	svc := newTestService(newFakeSlots(), newFakeBookings(b), nil, nil)
	_, err := svc.Cancel(context.Background(), "staff:1", "b1", "too late")
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)
}

func TestCompleteRequiresInvoice(t *testing.T) {
	b := &model.Booking{ID: "b1", Status: model.BookingStatusConfirmed}
	svc := newTestService(newFakeSlots(), newFakeBookings(b), nil, nil)
	_, err := svc.Complete(context.Background(), "staff:1", "b1", 0)
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed)
}

func TestCompleteSettlesPaymentAndStats(t *testing.T) {
	total := int64(10000)
	quote := "Q-77"
	b := &model.Booking{
		ID: "b1", Status: model.BookingStatusConfirmed, CustomerID: 42,
		PaidCents: 5000, PaymentStatus: model.PaymentStatusPartial,
		InvoiceQuoteID: &quote, InvoiceTotalCents: &total,
	}
	slots := newFakeSlots()
	stats := &fakeStats{}
	svc := newTestService(slots, newFakeBookings(b), stats, nil)

	// Final payment covers the 5000 balance plus a 1000 tip.
	out, err := svc.Complete(context.Background(), "staff:1", "b1", 6000)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCompleted, out.Status)
	assert.Equal(t, int64(11000), out.PaidCents)
	assert.Equal(t, int64(1000), out.TipCents)
	assert.Equal(t, model.PaymentStatusPaid, out.PaymentStatus)
	require.NotNil(t, out.FullyPaidAt)
	require.NotNil(t, out.CompletedAt)
	assert.Equal(t, model.SlotStatusCompleted, slots.marked["b1"])
	assert.Equal(t, 1, stats.calls)
	assert.Equal(t, uint64(42), stats.customerID)
	assert.Equal(t, int64(11000), stats.paidCents)
}

func TestCompleteWithZeroFinalPayment(t *testing.T) {
	total := int64(5000)
	paidAt := testClock().Add(-time.Hour)
	b := &model.Booking{
		ID: "b1", Status: model.BookingStatusConfirmed,
		PaidCents: 5000, PaymentStatus: model.PaymentStatusPaid,
		InvoiceTotalCents: &total, FullyPaidAt: &paidAt,
	}
	svc := newTestService(newFakeSlots(), newFakeBookings(b), nil, nil)

	out, err := svc.Complete(context.Background(), "staff:1", "b1", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), out.PaidCents)
	assert.Equal(t, int64(0), out.TipCents)
	require.NotNil(t, out.FullyPaidAt)
	assert.Equal(t, paidAt, *out.FullyPaidAt, "existing fully-paid timestamp must be kept")
}

func TestRecordPaymentSplitsTip(t *testing.T) {
	total := int64(8000)
	b := &model.Booking{ID: "b1", Status: model.BookingStatusPending, InvoiceTotalCents: &total, PaidCents: 7500}
	svc := newTestService(newFakeSlots(), newFakeBookings(b), nil, nil)

	out, err := svc.RecordPayment(context.Background(), "staff:1", "b1", 800)
	require.NoError(t, err)
	assert.Equal(t, int64(8300), out.PaidCents)
	assert.Equal(t, int64(300), out.TipCents)
	assert.Equal(t, model.PaymentStatusPaid, out.PaymentStatus)
}

func TestRecordPaymentWithoutInvoiceStaysPartial(t *testing.T) {
	b := &model.Booking{ID: "b1", Status: model.BookingStatusPending}
	svc := newTestService(newFakeSlots(), newFakeBookings(b), nil, nil)

	out, err := svc.RecordPayment(context.Background(), "staff:1", "b1", 99999)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPartial, out.PaymentStatus, "no invoice means never paid")
	assert.Equal(t, int64(0), out.TipCents)
}

func TestAttachInvoiceRederivesStatus(t *testing.T) {
	b := &model.Booking{ID: "b1", Status: model.BookingStatusPending, PaidCents: 4000, PaymentStatus: model.PaymentStatusPartial}
	svc := newTestService(newFakeSlots(), newFakeBookings(b), nil, nil)

	out, err := svc.AttachInvoice(context.Background(), "staff:1", "b1", "Q-1", 4000)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, out.PaymentStatus)
}

func TestAttachInvoiceSplitsTipFromEarlierOverpayment(t *testing.T) {
	// 700 received before any total existed, so no tip could accrue.
	// Finalizing the total at 500 rederives the split.
	b := &model.Booking{ID: "b1", Status: model.BookingStatusPending, PaidCents: 700, PaymentStatus: model.PaymentStatusPartial}
	svc := newTestService(newFakeSlots(), newFakeBookings(b), nil, nil)

	out, err := svc.AttachInvoice(context.Background(), "staff:1", "b1", "Q-9", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(200), out.TipCents)
	assert.Equal(t, model.PaymentStatusPaid, out.PaymentStatus)
	require.NotNil(t, out.FullyPaidAt)
}

func TestAttachProofReplacesOldObject(t *testing.T) {
	b := &model.Booking{ID: "b1", Status: model.BookingStatusPending, ProofRef: "proofs/old"}
	store := &fakeStore{}
	svc := newTestService(newFakeSlots(), newFakeBookings(b), nil, store)

	out, err := svc.AttachProof(context.Background(), "customer:42", "b1", []byte("img"), "receipt.jpg")
	require.NoError(t, err)
	assert.NotEqual(t, "proofs/old", out.ProofRef)
	assert.Equal(t, []string{"proofs/old"}, store.deleted, "previous proof object is removed after repoint")
}

func TestAttachProofCleansUpWhenWriteLoses(t *testing.T) {
	b := &model.Booking{ID: "b1", Status: model.BookingStatusPending}
	bookings := newFakeBookings(b)
	bookings.proofDenied = true // booking turns terminal between read and write
	store := &fakeStore{}
	svc := newTestService(newFakeSlots(), bookings, nil, store)

	_, err := svc.AttachProof(context.Background(), "customer:42", "b1", []byte("img"), "receipt.jpg")
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)
	require.Len(t, store.deleted, 1, "orphaned upload must be removed")
	assert.Equal(t, 1, store.uploads)
	assert.Equal(t, "proofs/obj-1", store.deleted[0])
}

func TestAddPhotoEnforcesCategoryLimit(t *testing.T) {
	b := &model.Booking{ID: "b1", Status: model.BookingStatusPending}
	bookings := newFakeBookings(b)
	store := &fakeStore{}
	svc := newTestService(newFakeSlots(), bookings, nil, store)

	ctx := context.Background()
	for i := 0; i < model.MaxPhotosPerCategory; i++ {
		require.NoError(t, svc.AddPhoto(ctx, "customer:42", "b1", model.PhotoCategoryInspiration, []byte("img"), "a.jpg"))
	}
	err := svc.AddPhoto(ctx, "customer:42", "b1", model.PhotoCategoryInspiration, []byte("img"), "d.jpg")
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed)

	// The other category has its own budget.
	require.NoError(t, svc.AddPhoto(ctx, "customer:42", "b1", model.PhotoCategoryCurrentState, []byte("img"), "e.jpg"))

	err = svc.AddPhoto(ctx, "customer:42", "b1", "selfies", []byte("img"), "f.jpg")
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed)
}
