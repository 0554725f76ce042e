package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

type fakeSource struct {
	pending   []model.Booking
	upcoming  []repository.UpcomingBooking
	retained  []string
	photos    map[string][]model.BookingPhoto
	deletedID []uint64
}

func (f *fakeSource) PendingUnpaid(ctx context.Context) ([]model.Booking, error) {
	return f.pending, nil
}

func (f *fakeSource) ConfirmedUpcoming(ctx context.Context, now time.Time) ([]repository.UpcomingBooking, error) {
	return f.upcoming, nil
}

func (f *fakeSource) CompletedWithPhotosBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	return f.retained, nil
}

func (f *fakeSource) ListPhotos(ctx context.Context, bookingID string) ([]model.BookingPhoto, error) {
	return f.photos[bookingID], nil
}

func (f *fakeSource) DeletePhoto(ctx context.Context, photoID uint64) error {
	f.deletedID = append(f.deletedID, photoID)
	for id, ps := range f.photos {
		kept := ps[:0]
		for _, p := range ps {
			if p.ID != photoID {
				kept = append(kept, p)
			}
		}
		f.photos[id] = kept
	}
	return nil
}

// fakeLogs enforces the (booking, type) uniqueness the real table has.
type fakeLogs struct {
	rows map[string]bool
}

func newFakeLogs() *fakeLogs { return &fakeLogs{rows: make(map[string]bool)} }

func (f *fakeLogs) Insert(ctx context.Context, bookingID, notifType string, scheduledFor, sentAt time.Time) error {
	key := bookingID + "/" + notifType
	if f.rows[key] {
		return repository.ErrDuplicate
	}
	f.rows[key] = true
	return nil
}

func (f *fakeLogs) Exists(ctx context.Context, bookingID, notifType string) (bool, error) {
	return f.rows[bookingID+"/"+notifType], nil
}

type sentEvent struct {
	bookingID string
	notifType string
}

type fakeDispatcher struct {
	sent []sentEvent
	fail bool
}

func (f *fakeDispatcher) Send(ctx context.Context, bookingID, bookingCode string, customerID uint64, notifType string) error {
	if f.fail {
		return errors.New("broker down")
	}
	f.sent = append(f.sent, sentEvent{bookingID: bookingID, notifType: notifType})
	return nil
}

type fakeCanceller struct {
	cancelled map[string]string // booking id -> reason
	denied    bool
}

func newFakeCanceller() *fakeCanceller { return &fakeCanceller{cancelled: make(map[string]string)} }

func (f *fakeCanceller) Cancel(ctx context.Context, actor, id, reason string) (model.Booking, error) {
	if f.denied {
		return model.Booking{}, repository.ErrInvalidTransition
	}
	f.cancelled[id] = reason
	return model.Booking{ID: id, Status: model.BookingStatusCancelled, StatusReason: reason}, nil
}

var sweepNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return sweepNow }

func pendingBooking(id string, age time.Duration) model.Booking {
	return model.Booking{
		ID: id, Code: "BK-" + id, CustomerID: 42,
		Status: model.BookingStatusPending, PaymentStatus: model.PaymentStatusUnpaid,
		CreatedAt: sweepNow.Add(-age),
	}
}

func newNotificationSweep(src *fakeSource, logs *fakeLogs, disp *fakeDispatcher, canc *fakeCanceller) *NotificationSweep {
	return NewNotificationSweep(src, logs, disp, canc, DefaultOffsets(), time.UTC).WithClock(fixedClock)
}

func TestPaymentReminderDueWithinTolerance(t *testing.T) {
	src := &fakeSource{pending: []model.Booking{
		pendingBooking("b1", 6*time.Hour+10*time.Minute), // 6h reminder due
		pendingBooking("b2", 3*time.Hour),                // nothing due yet
		pendingBooking("b3", 8*time.Hour),                // 6h missed beyond tolerance
	}}
	logs := newFakeLogs()
	disp := &fakeDispatcher{}
	sw := newNotificationSweep(src, logs, disp, newFakeCanceller())

	sum, err := sw.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 1, sum.Sent)
	require.Len(t, disp.sent, 1)
	assert.Equal(t, sentEvent{"b1", model.NotificationPayment6h}, disp.sent[0])
	assert.True(t, logs.rows["b1/"+model.NotificationPayment6h])
}

func TestSweepIsIdempotent(t *testing.T) {
	src := &fakeSource{pending: []model.Booking{pendingBooking("b1", 12*time.Hour+5*time.Minute)}}
	logs := newFakeLogs()
	disp := &fakeDispatcher{}
	sw := newNotificationSweep(src, logs, disp, newFakeCanceller())

	_, err := sw.Run(context.Background())
	require.NoError(t, err)
	first := len(logs.rows)

	sum, err := sw.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, len(logs.rows), "second run must not add log rows")
	assert.Equal(t, 0, sum.Sent)
	assert.Equal(t, 1, sum.Skipped)
	assert.Len(t, disp.sent, 1, "reminder must not be dispatched twice")
}

func TestDispatchFailureDefersLogWrite(t *testing.T) {
	src := &fakeSource{pending: []model.Booking{pendingBooking("b1", 6*time.Hour+1*time.Minute)}}
	logs := newFakeLogs()
	disp := &fakeDispatcher{fail: true}
	sw := newNotificationSweep(src, logs, disp, newFakeCanceller())

	sum, err := sw.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Empty(t, logs.rows, "no log row may exist for an undelivered reminder")

	// Broker recovers within the tolerance window; the retry sends.
	disp.fail = false
	sum, err = sw.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)
	assert.True(t, logs.rows["b1/"+model.NotificationPayment6h])
}

func TestUnpaidBookingAutoCancelsAtDeadline(t *testing.T) {
	src := &fakeSource{pending: []model.Booking{pendingBooking("b1", 25*time.Hour)}}
	logs := newFakeLogs()
	disp := &fakeDispatcher{}
	canc := newFakeCanceller()
	sw := newNotificationSweep(src, logs, disp, canc)

	sum, err := sw.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Cancelled)
	assert.Equal(t, "payment not received", canc.cancelled["b1"])
	assert.True(t, logs.rows["b1/"+model.NotificationPayment24hCancel])
	require.Len(t, disp.sent, 1)
	assert.Equal(t, model.NotificationPayment24hCancel, disp.sent[0].notifType)
}

func TestAutoCancelSkipsWhenLifecycleRefuses(t *testing.T) {
	src := &fakeSource{pending: []model.Booking{pendingBooking("b1", 30*time.Hour)}}
	canc := newFakeCanceller()
	canc.denied = true
	sw := newNotificationSweep(src, newFakeLogs(), &fakeDispatcher{}, canc)

	sum, err := sw.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 0, sum.Cancelled)
	assert.Equal(t, 0, sum.Failed)
}

func TestAppointmentReminders(t *testing.T) {
	src := &fakeSource{upcoming: []repository.UpcomingBooking{
		{BookingID: "b1", Code: "BK-b1", CustomerID: 1, StartsAt: sweepNow.Add(23*time.Hour + 45*time.Minute)}, // 24h window
		{BookingID: "b2", Code: "BK-b2", CustomerID: 2, StartsAt: sweepNow.Add(110 * time.Minute)},            // 2h window
		{BookingID: "b3", Code: "BK-b3", CustomerID: 3, StartsAt: sweepNow.Add(48 * time.Hour)},               // far out
	}}
	logs := newFakeLogs()
	disp := &fakeDispatcher{}
	sw := newNotificationSweep(src, logs, disp, newFakeCanceller())

	sum, err := sw.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Sent)
	assert.True(t, logs.rows["b1/"+model.NotificationAppt24h])
	assert.True(t, logs.rows["b2/"+model.NotificationAppt2h])
	assert.False(t, logs.rows["b3/"+model.NotificationAppt24h])
}
