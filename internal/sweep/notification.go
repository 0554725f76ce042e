package sweep

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// Offsets holds the business policy thresholds for the notification
// sweep. They are configuration, not constants: the studio tunes them
// per deployment.
type Offsets struct {
	PaymentReminders  [3]time.Duration // after creation, ascending
	CancelUnpaidAfter time.Duration    // pending+unpaid beyond this is auto-cancelled
	ApptReminderLong  time.Duration    // before earliest slot start
	ApptReminderShort time.Duration    // before earliest slot start
	Tolerance         time.Duration    // how far past a threshold a reminder is still due
}

// DefaultOffsets returns the stock policy: payment nudges at 6h, 12h
// and 23h, auto-cancel at 24h, appointment reminders 24h and 2h before
// the first slot, with a 30 minute tolerance window.
func DefaultOffsets() Offsets {
	return Offsets{
		PaymentReminders:  [3]time.Duration{6 * time.Hour, 12 * time.Hour, 23 * time.Hour},
		CancelUnpaidAfter: 24 * time.Hour,
		ApptReminderLong:  24 * time.Hour,
		ApptReminderShort: 2 * time.Hour,
		Tolerance:         30 * time.Minute,
	}
}

// paymentReminderTypes pairs each payment offset slot with its
// notification type, in the same order as Offsets.PaymentReminders.
var paymentReminderTypes = [3]string{
	model.NotificationPayment6h,
	model.NotificationPayment12h,
	model.NotificationPayment23h,
}

// NotificationSweep walks pending-unpaid and confirmed-upcoming
// bookings and emits whatever reminders fall due. Running it twice in
// a row changes nothing: the notification log's uniqueness constraint
// absorbs every repeat.
type NotificationSweep struct {
	bookings   BookingSource
	logs       NotificationLogStore
	dispatcher Dispatcher
	canceller  Canceller
	offsets    Offsets
	loc        *time.Location
	now        func() time.Time
}

// NewNotificationSweep wires a sweep. A nil location falls back to
// time.Local.
func NewNotificationSweep(bookings BookingSource, logs NotificationLogStore,
	dispatcher Dispatcher, canceller Canceller, offsets Offsets, loc *time.Location) *NotificationSweep {
	if loc == nil {
		loc = time.Local
	}
	return &NotificationSweep{
		bookings:   bookings,
		logs:       logs,
		dispatcher: dispatcher,
		canceller:  canceller,
		offsets:    offsets,
		loc:        loc,
		now:        time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *NotificationSweep) WithClock(now func() time.Time) *NotificationSweep {
	s.now = now
	return s
}

// Run executes one full pass: payment reminders and auto-cancels over
// pending-unpaid bookings, then appointment reminders over confirmed
// upcoming ones. Item failures are counted, logged and skipped.
func (s *NotificationSweep) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	now := s.now().UTC()

	pending, err := s.bookings.PendingUnpaid(ctx)
	if err != nil {
		return sum, err
	}
	for i := range pending {
		b := &pending[i]
		sum.Processed++
		elapsed := now.Sub(b.CreatedAt)
		if elapsed >= s.offsets.CancelUnpaidAfter {
			s.autoCancel(ctx, b, now, &sum)
			continue
		}
		for step, offset := range s.offsets.PaymentReminders {
			if !s.due(elapsed, offset) {
				continue
			}
			s.emit(ctx, b.ID, b.Code, b.CustomerID, paymentReminderTypes[step], b.CreatedAt.Add(offset), now, &sum)
		}
	}

	upcoming, err := s.bookings.ConfirmedUpcoming(ctx, s.now().In(s.loc))
	if err != nil {
		return sum, err
	}
	for _, u := range upcoming {
		sum.Processed++
		until := u.StartsAt.Sub(s.now().In(s.loc))
		if until <= 0 {
			continue
		}
		if s.dueBefore(until, s.offsets.ApptReminderLong) {
			s.emit(ctx, u.BookingID, u.Code, u.CustomerID, model.NotificationAppt24h,
				u.StartsAt.Add(-s.offsets.ApptReminderLong).UTC(), now, &sum)
		}
		if s.dueBefore(until, s.offsets.ApptReminderShort) {
			s.emit(ctx, u.BookingID, u.Code, u.CustomerID, model.NotificationAppt2h,
				u.StartsAt.Add(-s.offsets.ApptReminderShort).UTC(), now, &sum)
		}
	}
	return sum, nil
}

// due reports whether an elapsed-since-creation threshold was crossed
// within the tolerance window. Thresholds missed by more than the
// tolerance are not emitted late; the next threshold covers them.
func (s *NotificationSweep) due(elapsed, offset time.Duration) bool {
	return elapsed >= offset && elapsed <= offset+s.offsets.Tolerance
}

// dueBefore is the countdown counterpart: the remaining time dropped
// to or below the offset within the tolerance window.
func (s *NotificationSweep) dueBefore(until, offset time.Duration) bool {
	return until <= offset && until >= offset-s.offsets.Tolerance
}

// emit sends one reminder and records it. Order matters: dispatch
// first, log second. A failed dispatch withholds the log entry so the
// reminder is retried; a duplicate log entry means another pass beat
// us and counts as skipped, not sent.
func (s *NotificationSweep) emit(ctx context.Context, bookingID, code string, customerID uint64,
	notifType string, scheduledFor, now time.Time, sum *Summary) {
	exists, err := s.logs.Exists(ctx, bookingID, notifType)
	if err != nil {
		log.Printf("notification-sweep: log lookup %s/%s failed: %v", bookingID, notifType, err)
		sum.Failed++
		return
	}
	if exists {
		sum.Skipped++
		return
	}
	if err := s.dispatcher.Send(ctx, bookingID, code, customerID, notifType); err != nil {
		log.Printf("notification-sweep: dispatch %s/%s failed: %v", bookingID, notifType, err)
		sum.Failed++
		return
	}
	if err := s.logs.Insert(ctx, bookingID, notifType, scheduledFor, now); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// A concurrent pass logged it between our check and write.
			sum.Skipped++
			return
		}
		log.Printf("notification-sweep: log write %s/%s failed: %v", bookingID, notifType, err)
		sum.Failed++
		return
	}
	sum.Sent++
}

// autoCancel terminates a booking whose deposit never arrived. The
// cancellation is the primary action and happens first; the log entry
// and the customer notice follow. A booking someone confirmed or
// cancelled in the meantime loses the conditional update and is
// skipped.
func (s *NotificationSweep) autoCancel(ctx context.Context, b *model.Booking, now time.Time, sum *Summary) {
	if exists, err := s.logs.Exists(ctx, b.ID, model.NotificationPayment24hCancel); err == nil && exists {
		sum.Skipped++
		return
	}
	if _, err := s.canceller.Cancel(ctx, "system:sweep", b.ID, "payment not received"); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			// Raced with a staff action; whatever they did wins.
			sum.Skipped++
			return
		}
		log.Printf("notification-sweep: auto-cancel %s failed: %v", b.ID, err)
		sum.Failed++
		return
	}
	sum.Cancelled++
	err := s.logs.Insert(ctx, b.ID, model.NotificationPayment24hCancel,
		b.CreatedAt.Add(s.offsets.CancelUnpaidAfter), now)
	if err != nil && !errors.Is(err, repository.ErrDuplicate) {
		// The cancel itself stuck; a missing log row only costs a
		// duplicate customer notice at worst.
		log.Printf("notification-sweep: cancel log write %s failed: %v", b.ID, err)
	}
	if err := s.dispatcher.Send(ctx, b.ID, b.Code, b.CustomerID, model.NotificationPayment24hCancel); err != nil {
		log.Printf("notification-sweep: cancel notice %s failed: %v", b.ID, err)
	}
}
