// Package ledger implements the payment arithmetic for bookings. All
// amounts are integer cents. The functions are pure so the same rules
// apply wherever a payment is recorded: staff payment entry, booking
// completion and invoice attachment.
package ledger

import "github.com/iliyamo/studio-booking/internal/model"

// Application is the outcome of applying one payment against a
// booking's outstanding balance.
type Application struct {
	AppliedToBalance int64 // portion that reduced the balance due
	TipCents         int64 // portion beyond the balance due
}

// Apply splits a payment between the outstanding balance and tip.
// When no invoice exists yet there is no balance to exhaust, so the
// full amount is applied and nothing is treated as tip; the split is
// recomputed once a total is known.
func Apply(b *model.Booking, amountCents int64) Application {
	if amountCents <= 0 {
		return Application{}
	}
	due, hasInvoice := b.BalanceDue()
	if !hasInvoice {
		return Application{AppliedToBalance: amountCents}
	}
	applied := amountCents
	if applied > due {
		applied = due
	}
	return Application{
		AppliedToBalance: applied,
		TipCents:         amountCents - applied,
	}
}

// Status derives the payment status from the amounts recorded so far.
// `paid` is reachable only when an invoice exists and the paid amount
// covers its total; a booking with money received but no invoice is
// `partial`, never `paid`.
func Status(paidCents int64, invoiceTotalCents *int64, hasInvoice bool) string {
	if paidCents <= 0 {
		return model.PaymentStatusUnpaid
	}
	if !hasInvoice || invoiceTotalCents == nil {
		return model.PaymentStatusPartial
	}
	if paidCents >= *invoiceTotalCents {
		return model.PaymentStatusPaid
	}
	return model.PaymentStatusPartial
}

// StatusFor is a convenience wrapper deriving the status straight
// from a booking's current fields.
func StatusFor(b *model.Booking) string {
	return Status(b.PaidCents, b.InvoiceTotalCents, b.HasInvoice())
}
