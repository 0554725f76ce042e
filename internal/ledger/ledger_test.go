package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/model"
)

func invoiced(total, paid int64) *model.Booking {
	return &model.Booking{
		InvoiceTotalCents: &total,
		PaidCents:         paid,
	}
}

func TestApplySplitsTipOnceBalanceExhausted(t *testing.T) {
	// balance due 500, paying 800 applies 500 and tips 300
	b := invoiced(500, 0)
	app := Apply(b, 800)
	assert.Equal(t, int64(500), app.AppliedToBalance)
	assert.Equal(t, int64(300), app.TipCents)
}

func TestApplySequentialPaymentsMatchSinglePayment(t *testing.T) {
	// paying 300 then 400 against a 500 balance must end in the same
	// place as paying 700 directly
	seq := invoiced(500, 0)
	first := Apply(seq, 300)
	seq.PaidCents += 300
	require.Equal(t, int64(300), first.AppliedToBalance)
	require.Zero(t, first.TipCents)

	second := Apply(seq, 400)
	seq.PaidCents += 400
	seq.TipCents += second.TipCents
	assert.Equal(t, int64(200), second.AppliedToBalance)
	assert.Equal(t, int64(200), second.TipCents)

	direct := invoiced(500, 0)
	app := Apply(direct, 700)
	direct.PaidCents += 700
	direct.TipCents += app.TipCents

	assert.Equal(t, direct.PaidCents, seq.PaidCents)
	assert.Equal(t, direct.TipCents, seq.TipCents)
	assert.Equal(t, StatusFor(direct), StatusFor(seq))
	assert.Equal(t, model.PaymentStatusPaid, StatusFor(seq))
}

func TestApplyWithoutInvoiceNeverTips(t *testing.T) {
	b := &model.Booking{}
	app := Apply(b, 12500)
	assert.Equal(t, int64(12500), app.AppliedToBalance)
	assert.Zero(t, app.TipCents)
}

func TestApplyIgnoresNonPositiveAmounts(t *testing.T) {
	b := invoiced(500, 0)
	assert.Equal(t, Application{}, Apply(b, 0))
	assert.Equal(t, Application{}, Apply(b, -100))
}

func TestStatusPaidRequiresInvoice(t *testing.T) {
	// paidAmount 500 with no invoice must never report paid
	b := &model.Booking{PaidCents: 500}
	assert.Equal(t, model.PaymentStatusPartial, StatusFor(b))

	// attaching an invoice with a matching total flips it to paid
	total := int64(500)
	b.InvoiceTotalCents = &total
	assert.Equal(t, model.PaymentStatusPaid, StatusFor(b))
}

func TestStatusTable(t *testing.T) {
	total := int64(1000)
	cases := []struct {
		name       string
		paid       int64
		invoice    *int64
		hasInvoice bool
		want       string
	}{
		{"nothing paid", 0, nil, false, model.PaymentStatusUnpaid},
		{"nothing paid with invoice", 0, &total, true, model.PaymentStatusUnpaid},
		{"partial with invoice", 400, &total, true, model.PaymentStatusPartial},
		{"covered with invoice", 1000, &total, true, model.PaymentStatusPaid},
		{"overpaid with invoice", 1300, &total, true, model.PaymentStatusPaid},
		{"paid but no invoice", 1300, nil, false, model.PaymentStatusPartial},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Status(tc.paid, tc.invoice, tc.hasInvoice))
		})
	}
}

func TestBalanceDue(t *testing.T) {
	b := invoiced(500, 700)
	due, ok := b.BalanceDue()
	require.True(t, ok)
	assert.Zero(t, due, "overpayment never reports a negative balance")

	noInvoice := &model.Booking{PaidCents: 100}
	_, ok = noInvoice.BalanceDue()
	assert.False(t, ok)
}
