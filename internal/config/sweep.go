package config

import (
	"time"

	"github.com/iliyamo/studio-booking/internal/sweep"
)

// SweepConfig bundles everything the periodic sweeps need: the shared
// secret the external scheduler must present, the reminder thresholds
// (business policy, therefore configuration) and the retention and
// throttle windows.
type SweepConfig struct {
	Secret            string        // scheduler shared secret (X-Sweep-Secret header)
	Offsets           sweep.Offsets // payment/appointment reminder thresholds
	SlotSweepInterval time.Duration // minimum gap between past-slot cleanups
	RetentionAge      time.Duration // client photos older than this are deleted
}

// LoadSweepConfig reads the sweep settings. Only the secret is
// required; every threshold falls back to the stock policy.
func LoadSweepConfig() SweepConfig {
	off := sweep.DefaultOffsets()
	off.PaymentReminders[0] = envDur("PAYMENT_REMINDER_1", off.PaymentReminders[0])
	off.PaymentReminders[1] = envDur("PAYMENT_REMINDER_2", off.PaymentReminders[1])
	off.PaymentReminders[2] = envDur("PAYMENT_REMINDER_3", off.PaymentReminders[2])
	off.CancelUnpaidAfter = envDur("PAYMENT_CANCEL_AFTER", off.CancelUnpaidAfter)
	off.ApptReminderLong = envDur("APPT_REMINDER_LONG", off.ApptReminderLong)
	off.ApptReminderShort = envDur("APPT_REMINDER_SHORT", off.ApptReminderShort)
	off.Tolerance = envDur("REMINDER_TOLERANCE", off.Tolerance)

	return SweepConfig{
		Secret:            must("SWEEP_SECRET"),
		Offsets:           off,
		SlotSweepInterval: envDur("SLOT_SWEEP_INTERVAL", 5*time.Minute),
		RetentionAge:      envDur("PHOTO_RETENTION_AGE", 30*24*time.Hour),
	}
}
