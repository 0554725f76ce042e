package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
)

// BookingRepo provides CRUD operations for bookings, their ordered
// slot references and their client photos. Status transitions are
// implemented as conditional updates guarded by the expected current
// status, so concurrent staff actions and sweep decisions cannot move
// a booking out of a terminal state. All timestamp fields are stored
// in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, code, customer_id, provider_id, service_description, status,
	payment_status, subtotal_cents, discount_cents, paid_cents, tip_cents,
	invoice_quote_id, invoice_total_cents, status_reason, proof_ref, proof_url,
	fully_paid_at, created_at, confirmed_at, completed_at`

func scanBooking(row interface{ Scan(...any) error }) (model.Booking, error) {
	var b model.Booking
	var quoteID sql.NullString
	var invoiceTotal sql.NullInt64
	var fullyPaidAt, confirmedAt, completedAt sql.NullTime
	err := row.Scan(&b.ID, &b.Code, &b.CustomerID, &b.ProviderID, &b.ServiceDescription,
		&b.Status, &b.PaymentStatus, &b.SubtotalCents, &b.DiscountCents, &b.PaidCents,
		&b.TipCents, &quoteID, &invoiceTotal, &b.StatusReason, &b.ProofRef, &b.ProofURL,
		&fullyPaidAt, &b.CreatedAt, &confirmedAt, &completedAt)
	if err != nil {
		return model.Booking{}, err
	}
	if quoteID.Valid {
		v := quoteID.String
		b.InvoiceQuoteID = &v
	}
	if invoiceTotal.Valid {
		v := invoiceTotal.Int64
		b.InvoiceTotalCents = &v
	}
	if fullyPaidAt.Valid {
		v := fullyPaidAt.Time
		b.FullyPaidAt = &v
	}
	if confirmedAt.Valid {
		v := confirmedAt.Time
		b.ConfirmedAt = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		b.CompletedAt = &v
	}
	return b, nil
}

// Create persists a new booking together with its ordered slot
// references. The booking id and code must already be set by the
// caller; the slots are expected to have been claimed under that id
// beforehand. Booking row and booking_slots rows are written in one
// transaction so a failure leaves nothing behind for the caller's
// compensating release.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking, slotIDs []uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const ins = `INSERT INTO bookings
		(id, code, customer_id, provider_id, service_description, status, payment_status,
		 subtotal_cents, discount_cents, paid_cents, tip_cents, status_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, '')`
	if _, err := tx.ExecContext(ctx, ins,
		b.ID, b.Code, b.CustomerID, b.ProviderID, b.ServiceDescription,
		model.BookingStatusPending, model.PaymentStatusUnpaid,
		b.SubtotalCents, b.DiscountCents); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	if len(slotIDs) > 0 {
		query := `INSERT INTO booking_slots (booking_id, slot_id, position) VALUES `
		args := make([]interface{}, 0, len(slotIDs)*3)
		for i, sid := range slotIDs {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?)"
			args = append(args, b.ID, sid, i)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID returns a booking or ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return model.Booking{}, ErrNotFound
	}
	return b, err
}

// SlotIDs returns the booking's slot ids in their requested order.
func (r *BookingRepo) SlotIDs(ctx context.Context, bookingID string) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT slot_id FROM booking_slots WHERE booking_id = ? ORDER BY position`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByCustomer returns a customer's bookings newest first.
func (r *BookingRepo) ListByCustomer(ctx context.Context, customerID uint64) ([]model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE customer_id = ? ORDER BY created_at DESC`, customerID)
}

// ListByProvider returns a provider's bookings newest first,
// optionally filtered to a single status.
func (r *BookingRepo) ListByProvider(ctx context.Context, providerID uint64, status string) ([]model.Booking, error) {
	if status != "" {
		return r.list(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE provider_id = ? AND status = ? ORDER BY created_at DESC`,
			providerID, status)
	}
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE provider_id = ? ORDER BY created_at DESC`, providerID)
}

func (r *BookingRepo) list(ctx context.Context, query string, args ...interface{}) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// transition runs one conditional booking update and, when it
// matched, the accompanying slot write inside a single transaction.
// Either both land or neither does; a failed slot write rolls the
// booking update back. It reports whether the conditional update
// matched so the caller can tell a lost race from success.
func (r *BookingRepo) transition(ctx context.Context, slotWrite func(*sql.Tx) error,
	query string, args ...interface{}) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n != 1 {
		committed = true
		return false, tx.Commit()
	}
	if err := slotWrite(tx); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}

// MarkConfirmed moves a pending booking to confirmed and mirrors the
// new status onto its slots in the same transaction. The conditional
// update only matches while the booking is still pending and a payment
// proof has been recorded.
func (r *BookingRepo) MarkConfirmed(ctx context.Context, id string, at time.Time) (bool, error) {
	const q = `UPDATE bookings SET status = ?, confirmed_at = ?
	           WHERE id = ? AND status = ? AND proof_ref <> ''`
	return r.transition(ctx,
		func(tx *sql.Tx) error { return markSlots(ctx, tx, id, model.SlotStatusConfirmed) },
		q, model.BookingStatusConfirmed, at, id, model.BookingStatusPending)
}

// MarkCancelled moves a pending or confirmed booking to cancelled,
// records the reason and releases the booking's slots, all in one
// transaction. Future slots return to the pool; past ones freeze as
// cancelled. Terminal bookings never match. The now parameter must be
// in the studio's local time.
func (r *BookingRepo) MarkCancelled(ctx context.Context, id, reason string, now time.Time) (bool, error) {
	const q = `UPDATE bookings SET status = ?, status_reason = ?
	           WHERE id = ? AND status IN (?, ?)`
	return r.transition(ctx,
		func(tx *sql.Tx) error { return releaseSlots(ctx, tx, id, now) },
		q, model.BookingStatusCancelled, reason, id,
		model.BookingStatusPending, model.BookingStatusConfirmed)
}

// MarkCompleted settles a pending or confirmed booking: final amounts,
// derived payment status, the completion timestamp and the slot mirror
// land in one transaction.
func (r *BookingRepo) MarkCompleted(ctx context.Context, id string, at time.Time,
	paidCents, tipCents int64, paymentStatus string, fullyPaidAt *time.Time) (bool, error) {
	const q = `UPDATE bookings
	           SET status = ?, completed_at = ?, paid_cents = ?, tip_cents = ?,
	               payment_status = ?, fully_paid_at = ?
	           WHERE id = ? AND status IN (?, ?)`
	return r.transition(ctx,
		func(tx *sql.Tx) error { return markSlots(ctx, tx, id, model.SlotStatusCompleted) },
		q, model.BookingStatusCompleted, at,
		paidCents, tipCents, paymentStatus, fullyPaidAt, id,
		model.BookingStatusPending, model.BookingStatusConfirmed)
}

// UpdatePayment records new running amounts for a live booking.
func (r *BookingRepo) UpdatePayment(ctx context.Context, id string,
	paidCents, tipCents int64, paymentStatus string, fullyPaidAt *time.Time) (bool, error) {
	const q = `UPDATE bookings
	           SET paid_cents = ?, tip_cents = ?, payment_status = ?, fully_paid_at = ?
	           WHERE id = ? AND status IN (?, ?)`
	res, err := r.db.ExecContext(ctx, q, paidCents, tipCents, paymentStatus, fullyPaidAt, id,
		model.BookingStatusPending, model.BookingStatusConfirmed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// SetInvoice attaches the finalized quotation id and total to a live
// booking. The tip, payment status and fully-paid timestamp are
// recomputed by the caller because reaching `paid` (and splitting off
// a tip) depends on the invoice being present.
func (r *BookingRepo) SetInvoice(ctx context.Context, id string, quoteID string,
	totalCents, tipCents int64, paymentStatus string, fullyPaidAt *time.Time) (bool, error) {
	const q = `UPDATE bookings
	           SET invoice_quote_id = ?, invoice_total_cents = ?, tip_cents = ?,
	               payment_status = ?, fully_paid_at = ?
	           WHERE id = ? AND status IN (?, ?)`
	res, err := r.db.ExecContext(ctx, q, quoteID, totalCents, tipCents, paymentStatus, fullyPaidAt, id,
		model.BookingStatusPending, model.BookingStatusConfirmed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// SetProof repoints the booking at a new payment proof object and
// returns whether the update matched a live booking. The caller is
// responsible for deleting the previous remote object only after this
// update has succeeded.
func (r *BookingRepo) SetProof(ctx context.Context, id, ref, url string) (bool, error) {
	const q = `UPDATE bookings SET proof_ref = ?, proof_url = ?
	           WHERE id = ? AND status IN (?, ?)`
	res, err := r.db.ExecContext(ctx, q, ref, url, id,
		model.BookingStatusPending, model.BookingStatusConfirmed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CountPhotos returns how many photos of one category a booking holds.
func (r *BookingRepo) CountPhotos(ctx context.Context, bookingID, category string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM booking_photos WHERE booking_id = ? AND category = ?`,
		bookingID, category).Scan(&n)
	return n, err
}

// AddPhoto attaches one client photo reference to a booking.
func (r *BookingRepo) AddPhoto(ctx context.Context, p model.BookingPhoto) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO booking_photos (booking_id, category, object_ref, url) VALUES (?, ?, ?, ?)`,
		p.BookingID, p.Category, p.ObjectRef, p.URL)
	return err
}

// ListPhotos returns every client photo attached to a booking.
func (r *BookingRepo) ListPhotos(ctx context.Context, bookingID string) ([]model.BookingPhoto, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, booking_id, category, object_ref, url, created_at
		 FROM booking_photos WHERE booking_id = ? ORDER BY category, id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.BookingPhoto, 0)
	for rows.Next() {
		var p model.BookingPhoto
		if err := rows.Scan(&p.ID, &p.BookingID, &p.Category, &p.ObjectRef, &p.URL, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePhoto removes a single photo row after its remote object has
// been deleted (or the deletion was abandoned as best effort).
func (r *BookingRepo) DeletePhoto(ctx context.Context, photoID uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM booking_photos WHERE id = ?`, photoID)
	return err
}

// PendingUnpaid lists bookings that are still pending and not fully
// paid. The notification sweep walks this set to decide which payment
// reminders are due and which bookings have aged past the auto-cancel
// threshold.
func (r *BookingRepo) PendingUnpaid(ctx context.Context) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
	           WHERE status = ? AND payment_status IN (?, ?)
	           ORDER BY created_at`
	return r.list(ctx, q, model.BookingStatusPending, model.PaymentStatusUnpaid, model.PaymentStatusPartial)
}

// ConfirmedUpcoming returns confirmed bookings together with the wall
// clock start of their earliest slot. Bookings whose slots have all
// started are excluded; the sweep only reminds about future
// appointments.
func (r *BookingRepo) ConfirmedUpcoming(ctx context.Context, now time.Time) ([]UpcomingBooking, error) {
	cutoff := now.Format(model.SlotTimeLayout)
	const q = `SELECT b.id, b.code, b.customer_id, MIN(CONCAT(s.slot_date, ' ', s.slot_time)) AS starts
	           FROM bookings b
	           JOIN slots s ON s.booking_id = b.id
	           WHERE b.status = ?
	           GROUP BY b.id, b.code, b.customer_id
	           HAVING starts > ?`
	rows, err := r.db.QueryContext(ctx, q, model.BookingStatusConfirmed, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]UpcomingBooking, 0)
	for rows.Next() {
		var u UpcomingBooking
		var starts string
		if err := rows.Scan(&u.BookingID, &u.Code, &u.CustomerID, &starts); err != nil {
			return nil, err
		}
		t, perr := time.ParseInLocation(model.SlotTimeLayout, starts, now.Location())
		if perr != nil {
			continue
		}
		u.StartsAt = t
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpcomingBooking pairs a confirmed booking with its earliest slot
// start. It is consumed by the appointment reminder pass.
type UpcomingBooking struct {
	BookingID  string
	Code       string
	CustomerID uint64
	StartsAt   time.Time
}

// CompletedWithPhotosBefore returns ids of bookings completed before
// the cutoff that still hold client photo references. The retention
// sweep clears those photos; payment proofs are untouched.
func (r *BookingRepo) CompletedWithPhotosBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	const q = `SELECT DISTINCT b.id FROM bookings b
	           JOIN booking_photos p ON p.booking_id = b.id
	           WHERE b.status = ? AND b.completed_at IS NOT NULL AND b.completed_at < ?`
	rows, err := r.db.QueryContext(ctx, q, model.BookingStatusCompleted, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
