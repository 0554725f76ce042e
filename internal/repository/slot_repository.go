package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
)

// SlotRepo provides data access to the slots table. It owns the only
// write paths that move a slot between statuses. Cross-request safety
// relies on conditional writes guarded by the expected status, never
// on in-process locks: two concurrent claims for the same slot race at
// the database and exactly one of them wins.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a new SlotRepo bound to the given database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

const slotColumns = `id, provider_id, slot_date, slot_time, status, slot_type, is_hidden, notes, booking_id, created_at, updated_at`

func scanSlot(row interface{ Scan(...any) error }) (model.Slot, error) {
	var s model.Slot
	var bookingID sql.NullString
	err := row.Scan(&s.ID, &s.ProviderID, &s.Date, &s.Time, &s.Status, &s.SlotType,
		&s.IsHidden, &s.Notes, &bookingID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return model.Slot{}, err
	}
	if bookingID.Valid {
		b := bookingID.String
		s.BookingID = &b
	}
	return s, nil
}

// CreateBulk inserts multiple slots in one statement. It is used by
// staff bulk slot generation. Only provider, date, time, type, hidden
// flag and notes are inserted; every new slot starts as available and
// timestamps default in the DB. Passing an empty slice has no effect
// and returns nil.
func (r *SlotRepo) CreateBulk(ctx context.Context, slots []model.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	query := `INSERT INTO slots (provider_id, slot_date, slot_time, status, slot_type, is_hidden, notes) VALUES `
	args := make([]interface{}, 0, len(slots)*7)
	for i, s := range slots {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?)"
		args = append(args, s.ProviderID, s.Date, s.Time, model.SlotStatusAvailable, s.SlotType, s.IsHidden, s.Notes)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// ClaimSlots atomically reserves every listed slot for the given
// booking id. Each slot is claimed with an independent conditional
// update guarded by the expected `available` status. If any slot was
// taken (or hidden) in the meantime, the slots already won by this
// claim are released again and ErrSlotConflict is returned, so a
// failed claim never leaves a partial reservation behind.
//
// Callers must pass slotIDs in ascending order. The shared order makes
// every claim acquire slots along the same sequence, so two
// overlapping claims meet at their first shared slot and only the
// loser of that one write backs off; claims can never abort each
// other mutually.
//
// The booking id does not have to exist yet; creation claims the
// slots first and persists the booking record afterwards.
func (r *SlotRepo) ClaimSlots(ctx context.Context, slotIDs []uint64, bookingID string) error {
	if len(slotIDs) == 0 {
		return ErrPreconditionFailed
	}
	const claim = `UPDATE slots
	               SET status = ?, booking_id = ?, updated_at = UTC_TIMESTAMP()
	               WHERE id = ? AND status = ? AND is_hidden = 0`
	for _, id := range slotIDs {
		res, err := r.db.ExecContext(ctx, claim, model.SlotStatusPending, bookingID, id, model.SlotStatusAvailable)
		if err != nil {
			r.rollbackClaim(ctx, bookingID)
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			r.rollbackClaim(ctx, bookingID)
			return err
		}
		if n != 1 {
			// Another claimant won this slot; undo our partial progress.
			r.rollbackClaim(ctx, bookingID)
			return ErrSlotConflict
		}
	}
	return nil
}

// rollbackClaim releases every slot that the given booking id managed
// to claim. It is best effort: the conditional guard on booking_id
// and pending status makes it safe to run even if nothing was won.
func (r *SlotRepo) rollbackClaim(ctx context.Context, bookingID string) {
	const q = `UPDATE slots
	           SET status = ?, booking_id = NULL, updated_at = UTC_TIMESTAMP()
	           WHERE booking_id = ? AND status = ?`
	_, _ = r.db.ExecContext(ctx, q, model.SlotStatusAvailable, bookingID, model.SlotStatusPending)
}

// execer is satisfied by both *sql.DB and *sql.Tx so the slot write
// helpers below can run standalone or inside a booking transition's
// transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ReleaseForBooking returns the booking's claimed slots to the pool.
// Only slots whose start has not passed become available again; past
// slots keep a terminal `cancelled` status for history, so a cancelled
// morning appointment does not resurrect a bookable slot in the
// afternoon. The now parameter must be in the studio's local time.
//
// Outside a transaction this serves the creation saga's compensating
// release; BookingRepo.MarkCancelled runs the same statements through
// releaseSlots inside its transaction.
func (r *SlotRepo) ReleaseForBooking(ctx context.Context, bookingID string, now time.Time) error {
	return releaseSlots(ctx, r.db, bookingID, now)
}

func releaseSlots(ctx context.Context, ex execer, bookingID string, now time.Time) error {
	cutoff := now.Format(model.SlotTimeLayout)
	const future = `UPDATE slots
	                SET status = ?, booking_id = NULL, updated_at = UTC_TIMESTAMP()
	                WHERE booking_id = ? AND status IN (?, ?) AND CONCAT(slot_date, ' ', slot_time) > ?`
	if _, err := ex.ExecContext(ctx, future,
		model.SlotStatusAvailable, bookingID,
		model.SlotStatusPending, model.SlotStatusConfirmed, cutoff); err != nil {
		return err
	}
	// Whatever is left on this booking has already started; freeze it.
	const past = `UPDATE slots
	              SET status = ?, updated_at = UTC_TIMESTAMP()
	              WHERE booking_id = ? AND status IN (?, ?)`
	_, err := ex.ExecContext(ctx, past,
		model.SlotStatusCancelled, bookingID,
		model.SlotStatusPending, model.SlotStatusConfirmed)
	return err
}

// markSlots moves every slot owned by the booking into the given
// status. The booking transitions (confirm → confirmed, complete →
// completed) call it inside their transaction so the slot mirror and
// the booking update land or fail together.
func markSlots(ctx context.Context, ex execer, bookingID, status string) error {
	const q = `UPDATE slots SET status = ?, updated_at = UTC_TIMESTAMP() WHERE booking_id = ?`
	_, err := ex.ExecContext(ctx, q, status, bookingID)
	return err
}

// SweepUnbookedPast deletes slots whose start is strictly before now
// and which are not referenced by a booking in pending, confirmed or
// completed status. Slots of cancelled bookings and never-booked
// leftovers are the only candidates. It returns the number of rows
// removed. Throttling lives in the sweep service, not here.
func (r *SlotRepo) SweepUnbookedPast(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Format(model.SlotTimeLayout)
	const q = `DELETE s FROM slots s
	           LEFT JOIN bookings b ON b.id = s.booking_id
	           WHERE CONCAT(s.slot_date, ' ', s.slot_time) < ?
	             AND (s.booking_id IS NULL OR b.id IS NULL OR b.status = ?)`
	res, err := r.db.ExecContext(ctx, q, cutoff, model.BookingStatusCancelled)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes a slot, but only while it is still available. When
// the conditional delete matches no row the slot is either missing or
// already claimed; the caller receives ErrNotFound or
// ErrPreconditionFailed accordingly.
func (r *SlotRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM slots WHERE id = ? AND status = ?`, id, model.SlotStatusAvailable)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM slots WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrPreconditionFailed
}

// SetHidden flips the visibility flag of a slot. Hidden slots stay in
// place but are excluded from customer availability and from claims.
func (r *SlotRepo) SetHidden(ctx context.Context, id uint64, hidden bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE slots SET is_hidden = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, hidden, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID returns a single slot or ErrNotFound.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (model.Slot, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = ?`, id)
	s, err := scanSlot(row)
	if err == sql.ErrNoRows {
		return model.Slot{}, ErrNotFound
	}
	return s, err
}

// GetByIDs returns the slots for the given ids in no particular
// order. Missing ids are simply absent from the result; the caller
// decides whether that is an error.
func (r *SlotRepo) GetByIDs(ctx context.Context, ids []uint64) ([]model.Slot, error) {
	if len(ids) == 0 {
		return []model.Slot{}, nil
	}
	placeholders := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListByBooking returns the slots claimed by a booking ordered by
// their start.
func (r *SlotRepo) ListByBooking(ctx context.Context, bookingID string) ([]model.Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots WHERE booking_id = ? ORDER BY slot_date, slot_time`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListAvailable returns visible available slots for a provider from
// the given date onward, ordered by start. It backs the public
// availability endpoint.
func (r *SlotRepo) ListAvailable(ctx context.Context, providerID uint64, fromDate string) ([]model.Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots
	           WHERE provider_id = ? AND status = ? AND is_hidden = 0 AND slot_date >= ?
	           ORDER BY slot_date, slot_time`
	rows, err := r.db.QueryContext(ctx, q, providerID, model.SlotStatusAvailable, fromDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Slot, 0)
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
