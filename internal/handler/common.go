package handler // declare the package name; contains HTTP handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// getUserID extracts the authenticated user's numeric id from the
// context. JWTAuth stores the raw claim; zero means the token carried
// no usable subject and the request must be rejected.
func getUserID(c echo.Context) (uint64, error) {
	id := middleware.UserID(c)
	if id == 0 {
		return 0, errors.New("no user in context")
	}
	return id, nil
}

// actorLabel renders the authenticated principal for audit entries,
// e.g. "STAFF:3".
func actorLabel(c echo.Context) string {
	role := middleware.Role(c)
	if role == "" {
		role = "ANON"
	}
	id, err := getUserID(c)
	if err != nil {
		return role
	}
	return role + ":" + uitoa(id)
}

func uitoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var b [20]byte
	i := len(b)
	for v > 0 {
		i--
		b[i] = byte('0' + v%10)
		v /= 10
	}
	return string(b[i:])
}

// fail translates the repository's sentinel errors into the API's
// status codes. Conflicts (lost races, double-booked slots) are 409,
// unmet business preconditions are 422, everything unrecognized is a
// plain 500 without leaking internals.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrSlotConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot conflict"})
	case errors.Is(err, repository.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "invalid state transition"})
	case errors.Is(err, repository.ErrPreconditionFailed):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "precondition failed"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrDuplicate):
		return c.JSON(http.StatusConflict, echo.Map{"error": "duplicate"})
	default:
		c.Logger().Errorf("internal error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// readUpload pulls the named multipart file into memory, bounded by
// maxUploadBytes. Proofs and client photos are small images; anything
// larger is refused before it reaches object storage.
const maxUploadBytes = 10 << 20 // 10 MiB

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > maxUploadBytes {
		return nil, repository.ErrPreconditionFailed
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
}

// ----- shared response shapes -----

type slotView struct {
	ID       uint64 `json:"id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Status   string `json:"status"`
	SlotType string `json:"slot_type,omitempty"`
}

type photoView struct {
	ID       uint64 `json:"id"`
	Category string `json:"category"`
	URL      string `json:"url"`
}

type bookingView struct {
	ID                 string      `json:"id"`
	Code               string      `json:"code"`
	CustomerID         uint64      `json:"customer_id"`
	ProviderID         uint64      `json:"provider_id"`
	ServiceDescription string      `json:"service_description,omitempty"`
	Status             string      `json:"status"`
	PaymentStatus      string      `json:"payment_status"`
	SubtotalCents      int64       `json:"subtotal_cents"`
	DiscountCents      int64       `json:"discount_cents"`
	PaidCents          int64       `json:"paid_cents"`
	TipCents           int64       `json:"tip_cents"`
	BalanceDueCents    *int64      `json:"balance_due_cents,omitempty"`
	InvoiceQuoteID     *string     `json:"invoice_quote_id,omitempty"`
	InvoiceTotalCents  *int64      `json:"invoice_total_cents,omitempty"`
	StatusReason       string      `json:"status_reason,omitempty"`
	ProofURL           string      `json:"proof_url,omitempty"`
	CreatedAt          string      `json:"created_at"`
	ConfirmedAt        string      `json:"confirmed_at,omitempty"`
	CompletedAt        string      `json:"completed_at,omitempty"`
	FullyPaidAt        string      `json:"fully_paid_at,omitempty"`
	Slots              []slotView  `json:"slots,omitempty"`
	Photos             []photoView `json:"photos,omitempty"`
}

const tsLayout = "2006-01-02T15:04:05Z07:00"

func renderBooking(b model.Booking) bookingView {
	v := bookingView{
		ID:                 b.ID,
		Code:               b.Code,
		CustomerID:         b.CustomerID,
		ProviderID:         b.ProviderID,
		ServiceDescription: b.ServiceDescription,
		Status:             b.Status,
		PaymentStatus:      b.PaymentStatus,
		SubtotalCents:      b.SubtotalCents,
		DiscountCents:      b.DiscountCents,
		PaidCents:          b.PaidCents,
		TipCents:           b.TipCents,
		InvoiceQuoteID:     b.InvoiceQuoteID,
		InvoiceTotalCents:  b.InvoiceTotalCents,
		StatusReason:       b.StatusReason,
		ProofURL:           b.ProofURL,
		CreatedAt:          b.CreatedAt.Format(tsLayout),
	}
	if due, ok := b.BalanceDue(); ok {
		v.BalanceDueCents = &due
	}
	if b.ConfirmedAt != nil {
		v.ConfirmedAt = b.ConfirmedAt.Format(tsLayout)
	}
	if b.CompletedAt != nil {
		v.CompletedAt = b.CompletedAt.Format(tsLayout)
	}
	if b.FullyPaidAt != nil {
		v.FullyPaidAt = b.FullyPaidAt.Format(tsLayout)
	}
	return v
}

func renderSlot(s model.Slot) slotView {
	return slotView{ID: s.ID, Date: s.Date, Time: s.Time, Status: s.Status, SlotType: s.SlotType}
}

func renderPhotos(ps []model.BookingPhoto) []photoView {
	out := make([]photoView, 0, len(ps))
	for _, p := range ps {
		out = append(out, photoView{ID: p.ID, Category: p.Category, URL: p.URL})
	}
	return out
}
