package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/lifecycle"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// StaffBookingHandler serves the staff-facing booking lifecycle:
// confirming deposits, cancelling, settling completed appointments and
// browsing bookings across customers. Routes are guarded by the
// bookings.manage / bookings.browse capabilities.
type StaffBookingHandler struct {
	Lifecycle *lifecycle.Service
	Bookings  *repository.BookingRepo
	Slots     *repository.SlotRepo
}

func NewStaffBookingHandler(lc *lifecycle.Service, bookings *repository.BookingRepo, slots *repository.SlotRepo) *StaffBookingHandler {
	if lc == nil || bookings == nil || slots == nil {
		panic("nil dependency passed to NewStaffBookingHandler")
	}
	return &StaffBookingHandler{Lifecycle: lc, Bookings: bookings, Slots: slots}
}

// Confirm handles POST /v1/staff/bookings/:id/confirm. A payment proof
// must be on file; confirming without one returns 422.
func (h *StaffBookingHandler) Confirm(c echo.Context) error {
	b, err := h.Lifecycle.Confirm(c.Request().Context(), actorLabel(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, renderBooking(b))
}

// Cancel handles POST /v1/staff/bookings/:id/cancel with an optional
// reason in the body.
func (h *StaffBookingHandler) Cancel(c echo.Context) error {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&req)
	if req.Reason == "" {
		req.Reason = "cancelled by staff"
	}
	b, err := h.Lifecycle.Cancel(c.Request().Context(), actorLabel(c), c.Param("id"), req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, renderBooking(b))
}

// Complete handles POST /v1/staff/bookings/:id/complete. The body may
// carry a final payment collected at the appointment; anything beyond
// the open balance is recorded as tip.
func (h *StaffBookingHandler) Complete(c echo.Context) error {
	var req struct {
		FinalPaymentCents int64 `json:"final_payment_cents"`
	}
	_ = c.Bind(&req)
	b, err := h.Lifecycle.Complete(c.Request().Context(), actorLabel(c), c.Param("id"), req.FinalPaymentCents)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, renderBooking(b))
}

// Get handles GET /v1/staff/bookings/:id with slots and photos.
func (h *StaffBookingHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	b, err := h.Bookings.GetByID(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	view := renderBooking(b)
	if slots, serr := h.Slots.ListByBooking(ctx, b.ID); serr == nil {
		for _, s := range slots {
			view.Slots = append(view.Slots, renderSlot(s))
		}
	}
	if photos, perr := h.Bookings.ListPhotos(ctx, b.ID); perr == nil {
		view.Photos = renderPhotos(photos)
	}
	return c.JSON(http.StatusOK, view)
}

// List handles GET /v1/staff/bookings?provider_id=&status=. Without a
// provider filter the authenticated staff member's own id is used.
func (h *StaffBookingHandler) List(c echo.Context) error {
	providerID, _ := strconv.ParseUint(c.QueryParam("provider_id"), 10, 64)
	if providerID == 0 {
		providerID, _ = getUserID(c)
	}
	if providerID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provider_id is required"})
	}
	bookings, err := h.Bookings.ListByProvider(c.Request().Context(), providerID, c.QueryParam("status"))
	if err != nil {
		return fail(c, err)
	}
	out := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, renderBooking(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}
