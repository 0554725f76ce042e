package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/lifecycle"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// BookingHandler serves the customer-facing booking endpoints. All
// methods assume JWT authentication and the bookings.own capability
// have been enforced by middleware; ownership of the individual
// booking is still re-checked here because the capability only says
// "may act on own bookings", not which ones those are.
type BookingHandler struct {
	Lifecycle *lifecycle.Service
	Bookings  *repository.BookingRepo
	Slots     *repository.SlotRepo
}

func NewBookingHandler(lc *lifecycle.Service, bookings *repository.BookingRepo, slots *repository.SlotRepo) *BookingHandler {
	if lc == nil || bookings == nil || slots == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Lifecycle: lc, Bookings: bookings, Slots: slots}
}

type createBookingReq struct {
	ProviderID         uint64   `json:"provider_id"`
	SlotIDs            []uint64 `json:"slot_ids"`
	ServiceDescription string   `json:"service_description"`
	SubtotalCents      int64    `json:"subtotal_cents"`
	DiscountCents      int64    `json:"discount_cents"`
}

// Create handles POST /v1/bookings. The requested slots are claimed
// atomically: when any of them was taken in the meantime the whole
// request fails with 409 and no slot stays reserved.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.ProviderID == 0 || len(req.SlotIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provider_id and slot_ids are required"})
	}
	if req.SubtotalCents < 0 || req.DiscountCents < 0 || req.DiscountCents > req.SubtotalCents {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid amounts"})
	}

	b, err := h.Lifecycle.Create(c.Request().Context(), lifecycle.CreateRequest{
		CustomerID:         uid,
		ProviderID:         req.ProviderID,
		SlotIDs:            req.SlotIDs,
		ServiceDescription: req.ServiceDescription,
		SubtotalCents:      req.SubtotalCents,
		DiscountCents:      req.DiscountCents,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, renderBooking(b))
}

// ListMine handles GET /v1/bookings.
func (h *BookingHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookings, err := h.Bookings.ListByCustomer(c.Request().Context(), uid)
	if err != nil {
		return fail(c, err)
	}
	out := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, renderBooking(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// GetMine handles GET /v1/bookings/:id including slots and photos.
func (h *BookingHandler) GetMine(c echo.Context) error {
	b, ok, err := h.ownBooking(c)
	if !ok {
		return err
	}
	ctx := c.Request().Context()
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

// CancelMine handles POST /v1/bookings/:id/cancel. Customers may back
// out of their own pending or confirmed bookings; future slots return
// to the pool.
func (h *BookingHandler) CancelMine(c echo.Context) error {
	b, ok, err := h.ownBooking(c)
	if !ok {
		return err
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&req)
	if req.Reason == "" {
		req.Reason = "cancelled by customer"
	}
	out, err := h.Lifecycle.Cancel(c.Request().Context(), actorLabel(c), b.ID, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, renderBooking(out))
}

// UploadProof handles POST /v1/bookings/:id/proof. The multipart file
// field "file" carries the payment proof image; a new upload replaces
// the previous one.
func (h *BookingHandler) UploadProof(c echo.Context) error {
	b, ok, err := h.ownBooking(c)
	if !ok {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
	}
	data, err := readUpload(fh)
	if err != nil {
		return fail(c, err)
	}
	out, err := h.Lifecycle.AttachProof(c.Request().Context(), actorLabel(c), b.ID, data, fh.Filename)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, renderBooking(out))
}

// UploadPhoto handles POST /v1/bookings/:id/photos. The form carries a
// "category" value (inspiration or current_state) and the image under
// "file"; each category holds at most three photos per booking.
func (h *BookingHandler) UploadPhoto(c echo.Context) error {
	b, ok, err := h.ownBooking(c)
	if !ok {
		return err
	}
	category := c.FormValue("category")
	if category == "" {
		category = model.PhotoCategoryInspiration
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
	}
	data, err := readUpload(fh)
	if err != nil {
		return fail(c, err)
	}
	if err := h.Lifecycle.AddPhoto(c.Request().Context(), actorLabel(c), b.ID, category, data, fh.Filename); err != nil {
		return fail(c, err)
	}
	photos, err := h.Bookings.ListPhotos(c.Request().Context(), b.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"photos": renderPhotos(photos)})
}

// ownBooking loads the :id booking and verifies the caller owns it.
// The boolean reports whether the caller may proceed; when false the
// returned error is the HTTP response already written.
func (h *BookingHandler) ownBooking(c echo.Context) (model.Booking, bool, error) {
	uid, err := getUserID(c)
	if err != nil {
		return model.Booking{}, false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := c.Param("id")
	if id == "" {
		return model.Booking{}, false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Bookings.GetByID(c.Request().Context(), id)
	if err != nil {
		return model.Booking{}, false, fail(c, err)
	}
	if b.CustomerID != uid {
		// Don't reveal whether the id exists for someone else.
		return model.Booking{}, false, c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	return b, true, nil
}
