package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/lifecycle"
)

// PaymentHandler serves the staff payment endpoints: recording
// manually verified transfers and attaching finalized invoices.
// Guarded by the payments.manage capability.
type PaymentHandler struct {
	Lifecycle *lifecycle.Service
}

func NewPaymentHandler(lc *lifecycle.Service) *PaymentHandler {
	if lc == nil {
		panic("nil lifecycle passed to NewPaymentHandler")
	}
	return &PaymentHandler{Lifecycle: lc}
}

// RecordPayment handles POST /v1/staff/bookings/:id/payments. The
// amount is split between the open balance and tip by the ledger
// rules; payment status is rederived from the new totals.
func (h *PaymentHandler) RecordPayment(c echo.Context) error {
	var req struct {
		AmountCents int64 `json:"amount_cents"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.AmountCents <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount_cents must be positive"})
	}
	b, err := h.Lifecycle.RecordPayment(c.Request().Context(), actorLabel(c), c.Param("id"), req.AmountCents)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, renderBooking(b))
}

// AttachInvoice handles POST /v1/staff/bookings/:id/invoice. Until an
// invoice exists a booking can never reach payment status "paid".
func (h *PaymentHandler) AttachInvoice(c echo.Context) error {
	var req struct {
		QuoteID    string `json:"quote_id"`
		TotalCents int64  `json:"total_cents"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.TotalCents <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_cents must be positive"})
	}
	b, err := h.Lifecycle.AttachInvoice(c.Request().Context(), actorLabel(c), c.Param("id"), req.QuoteID, req.TotalCents)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, renderBooking(b))
}
