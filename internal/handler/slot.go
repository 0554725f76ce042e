package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/sweep"
)

// SlotHandler serves slot management (staff) and the public
// availability listing. Availability reads double as an opportunistic
// trigger for the past-slot cleanup; the sweep's own throttle bounds
// how often that actually runs.
type SlotHandler struct {
	Slots     *repository.SlotRepo
	SlotSweep *sweep.SlotSweep
}

func NewSlotHandler(slots *repository.SlotRepo, slotSweep *sweep.SlotSweep) *SlotHandler {
	if slots == nil {
		panic("nil repository passed to NewSlotHandler")
	}
	return &SlotHandler{Slots: slots, SlotSweep: slotSweep}
}

type createSlotsReq struct {
	ProviderID uint64   `json:"provider_id"`
	Dates      []string `json:"dates"` // "2006-01-02"
	Times      []string `json:"times"` // "15:04"
	SlotType   string   `json:"slot_type"`
	IsHidden   bool     `json:"is_hidden"`
	Notes      string   `json:"notes"`
}

// BulkCreate handles POST /v1/staff/slots. It generates the cross
// product of the given dates and times as available slots, the staff
// workflow for opening a week's calendar in one call.
func (h *SlotHandler) BulkCreate(c echo.Context) error {
	var req createSlotsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.ProviderID == 0 {
		if uid, err := getUserID(c); err == nil {
			req.ProviderID = uid
		}
	}
	if req.ProviderID == 0 || len(req.Dates) == 0 || len(req.Times) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provider_id, dates and times are required"})
	}
	for _, d := range req.Dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date: " + d})
		}
	}
	for _, t := range req.Times {
		if _, err := time.Parse("15:04", t); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid time: " + t})
		}
	}

	slots := make([]model.Slot, 0, len(req.Dates)*len(req.Times))
	for _, d := range req.Dates {
		for _, t := range req.Times {
			slots = append(slots, model.Slot{
				ProviderID: req.ProviderID,
				Date:       d,
				Time:       t,
				SlotType:   req.SlotType,
				IsHidden:   req.IsHidden,
				Notes:      req.Notes,
			})
		}
	}
	if err := h.Slots.CreateBulk(c.Request().Context(), slots); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"created": len(slots)})
}

// Delete handles DELETE /v1/staff/slots/:id. Only available slots can
// be removed; a claimed slot returns 422.
func (h *SlotHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	if err := h.Slots.Delete(c.Request().Context(), id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetHidden handles PATCH /v1/staff/slots/:id/hidden.
func (h *SlotHandler) SetHidden(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	var req struct {
		Hidden bool `json:"hidden"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.Slots.SetHidden(c.Request().Context(), id, req.Hidden); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "hidden": req.Hidden})
}

// ListAvailable handles GET /v1/providers/:id/slots?from=2006-01-02.
// It is public: customers browse availability before registering. Each
// call opportunistically kicks the throttled past-slot cleanup.
func (h *SlotHandler) ListAvailable(c echo.Context) error {
	providerID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || providerID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider id"})
	}
	from := c.QueryParam("from")
	if from == "" {
		from = time.Now().Format("2006-01-02")
	} else if _, perr := time.Parse("2006-01-02", from); perr != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from date"})
	}

	if h.SlotSweep != nil {
		// Best effort; the throttle makes this a no-op most of the time.
		if _, _, serr := h.SlotSweep.Run(c.Request().Context()); serr != nil {
			c.Logger().Warnf("slot sweep failed: %v", serr)
		}
	}

	slots, err := h.Slots.ListAvailable(c.Request().Context(), providerID, from)
	if err != nil {
		return fail(c, err)
	}
	out := make([]slotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, renderSlot(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"provider_id": providerID, "slots": out})
}
