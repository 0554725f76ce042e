package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/sweep"
)

// SweepHandler exposes the internal trigger endpoints the external
// scheduler calls. All routes sit behind the X-Sweep-Secret middleware;
// each returns the pass summary so the scheduler can alert on failure
// counts.
type SweepHandler struct {
	Notifications *sweep.NotificationSweep
	Retention     *sweep.RetentionSweep
	Slots         *sweep.SlotSweep
}

func NewSweepHandler(n *sweep.NotificationSweep, r *sweep.RetentionSweep, s *sweep.SlotSweep) *SweepHandler {
	return &SweepHandler{Notifications: n, Retention: r, Slots: s}
}

// RunNotifications handles POST /v1/internal/sweeps/notifications.
func (h *SweepHandler) RunNotifications(c echo.Context) error {
	sum, err := h.Notifications.Run(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("notification sweep failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed", "summary": sum})
	}
	return c.JSON(http.StatusOK, sum)
}

// RunRetention handles POST /v1/internal/sweeps/retention.
func (h *SweepHandler) RunRetention(c echo.Context) error {
	sum, err := h.Retention.Run(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("retention sweep failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed", "summary": sum})
	}
	return c.JSON(http.StatusOK, sum)
}

// RunSlots handles POST /v1/internal/sweeps/slots. Throttled like the
// opportunistic trigger; the response says whether a pass ran.
func (h *SweepHandler) RunSlots(c echo.Context) error {
	deleted, ran, err := h.Slots.Run(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("slot sweep failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ran": ran, "deleted": deleted})
}
