package middleware

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context

	"github.com/iliyamo/studio-booking/internal/model"
)

// Capability names the actions a request may be granted. Routes guard
// themselves with RequireCapability and never compare role strings
// directly; the mapping from role to capability lives in one table
// below so policy changes touch a single place.
const (
	CapSlotsManage    = "slots.manage"    // create/delete/hide slots
	CapBookingsOwn    = "bookings.own"    // create and manage one's own bookings
	CapBookingsManage = "bookings.manage" // confirm/cancel/complete any booking
	CapPaymentsManage = "payments.manage" // record payments, attach invoices
	CapBookingsBrowse = "bookings.browse" // list bookings across customers
)

// roleCapabilities is the closed authorization table. ADMIN holds every
// capability STAFF does; CUSTOMER only acts on their own bookings.
var roleCapabilities = map[string]map[string]bool{
	model.RoleAdmin: {
		CapSlotsManage:    true,
		CapBookingsOwn:    true,
		CapBookingsManage: true,
		CapPaymentsManage: true,
		CapBookingsBrowse: true,
	},
	model.RoleStaff: {
		CapSlotsManage:    true,
		CapBookingsManage: true,
		CapPaymentsManage: true,
		CapBookingsBrowse: true,
	},
	model.RoleCustomer: {
		CapBookingsOwn: true,
	},
}

// Can reports whether a role holds a capability. Unknown roles hold
// nothing.
func Can(role, capability string) bool {
	return roleCapabilities[role][capability]
}

// RequireCapability returns a middleware that aborts with 403 unless
// the authenticated user's role grants the capability. It assumes
// JWTAuth already stored the role claim in the context.
func RequireCapability(capability string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !Can(Role(c), capability) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
