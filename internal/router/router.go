package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // Echo web framework used for routing

	"github.com/iliyamo/studio-booking/internal/handler"    // HTTP handlers implementing the endpoints
	"github.com/iliyamo/studio-booking/internal/middleware" // JWT auth, capability checks, limits
)

// Deps bundles every handler and the middleware parameters the route
// table needs. Keeping registration in one place makes the full HTTP
// surface reviewable at a glance.
type Deps struct {
	Auth      *handler.AuthHandler
	Bookings  *handler.BookingHandler
	Staff     *handler.StaffBookingHandler
	Payments  *handler.PaymentHandler
	Slots     *handler.SlotHandler
	Sweeps    *handler.SweepHandler

	JWTSecret   string
	SweepSecret string

	// RateLimit wraps booking creation; Cache wraps the public
	// availability read. Either may be nil to disable the concern.
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// Register wires the whole route table onto the Echo instance.
//
// Public:     health check, auth, provider availability.
// Customer:   own bookings, cancellation, proof and photo uploads.
// Staff:      booking lifecycle, payments, invoices, slot management.
// Internal:   sweep triggers for the external scheduler.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	// Unauthenticated session endpoints.
	authGroup := e.Group("/v1/auth")
	authGroup.POST("/register", d.Auth.Register)
	authGroup.POST("/login", d.Auth.Login)

	// Public availability browsing; guests see open slots before
	// registering. The short-TTL response cache sits only here.
	if d.Cache != nil {
		e.GET("/v1/providers/:id/slots", d.Slots.ListAvailable, d.Cache)
	} else {
		e.GET("/v1/providers/:id/slots", d.Slots.ListAvailable)
	}

	// Everything below requires a valid access token.
	authed := e.Group("/v1")
	authed.Use(middleware.JWTAuth(d.JWTSecret))
	authed.GET("/me", d.Auth.Me)

	// Customer booking surface.
	own := authed.Group("/bookings")
	own.Use(middleware.RequireCapability(middleware.CapBookingsOwn))
	if d.RateLimit != nil {
		own.POST("", d.Bookings.Create, d.RateLimit)
	} else {
		own.POST("", d.Bookings.Create)
	}
	own.GET("", d.Bookings.ListMine)
	own.GET("/:id", d.Bookings.GetMine)
	own.POST("/:id/cancel", d.Bookings.CancelMine)
	own.POST("/:id/proof", d.Bookings.UploadProof)
	own.POST("/:id/photos", d.Bookings.UploadPhoto)

	// Staff booking lifecycle.
	staff := authed.Group("/staff/bookings")
	staff.Use(middleware.RequireCapability(middleware.CapBookingsManage))
	staff.GET("", d.Staff.List, middleware.RequireCapability(middleware.CapBookingsBrowse))
	staff.GET("/:id", d.Staff.Get)
	staff.POST("/:id/confirm", d.Staff.Confirm)
	staff.POST("/:id/cancel", d.Staff.Cancel)
	staff.POST("/:id/complete", d.Staff.Complete)
	staff.POST("/:id/payments", d.Payments.RecordPayment, middleware.RequireCapability(middleware.CapPaymentsManage))
	staff.POST("/:id/invoice", d.Payments.AttachInvoice, middleware.RequireCapability(middleware.CapPaymentsManage))

	// Slot calendar management.
	slots := authed.Group("/staff/slots")
	slots.Use(middleware.RequireCapability(middleware.CapSlotsManage))
	slots.POST("", d.Slots.BulkCreate)
	slots.DELETE("/:id", d.Slots.Delete)
	slots.PATCH("/:id/hidden", d.Slots.SetHidden)

	// Internal sweep triggers for the external scheduler.
	internal := e.Group("/v1/internal/sweeps")
	internal.Use(middleware.SweepSecret(d.SweepSecret))
	internal.POST("/notifications", d.Sweeps.RunNotifications)
	internal.POST("/retention", d.Sweeps.RunRetention)
	internal.POST("/slots", d.Sweeps.RunSlots)
}
