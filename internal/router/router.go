package router // package router registers the HTTP routes of the reservation API

import (
	"github.com/labstack/echo/v4"

	"github.com/achtaA-a/projet-de-fin/internal/handler"
	"github.com/achtaA-a/projet-de-fin/internal/middleware"
	"github.com/achtaA-a/projet-de-fin/internal/service"
)

// Handlers bundles the handlers mounted by Register.
type Handlers struct {
	Reservations      *handler.ReservationHandler
	AdminReservations *handler.AdminReservationHandler
	Flights           *handler.FlightHandler
}

// RegisterRoutes registers routes that need no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterReservations mounts the public and customer reservation routes.
// Creation accepts an optional token so signed-in customers own their
// bookings; the remaining per-reservation routes require CUSTOMER or ADMIN.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string) {
	e.POST("/v1/reservations", h.Create, middleware.OptionalJWT(jwtSecret))
	e.GET("/v1/reservations/reference/:reference", h.GetByReference)

	auth := e.Group("/v1/reservations")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(service.RoleCustomer, service.RoleAdmin))
	auth.GET("/:id", h.Get)
	auth.GET("/:id/cancellable", h.Cancellable)
	auth.POST("/:id/cancel", h.Cancel)
	auth.POST("/:id/payment", h.RecordPayment)
}

// RegisterFlights mounts the public flight search.  cache wraps the
// listing only.
func RegisterFlights(e *echo.Echo, h *handler.FlightHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/flights", h.PublicList, cache)
}

// RegisterAdmin mounts the /v1/admin back office.
func RegisterAdmin(e *echo.Echo, h Handlers, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(service.RoleAdmin))

	g.GET("/reservations", h.AdminReservations.List)
	g.GET("/reservations/status/:status", h.AdminReservations.ListByStatus)
	g.GET("/reservations/:id", h.AdminReservations.Get)
	g.PATCH("/reservations/:id", h.AdminReservations.Update)
	g.PATCH("/reservations/:id/status", h.AdminReservations.ChangeStatus)
	g.DELETE("/reservations/:id", h.AdminReservations.Delete)

	g.GET("/flights", h.Flights.AdminList)
	g.POST("/flights", h.Flights.Create)
}

// Register mounts every API route.
func Register(e *echo.Echo, h Handlers, jwtSecret string, flightCache echo.MiddlewareFunc) {
	RegisterRoutes(e)
	RegisterReservations(e, h.Reservations, jwtSecret)
	RegisterFlights(e, h.Flights, flightCache)
	RegisterAdmin(e, h, jwtSecret)
}
