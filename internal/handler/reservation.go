package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/achtaA-a/projet-de-fin/internal/service"
)

// ReservationHandler exposes the reservation lifecycle to customers.
// Creation and lookup by reference are public; everything else runs
// behind JWTAuth and is subject to the ownership rules of the service.
type ReservationHandler struct {
	svc *service.ReservationService
}

// NewReservationHandler panics when svc is nil.
func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{svc: svc}
}

// Create handles POST /v1/reservations.  When the request carries a token
// the reservation is attached to its subject.
func (h *ReservationHandler) Create(c echo.Context) error {
	var req service.CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	r, err := h.svc.Create(c.Request().Context(), req, actorFrom(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// GetByReference handles GET /v1/reservations/reference/:reference.
func (h *ReservationHandler) GetByReference(c echo.Context) error {
	r, err := h.svc.GetByReference(c.Request().Context(), c.Param("reference"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	r, err := h.svc.Get(c.Request().Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// Cancellable handles GET /v1/reservations/:id/cancellable.
func (h *ReservationHandler) Cancellable(c echo.Context) error {
	res, err := h.svc.Cancellability(c.Request().Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Cancel handles POST /v1/reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	r, err := h.svc.Cancel(c.Request().Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// RecordPayment handles POST /v1/reservations/:id/payment.
func (h *ReservationHandler) RecordPayment(c echo.Context) error {
	var req service.PaymentUpdate
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	r, err := h.svc.RecordPayment(c.Request().Context(), c.Param("id"), req, actorFrom(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}
