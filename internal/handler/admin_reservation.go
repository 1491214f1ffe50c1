package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/achtaA-a/projet-de-fin/internal/model"
	"github.com/achtaA-a/projet-de-fin/internal/repository"
	"github.com/achtaA-a/projet-de-fin/internal/service"
)

// AdminReservationHandler serves the /v1/admin/reservations routes.  The
// router guarantees the caller holds the ADMIN role.
type AdminReservationHandler struct {
	svc *service.ReservationService
}

func NewAdminReservationHandler(svc *service.ReservationService) *AdminReservationHandler {
	if svc == nil {
		panic("nil service passed to NewAdminReservationHandler")
	}
	return &AdminReservationHandler{svc: svc}
}

// List handles GET /v1/admin/reservations?page=&limit=&sort=.
func (h *AdminReservationHandler) List(c echo.Context) error {
	page, ok := queryInt(c, "page")
	if !ok {
		return badRequest(c, "page must be a positive integer")
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return badRequest(c, "limit must be a positive integer")
	}
	sort, ok := repository.ParseSort(c.QueryParam("sort"))
	if !ok {
		return badRequest(c, "sort must be one of createdAt, updatedAt, totalPrice, departureAt, reference, status with an optional - prefix")
	}
	res, err := h.svc.List(c.Request().Context(), repository.ListQuery{Page: page, PageSize: limit, Sort: sort})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ListByStatus handles GET /v1/admin/reservations/status/:status.
func (h *AdminReservationHandler) ListByStatus(c echo.Context) error {
	status := model.Status(strings.ToLower(c.Param("status")))
	items, err := h.svc.ListByStatus(c.Request().Context(), status)
	if err != nil {
		return fail(c, err)
	}
	if items == nil {
		items = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "total": len(items)})
}

// Get handles GET /v1/admin/reservations/:id.
func (h *AdminReservationHandler) Get(c echo.Context) error {
	r, err := h.svc.Get(c.Request().Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// Update handles PATCH /v1/admin/reservations/:id.
func (h *AdminReservationHandler) Update(c echo.Context) error {
	var patch service.ReservationPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	r, err := h.svc.Update(c.Request().Context(), c.Param("id"), patch, actorFrom(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

type statusRequest struct {
	Status string `json:"status"`
}

// ChangeStatus handles PATCH /v1/admin/reservations/:id/status.
func (h *AdminReservationHandler) ChangeStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	to := model.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	r, err := h.svc.ChangeStatus(c.Request().Context(), c.Param("id"), to, actorFrom(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// Delete handles DELETE /v1/admin/reservations/:id.
func (h *AdminReservationHandler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
