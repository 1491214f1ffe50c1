package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/achtaA-a/projet-de-fin/internal/repository"
	"github.com/achtaA-a/projet-de-fin/internal/service"
)

// FlightHandler serves the flight inventory.
type FlightHandler struct {
	svc *service.FlightService
}

func NewFlightHandler(svc *service.FlightService) *FlightHandler {
	if svc == nil {
		panic("nil service passed to NewFlightHandler")
	}
	return &FlightHandler{svc: svc}
}

// PublicList handles GET /v1/flights.  Only active flights are listed.
func (h *FlightHandler) PublicList(c echo.Context) error {
	return h.list(c, true)
}

// AdminList handles GET /v1/admin/flights.  The optional active=true|false
// parameter filters on the active flag; inactive flights are included by
// default.
func (h *FlightHandler) AdminList(c echo.Context) error {
	activeOnly := false
	if raw := c.QueryParam("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "active must be true or false")
		}
		activeOnly = v
	}
	return h.list(c, activeOnly)
}

func (h *FlightHandler) list(c echo.Context, activeOnly bool) error {
	page, ok := queryInt(c, "page")
	if !ok {
		return badRequest(c, "page must be a positive integer")
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return badRequest(c, "limit must be a positive integer")
	}
	res, err := h.svc.List(c.Request().Context(), repository.FlightQuery{
		DestinationID: c.QueryParam("destinationId"),
		ActiveOnly:    activeOnly,
		Page:          page,
		PageSize:      limit,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Create handles POST /v1/admin/flights.
func (h *FlightHandler) Create(c echo.Context) error {
	var req service.CreateFlightRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	f, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, f)
}
