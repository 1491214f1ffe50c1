package handler // handler translates HTTP requests into service calls

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/achtaA-a/projet-de-fin/internal/middleware"
	"github.com/achtaA-a/projet-de-fin/internal/service"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Kind    service.Kind         `json:"kind"`
	Message string               `json:"message"`
	Fields  []service.FieldError `json:"fields,omitempty"`
}

// actorFrom builds the principal from the values JWTAuth stored in the
// context.  Anonymous requests yield the zero Actor.
func actorFrom(c echo.Context) service.Actor {
	uid, _ := c.Get(middleware.ContextUserID).(string)
	role, _ := c.Get(middleware.ContextRole).(string)
	return service.Actor{UserID: uid, Role: role}
}

// statusFor maps a service error kind to its HTTP status.
func statusFor(k service.Kind) int {
	switch k {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindInvalidTransition, service.KindNotCancellable, service.KindConflict:
		return http.StatusConflict
	case service.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an error body.  Internal causes are never echoed to
// the client.
func fail(c echo.Context, err error) error {
	var se *service.Error
	if !errors.As(err, &se) {
		se = &service.Error{Kind: service.KindInternal, Message: "internal error", Err: err}
	}
	body := errorBody{Kind: se.Kind, Message: se.Message, Fields: se.Fields}
	if se.Kind == service.KindInternal {
		body.Message = "internal error"
		c.Logger().Errorf("internal error: %v", err)
	}
	return c.JSON(statusFor(se.Kind), echo.Map{"error": body})
}

// badRequest reports a malformed request that never reached the service.
func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": errorBody{Kind: service.KindValidation, Message: msg}})
}

// queryInt parses an optional positive integer query parameter.
func queryInt(c echo.Context, name string) (int, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
