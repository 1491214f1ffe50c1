package middleware

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/achtaA-a/projet-de-fin/internal/logger"
)

// ContextRequestID is the context key of the request id.
const ContextRequestID = "request_id"

// RequestLogger assigns every request an id (kept from X-Request-ID when
// the client sent one) and logs one line once the handler returns.
func RequestLogger(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Set(ContextRequestID, rid)
			c.Response().Header().Set(echo.HeaderXRequestID, rid)

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			fields := []interface{}{
				"request_id", rid,
				"method", req.Method,
				"path", req.URL.Path,
				"status", status,
				"latency", time.Since(start),
				"user_id", currentUserID(c),
			}
			switch {
			case status >= http.StatusInternalServerError:
				log.Error("request", append(fields, "error", err)...)
			case status >= http.StatusBadRequest:
				log.Warn("request", fields...)
			default:
				log.Info("request", fields...)
			}
			return nil
		}
	}
}

// Recover turns a panic in a handler into a 500 response.
func Recover(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				buf := make([]byte, 4<<10)
				buf = buf[:runtime.Stack(buf, false)]
				log.Error("panic recovered", "panic", fmt.Sprint(r), "path", c.Request().URL.Path, "stack", string(buf))
				if c.Response().Committed {
					return
				}
				err = c.JSON(http.StatusInternalServerError, echo.Map{
					"error": echo.Map{"kind": "internal", "message": "internal error"},
				})
			}()
			return next(c)
		}
	}
}
