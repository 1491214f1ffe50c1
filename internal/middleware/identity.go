package middleware

import "github.com/labstack/echo/v4"

// currentUserID returns the authenticated subject or "anon".
func currentUserID(c echo.Context) string {
	if s, ok := c.Get(ContextUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
