package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/achtaA-a/projet-de-fin/internal/config"
	"github.com/achtaA-a/projet-de-fin/internal/logger"
	"github.com/achtaA-a/projet-de-fin/internal/middleware"
	"github.com/achtaA-a/projet-de-fin/internal/utils"
)

const secret = "test-secret"

func token(t *testing.T, user, role string, ttl time.Duration) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, user, role, ttl)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok.Token
}

func whoami(c echo.Context) error {
	uid, _ := c.Get(middleware.ContextUserID).(string)
	role, _ := c.Get(middleware.ContextRole).(string)
	return c.String(http.StatusOK, uid+"/"+role)
}

func serve(e *echo.Echo, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	g := e.Group("", middleware.JWTAuth(secret), middleware.RequireRole("ADMIN"))
	g.GET("/admin", whoami)

	if rec := serve(e, http.MethodGet, "/admin", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/admin", "garbage"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: got %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/admin", token(t, "u1", "admin", -time.Minute)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: got %d", rec.Code)
	}
	other, _ := utils.NewAccessToken("other-secret", "u1", "ADMIN", time.Minute)
	if rec := serve(e, http.MethodGet, "/admin", other.Token); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: got %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/admin", token(t, "u1", "CUSTOMER", time.Minute)); rec.Code != http.StatusForbidden {
		t.Fatalf("customer on admin route: got %d", rec.Code)
	}
	rec := serve(e, http.MethodGet, "/admin", token(t, "u1", "admin", time.Minute))
	if rec.Code != http.StatusOK || rec.Body.String() != "u1/ADMIN" {
		t.Fatalf("admin: got %d %q", rec.Code, rec.Body.String())
	}
}

func TestOptionalJWT(t *testing.T) {
	e := echo.New()
	e.GET("/maybe", whoami, middleware.OptionalJWT(secret))

	if rec := serve(e, http.MethodGet, "/maybe", ""); rec.Code != http.StatusOK || rec.Body.String() != "/" {
		t.Fatalf("anonymous: got %d %q", rec.Code, rec.Body.String())
	}
	if rec := serve(e, http.MethodGet, "/maybe", "garbage"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: got %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/maybe", token(t, "u7", "customer", time.Minute)); rec.Body.String() != "u7/CUSTOMER" {
		t.Fatalf("customer: got %q", rec.Body.String())
	}
}

func TestTokenBucketLocalFallback(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e := echo.New()
	e.Use(middleware.NewTokenBucket(cfg, nil, logger.NewNop()))
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		if rec := serve(e, http.MethodGet, "/ping", ""); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: got %d", i, rec.Code)
		}
	}
	rec := serve(e, http.MethodGet, "/ping", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" || rec.Header().Get("X-RateLimit-Limit") != "2" {
		t.Fatalf("missing rate limit headers: %v", rec.Header())
	}
}

func TestTokenBucketDisabled(t *testing.T) {
	e := echo.New()
	e.Use(middleware.NewTokenBucket(config.RateLimitConfig{}, nil, logger.NewNop()))
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	for i := 0; i < 5; i++ {
		if rec := serve(e, http.MethodGet, "/ping", ""); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: got %d", i, rec.Code)
		}
	}
}

func TestRecoverAndRequestID(t *testing.T) {
	e := echo.New()
	log := logger.NewNop()
	e.Use(middleware.RequestLogger(log), middleware.Recover(log))
	e.GET("/boom", func(c echo.Context) error { panic("boom") })

	rec := serve(e, http.MethodGet, "/boom", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"kind":"internal"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatalf("missing request id")
	}
}

func TestRedisCacheWithoutRedisPassesThrough(t *testing.T) {
	e := echo.New()
	e.Use(middleware.NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil))
	e.GET("/flights", func(c echo.Context) error { return c.String(http.StatusOK, "fresh") })

	rec := serve(e, http.MethodGet, "/flights", "")
	if rec.Body.String() != "fresh" || rec.Header().Get("X-Cache") != "" {
		t.Fatalf("unexpected response %q %v", rec.Body.String(), rec.Header())
	}
}
