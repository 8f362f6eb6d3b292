package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MandraVEVO/ecommerce/internal/config"
	"github.com/MandraVEVO/ecommerce/internal/metrics"
	"github.com/MandraVEVO/ecommerce/internal/models"
	"github.com/MandraVEVO/ecommerce/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuthenticator struct {
	principals map[string]models.Principal
	err        error
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (models.Principal, error) {
	if s.err != nil {
		return models.Principal{}, s.err
	}
	p, ok := s.principals[token]
	if !ok {
		return models.Principal{}, &service.UnauthorizedError{Reason: "invalid token"}
	}
	return p, nil
}

var (
	clientPrincipal = models.Principal{ID: "u-1", Email: "c@example.com", Role: models.UserRoleClient, IsActive: true}
	adminPrincipal  = models.Principal{ID: "u-2", Email: "a@example.com", Role: models.UserRoleAdministrator, IsActive: true}
)

func newAuthRouter(authn PrincipalAuthenticator, policy RoutePolicy) *gin.Engine {
	r := gin.New()
	r.GET("/protected", Auth(authn), Authorize(policy, nil), func(c *gin.Context) {
		p, _ := PrincipalFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": p.ID, "token": AccessTokenFrom(c)})
	})
	return r
}

func doGet(r http.Handler, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	authn := stubAuthenticator{principals: map[string]models.Principal{"tok-client": clientPrincipal}}
	r := newAuthRouter(authn, Authenticated())

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer tok-client", http.StatusOK},
		{"lower case scheme", "bearer tok-client", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doGet(r, "/protected", tt.header)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"id":"u-1","token":"tok-client"}`, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"error":"unauthorized"`)
			}
		})
	}
}

func TestAuthMiddlewareUnavailable(t *testing.T) {
	authn := stubAuthenticator{err: errors.Join(service.ErrUnavailable, errors.New("redis down"))}
	w := doGet(newAuthRouter(authn, Authenticated()), "/protected", "Bearer tok")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthorizeRoles(t *testing.T) {
	authn := stubAuthenticator{principals: map[string]models.Principal{
		"tok-client": clientPrincipal,
		"tok-admin":  adminPrincipal,
	}}
	r := newAuthRouter(authn, Roles(models.UserRoleAdministrator, models.UserRoleSupplier))

	w := doGet(r, "/protected", "Bearer tok-admin")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doGet(r, "/protected", "Bearer tok-client")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `role \"client\" is not allowed`)
	assert.Contains(t, w.Body.String(), "administrator, supplier")
}

func TestAuthorizeCountsForbidden(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	authn := stubAuthenticator{principals: map[string]models.Principal{"tok-client": clientPrincipal}}

	r := gin.New()
	r.GET("/admin", Auth(authn), Authorize(Roles(models.UserRoleAdministrator), m), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusForbidden, doGet(r, "/admin", "Bearer tok-client").Code)

	expected := `
# HELP marketplace_auth_gate_rejections_total Requests rejected by the authenticator or role check, by reason.
# TYPE marketplace_auth_gate_rejections_total counter
marketplace_auth_gate_rejections_total{reason="forbidden"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "marketplace_auth_gate_rejections_total"))
}

func TestAuthorizeWithoutPrincipal(t *testing.T) {
	r := gin.New()
	r.GET("/x", Authorize(Authenticated(), nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "/x", "").Code)

	r = gin.New()
	r.GET("/x", Authorize(Public(), nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, doGet(r, "/x", "").Code)
}

func TestRoutePolicy(t *testing.T) {
	assert.False(t, Public().RequiresAuth())
	assert.True(t, Authenticated().RequiresAuth())
	assert.Equal(t, "authenticated", Roles().String())
	assert.Equal(t, "roles(administrator)", Roles(models.UserRoleAdministrator).String())

	p := Roles(models.UserRoleSupplier)
	assert.NoError(t, p.Check(models.UserRoleSupplier))
	err := p.Check(models.UserRoleClient)
	var forbidden *service.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, models.UserRoleClient, forbidden.Role)
	assert.Equal(t, []models.UserRole{models.UserRoleSupplier}, forbidden.Allowed)
	assert.NoError(t, Authenticated().Check(models.UserRoleClient))
}

func TestTimeoutSetsDeadline(t *testing.T) {
	r := gin.New()
	r.GET("/x", Timeout(50*time.Millisecond), func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		c.JSON(http.StatusOK, gin.H{"deadline": ok})
	})
	w := doGet(r, "/x", "")
	assert.JSONEq(t, `{"deadline":true}`, w.Body.String())
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	w := doGet(r, "/x", "")
	generated := w.Header().Get("X-Request-Id")
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestRecoveryRendersJSON(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.Nop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := doGet(r, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal_error","message":"internal server error"}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://shop.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSOpenListExposesHeadersWithoutCredentials(t *testing.T) {
	r := gin.New()
	r.Use(CORS(nil))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://any.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://any.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Retry-After")
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.RateLimitConfig{Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Minute}
	r := gin.New()
	r.POST("/auth/login", RateLimit(cfg, client, zerolog.Nop()), func(c *gin.Context) { c.Status(http.StatusOK) })

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "192.0.2.10:5555"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, post().Code)
	w := post()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = post()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "too_many_requests")
}

func TestRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Minute}
	r := gin.New()
	r.POST("/auth/login", RateLimit(cfg, client, zerolog.Nop()), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimit(config.RateLimitConfig{Enabled: false}, nil, zerolog.Nop())
	r := gin.New()
	r.GET("/x", h, func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, doGet(r, "/x", "").Code)
}
