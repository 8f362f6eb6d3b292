package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/MandraVEVO/ecommerce/internal/config"
	"github.com/MandraVEVO/ecommerce/internal/handlers"
	"github.com/MandraVEVO/ecommerce/internal/metrics"
)

func TestServerExposesMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Login("success")

	cfg := &config.AppConfig{Environment: "test"}
	h := handlers.NewHandlerSet(handlers.Deps{Config: cfg, Log: zerolog.Nop()})
	srv := NewHTTPServer(cfg, zerolog.Nop(), h, reg)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `marketplace_auth_logins_total{outcome="success"} 1`)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestServerAddress(t *testing.T) {
	cfg := &config.AppConfig{HTTP: config.HTTPConfig{Host: "127.0.0.1", Port: 8089}}
	srv := NewHTTPServer(cfg, zerolog.Nop(), handlers.NewHandlerSet(handlers.Deps{Config: cfg}), nil)
	assert.Equal(t, "127.0.0.1:8089", srv.server.Addr)
}
