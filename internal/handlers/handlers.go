package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MandraVEVO/ecommerce/internal/config"
	"github.com/MandraVEVO/ecommerce/internal/metrics"
	"github.com/MandraVEVO/ecommerce/internal/middleware"
	"github.com/MandraVEVO/ecommerce/internal/models"
	"github.com/MandraVEVO/ecommerce/internal/service"
)

// Pinger is a dependency checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Deps struct {
	Config        *config.AppConfig
	Auth          *service.AuthService
	Authenticator middleware.PrincipalAuthenticator
	// RateLimit guards the credential endpoints; nil disables it.
	RateLimit gin.HandlerFunc
	Checks    map[string]Pinger
	Metrics   *metrics.Auth
	Log       zerolog.Logger
}

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	authService *service.AuthService
	authn       middleware.PrincipalAuthenticator
	rateLimit   gin.HandlerFunc
	checks      map[string]Pinger
	metrics     *metrics.Auth
}

func NewHandlerSet(deps Deps) HandlerSet {
	return HandlerSet{
		log:         deps.Log,
		cfg:         deps.Config,
		authService: deps.Auth,
		authn:       deps.Authenticator,
		rateLimit:   deps.RateLimit,
		checks:      deps.Checks,
		metrics:     deps.Metrics,
	}
}

type route struct {
	method  string
	path    string
	policy  middleware.RoutePolicy
	limited bool
	handle  gin.HandlerFunc
}

// routes is the full API surface with the access policy of each route.
func (h HandlerSet) routes() []route {
	admin := middleware.Roles(models.UserRoleAdministrator)
	return []route{
		{http.MethodPost, "/auth/register", middleware.Public(), true, h.Register},
		{http.MethodPost, "/auth/login", middleware.Public(), true, h.Login},
		{http.MethodPost, "/auth/refresh", middleware.Public(), true, h.Refresh},
		{http.MethodPost, "/auth/logout", middleware.Authenticated(), false, h.Logout},
		{http.MethodPost, "/auth/logout-all", middleware.Authenticated(), false, h.LogoutAll},
		{http.MethodGet, "/auth/me", middleware.Authenticated(), false, h.Me},
		{http.MethodGet, "/auth/sessions", middleware.Authenticated(), false, h.ListSessions},
		{http.MethodDelete, "/auth/sessions/:sessionId", middleware.Authenticated(), false, h.RevokeSession},
		{http.MethodGet, "/admin/users/:userId/sessions", admin, false, h.AdminListSessions},
		{http.MethodPost, "/admin/users/:userId/logout-all", admin, false, h.AdminLogoutAll},
	}
}

// Mount registers /healthz and every API route under the configured base path.
func (h HandlerSet) Mount(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	base := router
	if h.cfg != nil && h.cfg.HTTP.BasePath != "" {
		base = router.Group(h.cfg.HTTP.BasePath)
	}

	for _, r := range h.routes() {
		chain := make([]gin.HandlerFunc, 0, 4)
		if r.limited && h.rateLimit != nil {
			chain = append(chain, h.rateLimit)
		}
		if r.policy.RequiresAuth() {
			chain = append(chain, middleware.Auth(h.authn))
		}
		chain = append(chain, middleware.Authorize(r.policy, h.metrics), r.handle)
		base.Handle(r.method, r.path, chain...)
	}
}

// principal is only called behind Auth, so a missing principal is a wiring bug.
func principal(c *gin.Context) (models.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		writeError(c, &service.UnauthorizedError{Reason: "no principal"})
	}
	return p, ok
}
