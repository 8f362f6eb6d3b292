package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MandraVEVO/ecommerce/internal/metrics"
	"github.com/MandraVEVO/ecommerce/internal/models"
	"github.com/MandraVEVO/ecommerce/internal/service"
)

type policyKind int

const (
	policyPublic policyKind = iota
	policyAuthenticated
	policyRoles
)

// RoutePolicy is the access rule declared next to each route.
type RoutePolicy struct {
	kind  policyKind
	roles []models.UserRole
}

func Public() RoutePolicy { return RoutePolicy{kind: policyPublic} }

func Authenticated() RoutePolicy { return RoutePolicy{kind: policyAuthenticated} }

// Roles admits only principals whose role is one of roles. With no roles it
// is the same as Authenticated.
func Roles(roles ...models.UserRole) RoutePolicy {
	if len(roles) == 0 {
		return Authenticated()
	}
	return RoutePolicy{kind: policyRoles, roles: slices.Clone(roles)}
}

func (p RoutePolicy) RequiresAuth() bool {
	return p.kind != policyPublic
}

func (p RoutePolicy) AllowedRoles() []models.UserRole {
	return slices.Clone(p.roles)
}

// Check returns a *service.ForbiddenError when role is not admitted.
func (p RoutePolicy) Check(role models.UserRole) error {
	if p.kind != policyRoles || slices.Contains(p.roles, role) {
		return nil
	}
	return &service.ForbiddenError{Role: role, Allowed: p.AllowedRoles()}
}

func (p RoutePolicy) String() string {
	switch p.kind {
	case policyPublic:
		return "public"
	case policyAuthenticated:
		return "authenticated"
	}
	names := make([]string, len(p.roles))
	for i, r := range p.roles {
		names[i] = string(r)
	}
	return "roles(" + strings.Join(names, ",") + ")"
}

// Authorize enforces p against the principal set by Auth. It must run after
// Auth for any policy other than Public. m may be nil.
func Authorize(p RoutePolicy, m *metrics.Auth) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !p.RequiresAuth() {
			c.Next()
			return
		}
		principal, ok := PrincipalFrom(c)
		if !ok {
			m.Rejection("no principal")
			abort(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if err := p.Check(principal.Role); err != nil {
			m.Rejection("forbidden")
			abort(c, http.StatusForbidden, "forbidden", err.Error())
			return
		}
		c.Next()
	}
}
