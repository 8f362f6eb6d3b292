// Package metrics exposes prometheus counters for the auth flows. A nil *Auth
// is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Auth struct {
	logins     *prometheus.CounterVec
	refreshes  *prometheus.CounterVec
	logouts    *prometheus.CounterVec
	rejections *prometheus.CounterVec
	blacklist  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Auth {
	m := &Auth{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login and registration attempts by outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "auth",
			Name:      "refreshes_total",
			Help:      "Access token refresh attempts by outcome.",
		}, []string{"outcome"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "auth",
			Name:      "revocations_total",
			Help:      "Session revocations by kind.",
		}, []string{"kind"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "auth",
			Name:      "gate_rejections_total",
			Help:      "Requests rejected by the authenticator or role check, by reason.",
		}, []string{"reason"}),
		blacklist: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "auth",
			Name:      "blacklist_lookups_total",
			Help:      "Blacklist lookups by cache result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.logins, m.refreshes, m.logouts, m.rejections, m.blacklist)
	return m
}

func (m *Auth) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Auth) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Auth) Revocation(kind string) {
	if m == nil {
		return
	}
	m.logouts.WithLabelValues(kind).Inc()
}

func (m *Auth) Rejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *Auth) BlacklistLookup(result string) {
	if m == nil {
		return
	}
	m.blacklist.WithLabelValues(result).Inc()
}
