package models

import "time"

// RefreshToken is one issued refresh token, i.e. one session. Rows are never
// deleted; revocation only flips IsRevoked.
type RefreshToken struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	IsRevoked bool
	CreatedAt time.Time
	UserAgent *string
	IPAddress *string
}

// Expired reports whether the session's validity window has passed at now.
func (t RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func (t RefreshToken) Summary() SessionSummary {
	return SessionSummary{
		ID:        t.ID,
		CreatedAt: t.CreatedAt,
		ExpiresAt: t.ExpiresAt,
		UserAgent: t.UserAgent,
		IPAddress: t.IPAddress,
	}
}

type SessionSummary struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
	UserAgent *string
	IPAddress *string
}

// BlacklistEntry invalidates one access token before its natural expiry.
// ExpiresAt mirrors the token's exp claim, so the entry may be purged after it.
type BlacklistEntry struct {
	ID            string
	Token         string
	UserID        string
	ExpiresAt     time.Time
	BlacklistedAt time.Time
	Reason        string
}

// DeviceMeta is the optional client metadata recorded with a session.
type DeviceMeta struct {
	UserAgent string
	IPAddress string
}
