package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/MandraVEVO/ecommerce/internal/events"
	"github.com/MandraVEVO/ecommerce/internal/ids"
	"github.com/MandraVEVO/ecommerce/internal/metrics"
	"github.com/MandraVEVO/ecommerce/internal/models"
	"github.com/MandraVEVO/ecommerce/internal/repository"
	"github.com/MandraVEVO/ecommerce/internal/security"
)

const logoutReason = "user logout"

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	Create(ctx context.Context, user models.User) error
}

type RefreshTokenStore interface {
	Save(ctx context.Context, token models.RefreshToken) error
	FindActive(ctx context.Context, token string, userID string) (models.RefreshToken, error)
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	RevokeOne(ctx context.Context, userID string, sessionID string) error
	ListActive(ctx context.Context, userID string, now time.Time) ([]models.RefreshToken, error)
}

type BlacklistStore interface {
	Insert(ctx context.Context, entry models.BlacklistEntry) error
	Contains(ctx context.Context, token string) (bool, error)
}

type AuthDeps struct {
	Users      UserStore
	Sessions   RefreshTokenStore
	Blacklist  BlacklistStore
	Hasher     *security.PasswordHasher
	Tokens     *security.TokenCodec
	Policy     security.PasswordPolicy
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Events     events.Publisher
	Metrics    *metrics.Auth
	Log        zerolog.Logger
	Now        func() time.Time
}

// AuthService owns the session lifecycle: registration, login, refresh,
// logout and session management.
type AuthService struct {
	users      UserStore
	sessions   RefreshTokenStore
	blacklist  BlacklistStore
	hasher     *security.PasswordHasher
	tokens     *security.TokenCodec
	policy     security.PasswordPolicy
	accessTTL  time.Duration
	refreshTTL time.Duration
	events     events.Publisher
	metrics    *metrics.Auth
	log        zerolog.Logger
	now        func() time.Time
}

func NewAuthService(deps AuthDeps) *AuthService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	pub := deps.Events
	if pub == nil {
		pub = events.Nop{}
	}
	return &AuthService{
		users:      deps.Users,
		sessions:   deps.Sessions,
		blacklist:  deps.Blacklist,
		hasher:     deps.Hasher,
		tokens:     deps.Tokens,
		policy:     deps.Policy,
		accessTTL:  deps.AccessTTL,
		refreshTTL: deps.RefreshTTL,
		events:     pub,
		metrics:    deps.Metrics,
		log:        deps.Log,
		now:        now,
	}
}

func (s *AuthService) AccessTTL() time.Duration { return s.accessTTL }
func (s *AuthService) RefreshTTL() time.Duration { return s.refreshTTL }

type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Device   models.DeviceMeta
}

type LoginInput struct {
	Email    string
	Password string
	Device   models.DeviceMeta
}

type AuthResult struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	SessionID        string
	User             models.PublicUser
}

type RefreshResult struct {
	AccessToken     string
	AccessExpiresAt time.Time
	User            models.PublicUser
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	email := normalizeEmail(input.Email)
	fullName := strings.TrimSpace(input.FullName)
	if email == "" || input.Password == "" || fullName == "" {
		return AuthResult{}, fmt.Errorf("%w: email, password and full name are required", ErrInvalidInput)
	}
	if err := s.policy.Check(input.Password); err != nil {
		s.metrics.Login("weak_password")
		return AuthResult{}, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		s.metrics.Login("email_taken")
		return AuthResult{}, ErrEmailAlreadyRegistered
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	now := s.now().UTC()
	user := models.User{
		ID:           ids.NewUUID(),
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         models.UserRoleClient,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			s.metrics.Login("email_taken")
			return AuthResult{}, ErrEmailAlreadyRegistered
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("user registered")

	return s.openSession(ctx, user, input.Device)
}

// Login fails with ErrInvalidCredentials for both an unknown email and a
// wrong password, after the same amount of hashing work.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	email := normalizeEmail(input.Email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.VerifyDummy(input.Password)
			s.metrics.Login("invalid_credentials")
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}

	if !s.hasher.Verify(user.PasswordHash, input.Password) {
		s.metrics.Login("invalid_credentials")
		return AuthResult{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		s.metrics.Login("inactive")
		return AuthResult{}, ErrUserInactive
	}

	return s.openSession(ctx, user, input.Device)
}

func (s *AuthService) openSession(ctx context.Context, user models.User, device models.DeviceMeta) (AuthResult, error) {
	subject := security.TokenSubject{UserID: user.ID, Email: user.Email, Role: string(user.Role)}

	access, accessExp, err := s.tokens.Issue(subject, security.TokenKindAccess, s.accessTTL)
	if err != nil {
		return AuthResult{}, err
	}
	refresh, refreshExp, err := s.tokens.Issue(subject, security.TokenKindRefresh, s.refreshTTL)
	if err != nil {
		return AuthResult{}, err
	}

	row := models.RefreshToken{
		ID:        ids.New(),
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: refreshExp,
		CreatedAt: s.now().UTC(),
		UserAgent: optional(device.UserAgent),
		IPAddress: optional(device.IPAddress),
	}
	if err := s.sessions.Save(ctx, row); err != nil {
		return AuthResult{}, fmt.Errorf("save refresh token: %w", err)
	}

	s.metrics.Login("success")
	s.publish(ctx, events.Event{Type: events.SessionCreated, UserID: user.ID, SessionID: row.ID})
	s.log.Info().Str("user_id", user.ID).Str("session_id", row.ID).Msg("session opened")

	return AuthResult{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		SessionID:        row.ID,
		User:             user.Public(),
	}, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh token
// itself is not rotated and stays usable until it expires or is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		s.metrics.Refresh("invalid_token")
		if errors.Is(err, security.ErrTokenExpired) {
			return RefreshResult{}, ErrTokenExpired
		}
		return RefreshResult{}, ErrSignatureInvalid
	}
	if claims.Kind != security.TokenKindRefresh {
		s.metrics.Refresh("wrong_kind")
		return RefreshResult{}, ErrRefreshTokenInvalid
	}

	row, err := s.sessions.FindActive(ctx, refreshToken, claims.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			s.metrics.Refresh("revoked")
			return RefreshResult{}, ErrRefreshTokenInvalid
		}
		return RefreshResult{}, fmt.Errorf("lookup refresh token: %w", err)
	}
	if row.Expired(s.now()) {
		s.metrics.Refresh("expired")
		return RefreshResult{}, ErrRefreshTokenExpired
	}

	user, err := s.users.GetByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.metrics.Refresh("inactive")
			return RefreshResult{}, ErrUserNotFoundOrInactive
		}
		return RefreshResult{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		s.metrics.Refresh("inactive")
		return RefreshResult{}, ErrUserNotFoundOrInactive
	}

	subject := security.TokenSubject{UserID: user.ID, Email: user.Email, Role: string(user.Role)}
	access, accessExp, err := s.tokens.Issue(subject, security.TokenKindAccess, s.accessTTL)
	if err != nil {
		return RefreshResult{}, err
	}

	s.metrics.Refresh("success")
	return RefreshResult{AccessToken: access, AccessExpiresAt: accessExp, User: user.Public()}, nil
}

// Logout revokes every session of the user and blacklists the presented
// access token. A blacklist failure is logged and does not fail the logout.
func (s *AuthService) Logout(ctx context.Context, userID string, accessToken string) error {
	revoked, err := s.sessions.RevokeAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	s.metrics.Revocation("logout")
	s.publish(ctx, events.Event{
		Type:       events.SessionsRevokedAll,
		UserID:     userID,
		Attributes: map[string]string{"trigger": "logout", "revoked": fmt.Sprint(revoked)},
	})

	if accessToken == "" {
		return nil
	}
	claims, err := s.tokens.Verify(accessToken)
	if err != nil || claims.UserID() != userID {
		// expired or foreign tokens are rejected by the gate anyway
		return nil
	}

	entry := models.BlacklistEntry{
		ID:            ids.New(),
		Token:         accessToken,
		UserID:        userID,
		ExpiresAt:     claims.ExpiresAtTime(),
		BlacklistedAt: s.now().UTC(),
		Reason:        logoutReason,
	}
	if err := s.blacklist.Insert(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("blacklist access token failed")
		return nil
	}
	s.publish(ctx, events.Event{Type: events.TokenBlacklisted, UserID: userID, Attributes: map[string]string{"reason": logoutReason}})
	s.log.Info().Str("user_id", userID).Int64("revoked", revoked).Msg("user logged out")
	return nil
}

// LogoutAllDevices revokes every session without touching access tokens
// already issued; those remain valid until they expire.
func (s *AuthService) LogoutAllDevices(ctx context.Context, userID string) (int64, error) {
	revoked, err := s.sessions.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	s.metrics.Revocation("logout_all")
	s.publish(ctx, events.Event{
		Type:       events.SessionsRevokedAll,
		UserID:     userID,
		Attributes: map[string]string{"trigger": "logout_all", "revoked": fmt.Sprint(revoked)},
	})
	s.log.Info().Str("user_id", userID).Int64("revoked", revoked).Msg("all sessions revoked")
	return revoked, nil
}

func (s *AuthService) ListActiveSessions(ctx context.Context, userID string) ([]models.SessionSummary, error) {
	rows, err := s.sessions.ListActive(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]models.SessionSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Summary())
	}
	return out, nil
}

func (s *AuthService) RevokeSession(ctx context.Context, userID string, sessionID string) error {
	if err := s.sessions.RevokeOne(ctx, userID, sessionID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("revoke session: %w", err)
	}
	s.metrics.Revocation("session")
	s.publish(ctx, events.Event{Type: events.SessionRevoked, UserID: userID, SessionID: sessionID})
	s.log.Info().Str("user_id", userID).Str("session_id", sessionID).Msg("session revoked")
	return nil
}

func (s *AuthService) IsBlacklisted(ctx context.Context, accessToken string) (bool, error) {
	return s.blacklist.Contains(ctx, accessToken)
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	event.OccurredAt = s.now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", string(event.Type)).Msg("publish event failed")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
