// Package memstore holds mutex-guarded, in-process implementations of the
// user, refresh-token and blacklist stores. They back unit and handler tests;
// production always uses the Postgres repositories.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MandraVEVO/ecommerce/internal/models"
	"github.com/MandraVEVO/ecommerce/internal/repository"
)

type Users struct {
	mu    sync.RWMutex
	byID  map[string]models.User
	email map[string]string
}

func NewUsers() *Users {
	return &Users{byID: map[string]models.User{}, email: map[string]string{}}
}

func (s *Users) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, ok := s.email[key]; ok {
		return repository.ErrEmailTaken
	}
	user.Email = key
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
		user.UpdatedAt = user.CreatedAt
	}
	s.byID[user.ID] = user
	s.email[key] = user.ID
	return nil
}

func (s *Users) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.email[strings.ToLower(email)]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *Users) GetByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

// SetActive flips a user's active flag, standing in for user management.
func (s *Users) SetActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.byID[id]; ok {
		user.IsActive = active
		s.byID[id] = user
	}
}

// SetRole changes a user's role, standing in for user management.
func (s *Users) SetRole(id string, role models.UserRole) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.byID[id]; ok {
		user.Role = role
		s.byID[id] = user
	}
}

type RefreshTokens struct {
	mu   sync.RWMutex
	rows map[string]models.RefreshToken
}

func NewRefreshTokens() *RefreshTokens {
	return &RefreshTokens{rows: map[string]models.RefreshToken{}}
}

func (s *RefreshTokens) Save(_ context.Context, token models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token.IsRevoked = false
	s.rows[token.ID] = token
	return nil
}

func (s *RefreshTokens) FindActive(_ context.Context, token string, userID string) (models.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.rows {
		if row.Token == token && row.UserID == userID && !row.IsRevoked {
			return row, nil
		}
	}
	return models.RefreshToken{}, repository.ErrRefreshTokenNotFound
}

func (s *RefreshTokens) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, row := range s.rows {
		if row.UserID == userID && !row.IsRevoked {
			row.IsRevoked = true
			s.rows[id] = row
			n++
		}
	}
	return n, nil
}

func (s *RefreshTokens) RevokeOne(_ context.Context, userID string, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[sessionID]
	if !ok || row.UserID != userID {
		return repository.ErrSessionNotFound
	}
	row.IsRevoked = true
	s.rows[sessionID] = row
	return nil
}

func (s *RefreshTokens) ListActive(_ context.Context, userID string, now time.Time) ([]models.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RefreshToken
	for _, row := range s.rows {
		if row.UserID == userID && !row.IsRevoked && row.ExpiresAt.After(now) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Get returns a row regardless of state, for assertions.
func (s *RefreshTokens) Get(id string) (models.RefreshToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	return row, ok
}

type Blacklist struct {
	mu      sync.RWMutex
	entries map[string]models.BlacklistEntry
	// Err, when set, is returned by every call.
	Err error
}

func NewBlacklist() *Blacklist {
	return &Blacklist{entries: map[string]models.BlacklistEntry{}}
}

func (s *Blacklist) Insert(_ context.Context, entry models.BlacklistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.entries[entry.Token]; !ok {
		s.entries[entry.Token] = entry
	}
	return nil
}

func (s *Blacklist) Contains(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return false, s.Err
	}
	_, ok := s.entries[token]
	return ok, nil
}

func (s *Blacklist) Find(_ context.Context, token string) (models.BlacklistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return models.BlacklistEntry{}, s.Err
	}
	entry, ok := s.entries[token]
	if !ok {
		return models.BlacklistEntry{}, repository.ErrBlacklistEntryNotFound
	}
	return entry, nil
}

func (s *Blacklist) PurgeExpired(_ context.Context, cutoff time.Time, limit int) ([]models.BlacklistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []models.BlacklistEntry
	for token, entry := range s.entries {
		if len(out) >= limit {
			break
		}
		if entry.ExpiresAt.Before(cutoff) {
			out = append(out, entry)
			delete(s.entries, token)
		}
	}
	return out, nil
}

func (s *Blacklist) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
