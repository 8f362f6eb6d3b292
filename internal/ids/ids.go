// Package ids generates sortable identifiers for rows the auth service owns
// (sessions and blacklist entries) and UUIDs for user records.
package ids

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

func New() string {
	return ksuid.New().String()
}

// Valid reports whether s parses as an identifier produced by New.
func Valid(s string) bool {
	_, err := ksuid.Parse(s)
	return err == nil
}

// NewUUID is used for user ids, which the users table stores as uuid.
func NewUUID() string {
	return uuid.NewString()
}
