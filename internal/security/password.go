package security

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const argon2idPrefix = "$argon2id$"

// PasswordHasher hashes new passwords with bcrypt and verifies both bcrypt
// hashes and argon2id hashes written by earlier account imports.
type PasswordHasher struct {
	cost  int
	dummy []byte
}

func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("timing-equaliser"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &PasswordHasher{cost: cost, dummy: dummy}, nil
}

func (h *PasswordHasher) Hash(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// Verify reports whether candidate matches storedHash. Malformed hashes never
// match. The plaintext is never returned or logged.
func (h *PasswordHasher) Verify(storedHash []byte, candidate string) bool {
	if bytes.HasPrefix(storedHash, []byte(argon2idPrefix)) {
		ok, err := verifyArgon2id(candidate, storedHash)
		return err == nil && ok
	}
	return bcrypt.CompareHashAndPassword(storedHash, []byte(candidate)) == nil
}

// VerifyDummy burns the same work as a real comparison. Used when no user
// matched so that both login failure paths take the same time.
func (h *PasswordHasher) VerifyDummy(candidate string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(candidate))
}

type Argon2Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

var errMalformedHash = errors.New("malformed argon2id hash")

func verifyArgon2id(password string, encodedHash []byte) (bool, error) {
	var (
		time    uint32
		memory  uint32
		threads uint8
		saltB64 string
		hashB64 string
	)

	parts := bytes.Split(encodedHash, []byte("$"))
	// "", "argon2id", "v=19", "t=..,m=..,p=..", salt, hash
	if len(parts) != 6 {
		return false, errMalformedHash
	}
	if _, err := fmt.Sscanf(string(parts[3]), "t=%d,m=%d,p=%d", &time, &memory, &threads); err != nil {
		return false, fmt.Errorf("parse params: %w", err)
	}
	saltB64, hashB64 = string(parts[4]), string(parts[5])

	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}

	hash, err := base64.StdEncoding.DecodeString(hashB64)
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}

	params := Argon2Params{
		Time:    time,
		Memory:  memory,
		Threads: threads,
		KeyLen:  uint32(len(hash)),
		SaltLen: uint32(len(salt)),
	}

	computed := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)

	return subtle.ConstantTimeCompare(hash, computed) == 1, nil
}
