package security

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

var ErrWeakPassword = errors.New("password does not meet policy")

// PasswordPolicy: length bounds, at least one upper and one lower case letter,
// and at least one digit or symbol.
type PasswordPolicy struct {
	MinLength int
	MaxLength int
}

func (p PasswordPolicy) Check(password string) error {
	n := utf8.RuneCountInString(password)
	if n < p.MinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, p.MinLength)
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		return fmt.Errorf("%w: must be at most %d characters", ErrWeakPassword, p.MaxLength)
	}

	var upper, lower, digitOrSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r), unicode.IsPunct(r), unicode.IsSymbol(r):
			digitOrSymbol = true
		}
	}
	if !upper || !lower || !digitOrSymbol {
		return fmt.Errorf("%w: needs an upper case letter, a lower case letter and a digit or symbol", ErrWeakPassword)
	}
	return nil
}
