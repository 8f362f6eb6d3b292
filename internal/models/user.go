package models

import "time"

type UserRole string

const (
	UserRoleClient        UserRole = "client"
	UserRoleSupplier      UserRole = "supplier"
	UserRoleAdministrator UserRole = "administrator"
)

// Valid reports whether r is one of the fixed marketplace roles.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleClient, UserRoleSupplier, UserRoleAdministrator:
		return true
	}
	return false
}

// User is owned by the user-management side of the marketplace; the auth
// service only reads it (and creates it on registration).
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	FullName     string
	Role         UserRole
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public is the projection safe to return to clients.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
}

type PublicUser struct {
	ID       string
	Email    string
	FullName string
	Role     UserRole
	IsActive bool
}

// Principal is the authenticated identity attached to a request. It is built
// once by the authenticator and passed by value downstream.
type Principal struct {
	ID       string
	Email    string
	FullName string
	Role     UserRole
	IsActive bool
}

func PrincipalFromUser(u User) Principal {
	return Principal{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
}
