// Package models defines server-side data models persisted in the database.
package models

import "time"

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// User is an identity record. PasswordHash is a bcrypt digest; the
// plaintext is never stored.
type User struct {
	ID                  string
	Email               string
	FullName            string
	PasswordHash        string
	Role                Role
	IsActive            bool
	EmailVerified       bool
	ResetToken          *string
	ResetTokenExpiresAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CanAuthenticate reports whether the account may log in. Both flags are
// required; administrative activation sets them together.
func (u *User) CanAuthenticate() bool {
	return u.IsActive && u.EmailVerified
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserUpdate is a partial update of a user row. Nil fields are left as they
// are. Activation flags and reset token state are deliberately absent: they
// change only through their dedicated repository methods.
type UserUpdate struct {
	Email        *string
	FullName     *string
	PasswordHash *string
	Role         *Role
}

func (u UserUpdate) Empty() bool {
	return u.Email == nil && u.FullName == nil && u.PasswordHash == nil && u.Role == nil
}
