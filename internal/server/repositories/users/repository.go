// Package users is the credential store: identity records, password hashes,
// activation flags and reset-token state.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/server/models"
)

// Repository persists users. Lookups that match nothing return
// common.ErrorNotFound; backend failures wrap common.ErrStorage.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	// Create inserts user and fills in its id and timestamps. A second
	// account with the same e-mail (case-insensitive) yields
	// common.ErrDuplicateEmail.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdateFields(ctx context.Context, id string, upd models.UserUpdate) error
	SetResetToken(ctx context.Context, id string, token string, expiresAt time.Time) error
	// ClearResetToken drops any outstanding reset token of the user.
	ClearResetToken(ctx context.Context, id string) error
	// ConsumeResetToken swaps the password hash and clears the reset token in
	// one conditional update. It matches only while the token is unexpired at
	// now, so a token can be consumed at most once.
	ConsumeResetToken(ctx context.Context, token string, newPasswordHash string, now time.Time) (*models.User, error)
	// Activate sets is_active and email_verified together.
	Activate(ctx context.Context, id string) (*models.User, error)
}
