// Package sessions is the shared session store. Two backends are provided,
// PostgreSQL and Redis; either one keeps sessions valid across server
// instances.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/server/models"
)

// Repository persists sessions. Unknown or expired ids yield
// common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	// SetCSRFTokenIfEmpty stores token only when the session has none yet and
	// returns whichever token the session holds afterwards.
	SetCSRFTokenIfEmpty(ctx context.Context, id string, token string) (string, error)
	// BindUser attaches userID and replaces the CSRF token in one write.
	BindUser(ctx context.Context, id string, userID string, csrfToken string, at time.Time) error
	Delete(ctx context.Context, id string) error
	// DeleteIdle removes sessions last seen before the cutoff.
	DeleteIdle(ctx context.Context, before time.Time) (int64, error)
}
