package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/dmitrijs2005/lostfound/internal/server/auth"
	"github.com/dmitrijs2005/lostfound/internal/server/config"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/sessions"
)

const (
	// sessionTokenValidity caps the lifetime of a signed session token; the
	// idle timeout usually ends the session much earlier.
	sessionTokenValidity = 30 * 24 * time.Hour
	// touchInterval limits last_seen_at writes to one per interval.
	touchInterval = time.Minute
)

// SessionService is the session guard. It creates sessions, resolves signed
// session tokens and owns the synchronizer CSRF token of each session.
type SessionService struct {
	store       sessions.Repository
	secret      []byte
	idleTimeout time.Duration
	log         logging.Logger
	now         func() time.Time
}

func NewSessionService(store sessions.Repository, cfg *config.Config, log logging.Logger) *SessionService {
	return &SessionService{
		store:       store,
		secret:      []byte(cfg.SecretKey),
		idleTimeout: cfg.SessionIdleTimeout,
		log:         log,
		now:         time.Now,
	}
}

// NewSession creates an anonymous session with its CSRF token already set
// and returns it with the signed token the browser keeps.
func (s *SessionService) NewSession(ctx context.Context) (*models.Session, string, error) {
	id, err := auth.GenerateToken(auth.MinTokenBytes)
	if err != nil {
		return nil, "", common.ErrorInternal
	}
	csrf, err := auth.GenerateToken(auth.MinTokenBytes)
	if err != nil {
		return nil, "", common.ErrorInternal
	}

	now := s.now()
	sess := &models.Session{ID: id, CSRFToken: csrf, CreatedAt: now, LastSeenAt: now}
	if err := s.store.Create(ctx, sess); err != nil {
		s.log.Error(ctx, "error creating session", "error", err)
		return nil, "", common.ErrorInternal
	}

	token, err := auth.SignSessionToken(id, s.secret, sessionTokenValidity)
	if err != nil {
		return nil, "", common.ErrorInternal
	}
	return sess, token, nil
}

// Load resolves a signed session token. Any malformed, forged, unknown or
// idle token yields common.ErrSessionNotFound; only backend failures yield
// common.ErrorInternal.
func (s *SessionService) Load(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, common.ErrSessionNotFound
	}
	id, err := auth.ParseSessionToken(token, s.secret)
	if err != nil {
		return nil, common.ErrSessionNotFound
	}

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrSessionNotFound
		}
		s.log.Error(ctx, "error loading session", "error", err)
		return nil, common.ErrorInternal
	}

	now := s.now()
	if s.idleTimeout > 0 && now.Sub(sess.LastSeenAt) > s.idleTimeout {
		if err := s.store.Delete(ctx, sess.ID); err != nil {
			s.log.Warn(ctx, "error deleting idle session", "error", err)
		}
		return nil, common.ErrSessionNotFound
	}

	if now.Sub(sess.LastSeenAt) >= touchInterval {
		if err := s.store.Touch(ctx, sess.ID, now); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, common.ErrSessionNotFound
			}
			s.log.Warn(ctx, "error touching session", "error", err)
		} else {
			sess.LastSeenAt = now
		}
	}

	return sess, nil
}

// IssueCSRFToken returns the session's CSRF token, creating it on first use.
// Repeated calls on one session return the same token.
func (s *SessionService) IssueCSRFToken(ctx context.Context, sess *models.Session) (string, error) {
	if sess == nil {
		return "", common.ErrSessionNotFound
	}
	if sess.CSRFToken != "" {
		return sess.CSRFToken, nil
	}

	candidate, err := auth.GenerateToken(auth.MinTokenBytes)
	if err != nil {
		return "", common.ErrorInternal
	}
	stored, err := s.store.SetCSRFTokenIfEmpty(ctx, sess.ID, candidate)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrSessionNotFound
		}
		s.log.Error(ctx, "error storing csrf token", "error", err)
		return "", common.ErrorInternal
	}
	sess.CSRFToken = stored
	return stored, nil
}

// ValidateCSRFToken reports whether supplied equals the session's token,
// compared in constant time. It never fails loudly.
func (s *SessionService) ValidateCSRFToken(sess *models.Session, supplied string) bool {
	if sess == nil || sess.CSRFToken == "" || supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sess.CSRFToken), []byte(supplied)) == 1
}

// Login binds user to the session and replaces the anonymous CSRF token in
// the same write. This is the only point where the token rotates.
func (s *SessionService) Login(ctx context.Context, sess *models.Session, user *models.User) error {
	if sess == nil {
		return common.ErrSessionNotFound
	}
	if user == nil || user.ID == "" {
		return common.ErrInvalidCredentials
	}

	csrf, err := auth.GenerateToken(auth.MinTokenBytes)
	if err != nil {
		return common.ErrorInternal
	}

	now := s.now()
	if err := s.store.BindUser(ctx, sess.ID, user.ID, csrf, now); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrSessionNotFound
		}
		s.log.Error(ctx, "error binding session", "error", err)
		return common.ErrorInternal
	}

	sess.UserID = user.ID
	sess.CSRFToken = csrf
	sess.LastSeenAt = now
	return nil
}

// Logout deletes the session. The old token resolves to nothing afterwards.
func (s *SessionService) Logout(ctx context.Context, sess *models.Session) error {
	if sess == nil {
		return nil
	}
	if err := s.store.Delete(ctx, sess.ID); err != nil {
		s.log.Error(ctx, "error deleting session", "error", err)
		return common.ErrorInternal
	}
	sess.UserID = ""
	sess.CSRFToken = ""
	return nil
}

// PruneIdle removes sessions that passed the idle timeout.
func (s *SessionService) PruneIdle(ctx context.Context) (int64, error) {
	if s.idleTimeout <= 0 {
		return 0, nil
	}
	return s.store.DeleteIdle(ctx, s.now().Add(-s.idleTimeout))
}
