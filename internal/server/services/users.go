package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/dbx"
	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/dmitrijs2005/lostfound/internal/server/auth"
	"github.com/dmitrijs2005/lostfound/internal/server/config"
	"github.com/dmitrijs2005/lostfound/internal/server/delivery"
	"github.com/dmitrijs2005/lostfound/internal/server/mail"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/lostfound/internal/server/validation"
	"github.com/google/uuid"
)

// RegisterInput is what a visitor submits on the sign-up form.
type RegisterInput struct {
	Email           string
	Password        string
	PasswordConfirm string
	FullName        string
}

// ProfileInput is a self-service profile edit. Empty fields stay unchanged.
type ProfileInput struct {
	Email    string
	FullName string
}

// UserService is the auth service: registration, authentication, password
// reset, activation and profile edits.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	validator   *validation.Validator
	queue       Enqueuer
	log         logging.Logger

	bcryptCost  int
	resetTTL    time.Duration
	autoApprove bool
	appURL      string

	dummyOnce sync.Once
	dummyHash string

	now func() time.Time
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, queue Enqueuer, log logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		validator:   validation.New(cfg.AllowedEmailDomains),
		queue:       queue,
		log:         log,
		bcryptCost:  cfg.BcryptCost,
		resetTTL:    cfg.ResetTokenTTL,
		autoApprove: cfg.AutoApprove,
		appURL:      cfg.AppURL,
		now:         time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register validates input and creates the account, inactive and unverified
// unless auto-approval is on.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	fullName := strings.TrimSpace(in.FullName)

	if err := s.validator.Struct(validation.Registration{
		Email:           email,
		Password:        in.Password,
		PasswordConfirm: in.PasswordConfirm,
		FullName:        fullName,
	}); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		s.log.Error(ctx, "error hashing password", "error", err)
		return nil, common.ErrorInternal
	}

	user := &models.User{
		Email:         email,
		FullName:      fullName,
		PasswordHash:  hash,
		Role:          models.RoleMember,
		IsActive:      s.autoApprove,
		EmailVerified: s.autoApprove,
	}

	user, err = s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			return nil, common.ErrDuplicateEmail
		}
		s.log.Error(ctx, "error creating user", "error", err)
		return nil, common.ErrorInternal
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID, "auto_approved", s.autoApprove)
	return user, nil
}

// dummy returns a fixed hash compared against when the e-mail is unknown,
// so both paths cost one bcrypt comparison.
func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := auth.HashPassword("lostfound-dummy-password", s.bcryptCost)
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// Authenticate checks credentials. Unknown e-mail and wrong password both
// yield common.ErrInvalidCredentials. A correct password on an account that
// is not yet active and verified yields common.ErrAccountPending, which
// also matches common.ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			auth.VerifyPassword(password, s.dummy())
			return nil, common.ErrInvalidCredentials
		}
		s.log.Error(ctx, "error loading user", "error", err)
		return nil, common.ErrorInternal
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}
	if !user.CanAuthenticate() {
		return nil, common.ErrAccountPending
	}

	return user, nil
}

// RequestPasswordReset issues a reset token and queues the link. The result
// never tells whether the e-mail is registered.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	repo := s.repomanager.Users(s.db)

	user, err := repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		s.log.Error(ctx, "error loading user", "error", err)
		return common.ErrorInternal
	}

	token, err := auth.GenerateToken(auth.MinTokenBytes)
	if err != nil {
		return common.ErrorInternal
	}
	expiresAt := auth.ComputeExpiry(s.now(), s.resetTTL)

	if err := repo.SetResetToken(ctx, user.ID, token, expiresAt); err != nil {
		s.log.Error(ctx, "error storing reset token", "user_id", user.ID, "error", err)
		return common.ErrorInternal
	}

	subject, body, err := mail.RenderPasswordReset(mail.ResetNotice{
		AppURL: s.appURL, FullName: user.FullName, Token: token, TTL: s.resetTTL,
	})
	if err != nil {
		s.log.Error(ctx, "error rendering reset mail", "error", err)
		return nil
	}

	job := delivery.Job{
		ID:      uuid.NewString(),
		Kind:    delivery.KindPasswordReset,
		Message: mail.Message{To: user.Email, Subject: subject, HTMLBody: body},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.log.Warn(ctx, "reset mail not queued", "user_id", user.ID, "error", err)
	}
	return nil
}

// ConsumePasswordReset sets a new password for the holder of token. The
// password is checked first so a weak choice does not burn the token; the
// hash swap and token clearing then happen in one conditional update.
func (s *UserService) ConsumePasswordReset(ctx context.Context, token, newPassword string) error {
	if err := s.validator.Struct(validation.PasswordChange{Password: newPassword}); err != nil {
		return err
	}
	if token == "" {
		return common.ErrInvalidOrExpiredToken
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return common.ErrorInternal
	}

	user, err := s.repomanager.Users(s.db).ConsumeResetToken(ctx, token, hash, s.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidOrExpiredToken
		}
		s.log.Error(ctx, "error consuming reset token", "error", err)
		return common.ErrorInternal
	}

	s.log.Info(ctx, "password reset", "user_id", user.ID)
	return nil
}

// Activate marks the account active and verified in one update.
func (s *UserService) Activate(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).Activate(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.log.Error(ctx, "error activating user", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}
	s.log.Info(ctx, "user activated", "user_id", userID)
	return user, nil
}

// ActivateByEmail is the operator variant of Activate.
func (s *UserService) ActivateByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.Activate(ctx, user.ID)
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.log.Error(ctx, "error loading user", "error", err)
		return nil, common.ErrorInternal
	}
	return user, nil
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.log.Error(ctx, "error loading user", "error", err)
		return nil, common.ErrorInternal
	}
	return user, nil
}

// UpdateProfile applies a self-service edit and returns the updated user.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	fullName := strings.TrimSpace(in.FullName)

	if err := s.validator.Struct(validation.Profile{Email: email, FullName: fullName}); err != nil {
		return nil, err
	}

	var upd models.UserUpdate
	if email != "" {
		upd.Email = &email
	}
	if fullName != "" {
		upd.FullName = &fullName
	}

	repo := s.repomanager.Users(s.db)
	if err := repo.UpdateFields(ctx, userID, upd); err != nil {
		switch {
		case errors.Is(err, common.ErrDuplicateEmail), errors.Is(err, common.ErrorNotFound):
			return nil, err
		default:
			s.log.Error(ctx, "error updating user", "user_id", userID, "error", err)
			return nil, common.ErrorInternal
		}
	}

	return s.GetUser(ctx, userID)
}

// CreateAdmin creates an active, verified administrator, or promotes and
// re-keys the existing account with that e-mail, revoking its reset token.
// Both paths run in one transaction.
func (s *UserService) CreateAdmin(ctx context.Context, email, password, fullName string) (*models.User, error) {
	email = normalizeEmail(email)
	fullName = strings.TrimSpace(fullName)

	if err := s.validator.Struct(validation.Registration{
		Email: email, Password: password, PasswordConfirm: password, FullName: fullName,
	}); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, common.ErrorInternal
	}

	var admin *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		existing, err := repo.FindByEmail(ctx, email)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			admin, err = repo.Create(ctx, &models.User{
				Email: email, FullName: fullName, PasswordHash: hash,
				Role: models.RoleAdmin, IsActive: true, EmailVerified: true,
			})
			return err
		case err != nil:
			return err
		}

		role := models.RoleAdmin
		if err := repo.UpdateFields(ctx, existing.ID, models.UserUpdate{PasswordHash: &hash, Role: &role}); err != nil {
			return err
		}
		// A reset link mailed earlier must not override the new password.
		if err := repo.ClearResetToken(ctx, existing.ID); err != nil {
			return err
		}
		admin, err = repo.Activate(ctx, existing.ID)
		return err
	})
	if err != nil {
		s.log.Error(ctx, "error creating admin", "error", err)
		return nil, common.ErrorInternal
	}

	s.log.Info(ctx, "admin ready", "user_id", admin.ID)
	return admin, nil
}
