package services

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/dmitrijs2005/lostfound/internal/server/config"
	"github.com/dmitrijs2005/lostfound/internal/server/delivery"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T, db *sql.DB, cfg *config.Config) (*UserService, *fakeRepoManager, *fakeQueue) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	rm := newFakeRepoManager()
	q := &fakeQueue{}
	return NewUserService(db, rm, cfg, q, logging.Nop{}), rm, q
}

func registerAlice(t *testing.T, svc *UserService) *models.User {
	t.Helper()
	u, err := svc.Register(context.Background(), RegisterInput{
		Email: "a@example.com", Password: "Str0ng!Pass", PasswordConfirm: "Str0ng!Pass", FullName: "Alice",
	})
	require.NoError(t, err)
	return u
}

func TestRegister_CreatesInactiveUser(t *testing.T) {
	svc, rm, _ := newUserService(t, nil, nil)

	u, err := svc.Register(context.Background(), RegisterInput{
		Email: "  A@Example.com ", Password: "Str0ng!Pass", PasswordConfirm: "Str0ng!Pass", FullName: " Alice ",
	})
	require.NoError(t, err)

	stored := rm.users.get(u.ID)
	assert.Equal(t, "a@example.com", stored.Email)
	assert.Equal(t, "Alice", stored.FullName)
	assert.Equal(t, models.RoleMember, stored.Role)
	assert.False(t, stored.IsActive)
	assert.False(t, stored.EmailVerified)
	assert.NotEqual(t, "Str0ng!Pass", stored.PasswordHash)
	assert.Regexp(t, regexp.MustCompile(`^\$2[aby]\$`), stored.PasswordHash)
}

func TestRegister_AutoApprove(t *testing.T) {
	cfg := testConfig()
	cfg.AutoApprove = true
	svc, _, _ := newUserService(t, nil, cfg)

	u := registerAlice(t, svc)
	assert.True(t, u.CanAuthenticate())
}

func TestRegister_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedEmailDomains = []string{"example.com"}
	svc, rm, _ := newUserService(t, nil, cfg)
	ctx := context.Background()

	registerAlice(t, svc)

	_, err := svc.Register(ctx, RegisterInput{Email: "A@EXAMPLE.COM", Password: "Str0ng!Pass", PasswordConfirm: "Str0ng!Pass", FullName: "A"})
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)

	_, err = svc.Register(ctx, RegisterInput{Email: "b@gmail.com", Password: "Str0ng!Pass", PasswordConfirm: "Str0ng!Pass", FullName: "B"})
	var verr *common.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "email", verr.Fields[0].Field)

	_, err = svc.Register(ctx, RegisterInput{Email: "c@example.com", Password: "weak", PasswordConfirm: "nope", FullName: ""})
	require.True(t, errors.As(err, &verr))
	assert.GreaterOrEqual(t, len(verr.Fields), 3)

	rm.users.err = errors.New("db down")
	_, err = svc.Register(ctx, RegisterInput{Email: "d@example.com", Password: "Str0ng!Pass", PasswordConfirm: "Str0ng!Pass", FullName: "D"})
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestMultiBytePasswordOverBcryptLimit(t *testing.T) {
	svc, rm, q := newUserService(t, nil, nil)
	ctx := context.Background()

	long := "Aa1!" + strings.Repeat("é", 60)

	_, err := svc.Register(ctx, RegisterInput{Email: "b@example.com", Password: long, PasswordConfirm: long, FullName: "B"})
	var verr *common.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, "password", verr.Fields[0].Field)
	assert.NotErrorIs(t, err, common.ErrorInternal)

	u := registerAlice(t, svc)
	require.NoError(t, svc.RequestPasswordReset(ctx, "a@example.com"))
	token := resetTokenFrom(t, q.all()[0])

	err = svc.ConsumePasswordReset(ctx, token, long)
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.NotNil(t, rm.users.get(u.ID).ResetToken)

	withinLimit := "Aa1!" + strings.Repeat("é", 34)
	assert.NoError(t, svc.ConsumePasswordReset(ctx, token, withinLimit))
}

func TestAuthenticate_ActivationLifecycle(t *testing.T) {
	svc, rm, _ := newUserService(t, nil, nil)
	ctx := context.Background()

	u := registerAlice(t, svc)

	_, err := svc.Authenticate(ctx, "a@example.com", "Str0ng!Pass")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials, "inactive account is a generic denial")
	assert.ErrorIs(t, err, common.ErrAccountPending)

	// Half-activated rows stay locked out.
	rm.users.byID[u.ID].IsActive = true
	_, err = svc.Authenticate(ctx, "a@example.com", "Str0ng!Pass")
	assert.ErrorIs(t, err, common.ErrAccountPending)

	activated, err := svc.Activate(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive && activated.EmailVerified)

	got, err := svc.Authenticate(ctx, "A@example.com", "Str0ng!Pass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestAuthenticate_Denials(t *testing.T) {
	cfg := testConfig()
	cfg.AutoApprove = true
	svc, rm, _ := newUserService(t, nil, cfg)
	ctx := context.Background()
	registerAlice(t, svc)

	_, err := svc.Authenticate(ctx, "a@example.com", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.NotErrorIs(t, err, common.ErrAccountPending)

	_, err = svc.Authenticate(ctx, "ghost@example.com", "Str0ng!Pass")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.NotErrorIs(t, err, common.ErrAccountPending)

	rm.users.err = errors.New("db down")
	_, err = svc.Authenticate(ctx, "a@example.com", "Str0ng!Pass")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestActivate_NotFound(t *testing.T) {
	svc, _, _ := newUserService(t, nil, nil)
	_, err := svc.Activate(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestActivateByEmail(t *testing.T) {
	svc, _, _ := newUserService(t, nil, nil)
	u := registerAlice(t, svc)

	got, err := svc.ActivateByEmail(context.Background(), "A@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.CanAuthenticate())
}

func resetTokenFrom(t *testing.T, job delivery.Job) string {
	t.Helper()
	m := regexp.MustCompile(`reset-password\?token=([0-9a-f]+)`).FindStringSubmatch(job.Message.HTMLBody)
	require.Len(t, m, 2, "reset link not found in %q", job.Message.HTMLBody)
	tok, err := url.QueryUnescape(m[1])
	require.NoError(t, err)
	return tok
}

func TestPasswordReset_SingleUse(t *testing.T) {
	cfg := testConfig()
	cfg.AutoApprove = true
	svc, rm, q := newUserService(t, nil, cfg)
	ctx := context.Background()

	now := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	u := registerAlice(t, svc)
	require.NoError(t, svc.RequestPasswordReset(ctx, "a@example.com"))

	stored := rm.users.get(u.ID)
	require.NotNil(t, stored.ResetToken)
	require.NotNil(t, stored.ResetTokenExpiresAt)
	assert.Equal(t, now.Add(time.Hour), *stored.ResetTokenExpiresAt)

	jobs := q.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, delivery.KindPasswordReset, jobs[0].Kind)
	assert.Empty(t, jobs[0].ContactLogID)
	assert.Equal(t, "a@example.com", jobs[0].Message.To)
	token := resetTokenFrom(t, jobs[0])
	assert.Equal(t, *stored.ResetToken, token)

	require.NoError(t, svc.ConsumePasswordReset(ctx, token, "NewStr0ng!"))

	stored = rm.users.get(u.ID)
	assert.Nil(t, stored.ResetToken)
	assert.Nil(t, stored.ResetTokenExpiresAt)

	err := svc.ConsumePasswordReset(ctx, token, "NewStr0ng!")
	assert.ErrorIs(t, err, common.ErrInvalidOrExpiredToken)

	_, err = svc.Authenticate(ctx, "a@example.com", "Str0ng!Pass")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "a@example.com", "NewStr0ng!")
	assert.NoError(t, err)
}

func TestPasswordReset_Expired(t *testing.T) {
	svc, _, q := newUserService(t, nil, nil)
	ctx := context.Background()

	start := time.Now()
	svc.now = func() time.Time { return start }
	registerAlice(t, svc)
	require.NoError(t, svc.RequestPasswordReset(ctx, "a@example.com"))
	token := resetTokenFrom(t, q.all()[0])

	svc.now = func() time.Time { return start.Add(time.Hour + time.Second) }
	err := svc.ConsumePasswordReset(ctx, token, "NewStr0ng!")
	assert.ErrorIs(t, err, common.ErrInvalidOrExpiredToken)
}

func TestPasswordReset_WeakPasswordKeepsToken(t *testing.T) {
	svc, rm, q := newUserService(t, nil, nil)
	ctx := context.Background()

	u := registerAlice(t, svc)
	require.NoError(t, svc.RequestPasswordReset(ctx, "a@example.com"))
	token := resetTokenFrom(t, q.all()[0])

	err := svc.ConsumePasswordReset(ctx, token, "weak")
	var verr *common.ValidationError
	require.True(t, errors.As(err, &verr))

	assert.NotNil(t, rm.users.get(u.ID).ResetToken, "token must survive a rejected password")
	assert.NoError(t, svc.ConsumePasswordReset(ctx, token, "NewStr0ng!"))

	assert.ErrorIs(t, svc.ConsumePasswordReset(ctx, "", "NewStr0ng!"), common.ErrInvalidOrExpiredToken)
}

func TestRequestPasswordReset_DoesNotRevealAccounts(t *testing.T) {
	svc, _, q := newUserService(t, nil, nil)
	ctx := context.Background()

	assert.NoError(t, svc.RequestPasswordReset(ctx, "ghost@example.com"))
	assert.Empty(t, q.all())

	registerAlice(t, svc)
	q.err = common.ErrQueueFull
	assert.NoError(t, svc.RequestPasswordReset(ctx, "a@example.com"), "queue failure is not surfaced")
}

func TestRequestPasswordReset_StorageError(t *testing.T) {
	svc, rm, _ := newUserService(t, nil, nil)
	rm.users.err = errors.New("db down")
	assert.ErrorIs(t, svc.RequestPasswordReset(context.Background(), "a@example.com"), common.ErrorInternal)
}

func TestUpdateProfile(t *testing.T) {
	svc, _, _ := newUserService(t, nil, nil)
	ctx := context.Background()

	a := registerAlice(t, svc)
	_, err := svc.Register(ctx, RegisterInput{Email: "b@example.com", Password: "Str0ng!Pass", PasswordConfirm: "Str0ng!Pass", FullName: "Bob"})
	require.NoError(t, err)

	u, err := svc.UpdateProfile(ctx, a.ID, ProfileInput{FullName: "Alice Smith"})
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", u.FullName)
	assert.Equal(t, "a@example.com", u.Email)

	_, err = svc.UpdateProfile(ctx, a.ID, ProfileInput{Email: "B@example.com"})
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)

	_, err = svc.UpdateProfile(ctx, a.ID, ProfileInput{Email: "not-an-email"})
	var verr *common.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = svc.UpdateProfile(ctx, "missing", ProfileInput{FullName: "X"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCreateAdmin_New(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc, _, _ := newUserService(t, db, nil)
	admin, err := svc.CreateAdmin(context.Background(), "root@example.com", "Adm1n!Pass", "Root")
	require.NoError(t, err)

	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.CanAuthenticate())
	assert.NoError(t, mock.ExpectationsWereMet())

	got, err := svc.Authenticate(context.Background(), "root@example.com", "Adm1n!Pass")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)
}

func TestCreateAdmin_PromotesExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc, _, _ := newUserService(t, db, nil)
	u := registerAlice(t, svc)

	admin, err := svc.CreateAdmin(context.Background(), "a@example.com", "Adm1n!Pass", "Alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, admin.ID)
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.CanAuthenticate())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAdmin_RevokesOutstandingResetToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc, rm, q := newUserService(t, db, nil)
	ctx := context.Background()

	u := registerAlice(t, svc)
	require.NoError(t, svc.RequestPasswordReset(ctx, "a@example.com"))
	token := resetTokenFrom(t, q.all()[0])

	_, err = svc.CreateAdmin(ctx, "a@example.com", "Adm1n!Pass", "Alice")
	require.NoError(t, err)
	assert.Nil(t, rm.users.get(u.ID).ResetToken)
	assert.Nil(t, rm.users.get(u.ID).ResetTokenExpiresAt)

	err = svc.ConsumePasswordReset(ctx, token, "Hijack3d!Pass")
	assert.ErrorIs(t, err, common.ErrInvalidOrExpiredToken)

	_, err = svc.Authenticate(ctx, "a@example.com", "Adm1n!Pass")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAdmin_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	svc, rm, _ := newUserService(t, db, nil)
	rm.users.err = errors.New("db down")

	_, err = svc.CreateAdmin(context.Background(), "root@example.com", "Adm1n!Pass", "Root")
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.NoError(t, mock.ExpectationsWereMet())
}
