package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/dbx"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const userColumns = `id, email, full_name, password_hash, role, is_active, email_verified,
		 reset_token, reset_token_expires_at, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	u := &models.User{}
	var (
		role      string
		token     sql.NullString
		expiresAt sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &role, &u.IsActive, &u.EmailVerified,
		&token, &expiresAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, common.StorageError(err)
	}
	u.Role = models.Role(role)
	if token.Valid {
		u.ResetToken = &token.String
	}
	if expiresAt.Valid {
		u.ResetTokenExpiresAt = &expiresAt.Time
	}
	return u, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return common.ErrDuplicateEmail
	}
	return common.StorageError(err)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT ` + userColumns + `
		 FROM users
		 WHERE lower(email) = lower($1)
		 `
	return scanUser(r.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}
	query :=
		`SELECT ` + userColumns + `
		 FROM users
		 WHERE id = $1
		 `
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleMember
	}

	query :=
		`INSERT INTO users (id, email, full_name, password_hash, role, is_active, email_verified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.FullName, user.PasswordHash, string(user.Role), user.IsActive, user.EmailVerified,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}

	return user, nil
}

func (r *PostgresRepository) UpdateFields(ctx context.Context, id string, upd models.UserUpdate) error {
	if !validID(id) {
		return common.ErrorNotFound
	}
	if upd.Empty() {
		return nil
	}

	sets := make([]string, 0, 5)
	args := []any{id}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.FullName != nil {
		add("full_name", *upd.FullName)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	if upd.Role != nil {
		add("role", string(*upd.Role))
	}
	sets = append(sets, "updated_at = now()")

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapWriteError(err)
	}
	return requireOneRow(res)
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, id string, token string, expiresAt time.Time) error {
	if !validID(id) {
		return common.ErrorNotFound
	}
	query :=
		`UPDATE users
		 SET reset_token = $2, reset_token_expires_at = $3, updated_at = now()
		 WHERE id = $1
		 `
	res, err := r.db.ExecContext(ctx, query, id, token, expiresAt)
	if err != nil {
		return common.StorageError(err)
	}
	return requireOneRow(res)
}

func (r *PostgresRepository) ClearResetToken(ctx context.Context, id string) error {
	if !validID(id) {
		return common.ErrorNotFound
	}
	query :=
		`UPDATE users
		 SET reset_token = NULL, reset_token_expires_at = NULL, updated_at = now()
		 WHERE id = $1
		 `
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return common.StorageError(err)
	}
	return requireOneRow(res)
}

func (r *PostgresRepository) ConsumeResetToken(ctx context.Context, token string, newPasswordHash string, now time.Time) (*models.User, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}
	query :=
		`UPDATE users
		 SET password_hash = $2, reset_token = NULL, reset_token_expires_at = NULL, updated_at = now()
		 WHERE reset_token = $1 AND reset_token_expires_at > $3
		 RETURNING ` + userColumns + `
		 `
	return scanUser(r.db.QueryRowContext(ctx, query, token, newPasswordHash, now))
}

func (r *PostgresRepository) Activate(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}
	query :=
		`UPDATE users
		 SET is_active = TRUE, email_verified = TRUE, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns + `
		 `
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// validID filters out ids Postgres would reject as malformed uuids, so they
// read as absent rather than as backend failures.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return common.StorageError(err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
