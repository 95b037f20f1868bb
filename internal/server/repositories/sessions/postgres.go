package sessions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/dbx"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	query :=
		`INSERT INTO sessions (id, user_id, csrf_token, created_at, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5)
		 `
	if _, err := r.db.ExecContext(ctx, query, s.ID, nullable(s.UserID), s.CSRFToken, s.CreatedAt, s.LastSeenAt); err != nil {
		return common.StorageError(err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	query :=
		`SELECT id, user_id, csrf_token, created_at, last_seen_at
		 FROM sessions
		 WHERE id = $1
		 `
	s := &models.Session{}
	var userID sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &userID, &s.CSRFToken, &s.CreatedAt, &s.LastSeenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, common.StorageError(err)
	}
	s.UserID = userID.String
	return s, nil
}

func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE sessions SET last_seen_at = $2
		 WHERE id = $1
		 `
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return common.StorageError(err)
	}
	return requireOneRow(res)
}

func (r *PostgresRepository) SetCSRFTokenIfEmpty(ctx context.Context, id string, token string) (string, error) {
	query :=
		`UPDATE sessions
		 SET csrf_token = CASE WHEN csrf_token = '' THEN $2 ELSE csrf_token END
		 WHERE id = $1
		 RETURNING csrf_token
		 `
	var stored string
	if err := r.db.QueryRowContext(ctx, query, id, token).Scan(&stored); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", common.StorageError(err)
	}
	return stored, nil
}

func (r *PostgresRepository) BindUser(ctx context.Context, id string, userID string, csrfToken string, at time.Time) error {
	query :=
		`UPDATE sessions
		 SET user_id = $2, csrf_token = $3, last_seen_at = $4
		 WHERE id = $1
		 `
	res, err := r.db.ExecContext(ctx, query, id, nullable(userID), csrfToken, at)
	if err != nil {
		return common.StorageError(err)
	}
	return requireOneRow(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query :=
		`DELETE FROM sessions
		 WHERE id = $1
		 `
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return common.StorageError(err)
	}
	return nil
}

func (r *PostgresRepository) DeleteIdle(ctx context.Context, before time.Time) (int64, error) {
	query :=
		`DELETE FROM sessions
		 WHERE last_seen_at < $1
		 `
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, common.StorageError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, common.StorageError(err)
	}
	return n, nil
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
