package contactlogs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/dbx"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/google/uuid"
)

const logColumns = `cl.id, cl.post_id, cl.sender_user_id, cl.sender_name, cl.sender_email, cl.message,
		 cl.ip_address, cl.user_agent, cl.email_sent, cl.email_error, cl.sent_at, cl.delivered_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLog(row scanner, extra ...any) (*models.ContactLog, error) {
	l := &models.ContactLog{}
	var (
		status      string
		emailError  sql.NullString
		deliveredAt sql.NullTime
	)
	dest := []any{&l.ID, &l.PostID, &l.SenderUserID, &l.SenderName, &l.SenderEmail, &l.Message,
		&l.IPAddress, &l.UserAgent, &status, &emailError, &l.SentAt, &deliveredAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	l.EmailSent = models.DeliveryStatus(status)
	if emailError.Valid {
		l.EmailError = &emailError.String
	}
	if deliveredAt.Valid {
		l.DeliveredAt = &deliveredAt.Time
	}
	return l, nil
}

func (r *PostgresRepository) Create(ctx context.Context, log *models.ContactLog) (*models.ContactLog, error) {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	log.EmailSent = models.DeliveryPending
	log.EmailError = nil
	log.DeliveredAt = nil

	query :=
		`INSERT INTO contact_logs
		 (id, post_id, sender_user_id, sender_name, sender_email, message, ip_address, user_agent, email_sent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
		 RETURNING sent_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		log.ID, log.PostID, log.SenderUserID, log.SenderName, log.SenderEmail, log.Message, log.IPAddress, log.UserAgent,
	).Scan(&log.SentAt)
	if err != nil {
		return nil, common.StorageError(err)
	}

	return log, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.ContactLog, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	query :=
		`SELECT ` + logColumns + `
		 FROM contact_logs cl
		 WHERE cl.id = $1
		 `
	l, err := scanLog(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, common.StorageError(err)
	}
	return l, nil
}

func (r *PostgresRepository) MarkDelivery(ctx context.Context, id string, status models.DeliveryStatus, errMsg *string, at time.Time) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("mark delivery: %q is not a terminal status", status)
	}

	query :=
		`UPDATE contact_logs
		 SET email_sent = $2, email_error = $3, delivered_at = $4
		 WHERE id = $1 AND email_sent = 'pending'
		 `

	var msg sql.NullString
	if errMsg != nil {
		msg = sql.NullString{String: *errMsg, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query, id, string(status), msg, at)
	if err != nil {
		return false, common.StorageError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, common.StorageError(err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) ListForPost(ctx context.Context, postID int64) ([]*models.ContactLog, error) {
	query :=
		`SELECT ` + logColumns + `
		 FROM contact_logs cl
		 WHERE cl.post_id = $1
		 ORDER BY cl.sent_at DESC
		 `
	return r.list(ctx, query, postID)
}

func (r *PostgresRepository) ListForPostOwner(ctx context.Context, ownerUserID string) ([]*models.ContactLog, error) {
	if _, err := uuid.Parse(ownerUserID); err != nil {
		return []*models.ContactLog{}, nil
	}
	query :=
		`SELECT ` + logColumns + `
		 FROM contact_logs cl
		 JOIN posts p ON p.id = cl.post_id
		 WHERE p.owner_user_id = $1
		 ORDER BY cl.sent_at DESC
		 `
	return r.list(ctx, query, ownerUserID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.ContactLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.StorageError(err)
	}
	defer rows.Close()

	result := make([]*models.ContactLog, 0)
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, common.StorageError(err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StorageError(err)
	}
	return result, nil
}

func (r *PostgresRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*models.PendingDelivery, error) {
	query :=
		`SELECT ` + logColumns + `, p.title, u.email, u.full_name
		 FROM contact_logs cl
		 JOIN posts p ON p.id = cl.post_id
		 JOIN users u ON u.id = p.owner_user_id
		 WHERE cl.email_sent = 'pending' AND cl.sent_at < $1
		 ORDER BY cl.sent_at
		 LIMIT $2
		 `

	rows, err := r.db.QueryContext(ctx, query, olderThan, limit)
	if err != nil {
		return nil, common.StorageError(err)
	}
	defer rows.Close()

	result := make([]*models.PendingDelivery, 0)
	for rows.Next() {
		p := &models.PendingDelivery{}
		l, err := scanLog(rows, &p.PostTitle, &p.OwnerEmail, &p.OwnerName)
		if err != nil {
			return nil, common.StorageError(err)
		}
		p.Log = *l
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StorageError(err)
	}
	return result, nil
}
