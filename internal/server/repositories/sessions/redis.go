package sessions

import (
	"context"
	"strconv"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lostfound:session:"

const (
	fieldUserID     = "user_id"
	fieldCSRFToken  = "csrf_token"
	fieldCreatedAt  = "created_at"
	fieldLastSeenAt = "last_seen_at"
)

// RedisRepository keeps each session in a hash whose TTL equals the idle
// timeout and is pushed forward on every write. A non-positive idle timeout
// means sessions never idle out, so keys get no TTL.
type RedisRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisRepository(rdb redis.Cmdable, idleTimeout time.Duration) *RedisRepository {
	return &RedisRepository{rdb: rdb, ttl: idleTimeout}
}

func key(id string) string {
	return keyPrefix + id
}

func unixNano(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseUnixNano(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// Create writes the session hash. Empty user and CSRF fields are left out
// so that SetCSRFTokenIfEmpty can rely on HSETNX.
func (r *RedisRepository) Create(ctx context.Context, s *models.Session) error {
	k := key(s.ID)
	values := []any{
		fieldCreatedAt, unixNano(s.CreatedAt),
		fieldLastSeenAt, unixNano(s.LastSeenAt),
	}
	if s.UserID != "" {
		values = append(values, fieldUserID, s.UserID)
	}
	if s.CSRFToken != "" {
		values = append(values, fieldCSRFToken, s.CSRFToken)
	}

	if err := r.rdb.HSet(ctx, k, values...).Err(); err != nil {
		return common.StorageError(err)
	}
	if r.ttl <= 0 {
		return nil
	}
	if err := r.rdb.Expire(ctx, k, r.ttl).Err(); err != nil {
		return common.StorageError(err)
	}
	return nil
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	m, err := r.rdb.HGetAll(ctx, key(id)).Result()
	if err != nil {
		return nil, common.StorageError(err)
	}
	if len(m) == 0 {
		return nil, common.ErrorNotFound
	}
	return &models.Session{
		ID:         id,
		UserID:     m[fieldUserID],
		CSRFToken:  m[fieldCSRFToken],
		CreatedAt:  parseUnixNano(m[fieldCreatedAt]),
		LastSeenAt: parseUnixNano(m[fieldLastSeenAt]),
	}, nil
}

// refresh extends the TTL and reports common.ErrorNotFound when the key is
// gone, so later HSETs never resurrect a partial session.
func (r *RedisRepository) refresh(ctx context.Context, k string) error {
	var ok bool
	if r.ttl <= 0 {
		n, err := r.rdb.Exists(ctx, k).Result()
		if err != nil {
			return common.StorageError(err)
		}
		ok = n > 0
	} else {
		var err error
		if ok, err = r.rdb.Expire(ctx, k, r.ttl).Result(); err != nil {
			return common.StorageError(err)
		}
	}
	if !ok {
		return common.ErrorNotFound
	}
	return nil
}

func (r *RedisRepository) Touch(ctx context.Context, id string, at time.Time) error {
	k := key(id)
	if err := r.refresh(ctx, k); err != nil {
		return err
	}
	if err := r.rdb.HSet(ctx, k, fieldLastSeenAt, unixNano(at)).Err(); err != nil {
		return common.StorageError(err)
	}
	return nil
}

func (r *RedisRepository) SetCSRFTokenIfEmpty(ctx context.Context, id string, token string) (string, error) {
	k := key(id)
	if err := r.refresh(ctx, k); err != nil {
		return "", err
	}

	if err := r.rdb.HSetNX(ctx, k, fieldCSRFToken, token).Err(); err != nil {
		return "", common.StorageError(err)
	}
	stored, err := r.rdb.HGet(ctx, k, fieldCSRFToken).Result()
	if err != nil {
		return "", common.StorageError(err)
	}
	return stored, nil
}

func (r *RedisRepository) BindUser(ctx context.Context, id string, userID string, csrfToken string, at time.Time) error {
	k := key(id)
	if err := r.refresh(ctx, k); err != nil {
		return err
	}
	err := r.rdb.HSet(ctx, k,
		fieldUserID, userID,
		fieldCSRFToken, csrfToken,
		fieldLastSeenAt, unixNano(at),
	).Err()
	if err != nil {
		return common.StorageError(err)
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, key(id)).Err(); err != nil {
		return common.StorageError(err)
	}
	return nil
}

// DeleteIdle is a no-op: Redis expires idle sessions by TTL.
func (r *RedisRepository) DeleteIdle(context.Context, time.Time) (int64, error) {
	return 0, nil
}
