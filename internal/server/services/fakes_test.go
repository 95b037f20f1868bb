package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/dbx"
	"github.com/dmitrijs2005/lostfound/internal/server/config"
	"github.com/dmitrijs2005/lostfound/internal/server/delivery"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/contactlogs"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/posts"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/users"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.SecretKey = "test-secret"
	return cfg
}

// --- users ---

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*models.User
	err  error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*models.User{}}
}

func (r *memUsers) clone(u *models.User) *models.User {
	cp := *u
	return &cp
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.byID {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return r.clone(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.clone(u), nil
}

func (r *memUsers) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.byID {
		if strings.EqualFold(u.Email, user.Email) {
			return nil, common.ErrDuplicateEmail
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.byID[user.ID] = r.clone(user)
	return user, nil
}

func (r *memUsers) UpdateFields(_ context.Context, id string, upd models.UserUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	if upd.Email != nil {
		for oid, o := range r.byID {
			if oid != id && strings.EqualFold(o.Email, *upd.Email) {
				return common.ErrDuplicateEmail
			}
		}
		u.Email = *upd.Email
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	return nil
}

func (r *memUsers) SetResetToken(_ context.Context, id string, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.ResetToken = &token
	u.ResetTokenExpiresAt = &expiresAt
	return nil
}

func (r *memUsers) ClearResetToken(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.ResetToken = nil
	u.ResetTokenExpiresAt = nil
	return nil
}

func (r *memUsers) ConsumeResetToken(_ context.Context, token string, newHash string, now time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.byID {
		if u.ResetToken != nil && *u.ResetToken == token && u.ResetTokenExpiresAt.After(now) {
			u.PasswordHash = newHash
			u.ResetToken = nil
			u.ResetTokenExpiresAt = nil
			return r.clone(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) Activate(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.IsActive = true
	u.EmailVerified = true
	return r.clone(u), nil
}

func (r *memUsers) get(id string) models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.byID[id]
}

// --- sessions ---

type memSessions struct {
	mu   sync.Mutex
	rows map[string]*models.Session
}

func newMemSessions() *memSessions {
	return &memSessions{rows: map[string]*models.Session{}}
}

func (r *memSessions) Create(_ context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.rows[s.ID] = &cp
	return nil
}

func (r *memSessions) Get(_ context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSessions) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	s.LastSeenAt = at
	return nil
}

func (r *memSessions) SetCSRFTokenIfEmpty(_ context.Context, id string, token string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return "", common.ErrorNotFound
	}
	if s.CSRFToken == "" {
		s.CSRFToken = token
	}
	return s.CSRFToken, nil
}

func (r *memSessions) BindUser(_ context.Context, id, userID, csrf string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	s.UserID, s.CSRFToken, s.LastSeenAt = userID, csrf, at
	return nil
}

func (r *memSessions) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *memSessions) DeleteIdle(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.rows {
		if s.LastSeenAt.Before(before) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

// --- posts ---

type memPosts struct {
	rows map[int64]*models.Post
	err  error
}

func (r *memPosts) Get(_ context.Context, id int64) (*models.Post, error) {
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	return &cp, nil
}

// --- contact logs ---

type memContactLogs struct {
	mu     sync.Mutex
	rows   map[string]*models.ContactLog
	posts  *memPosts
	users  *memUsers
	writes map[string]int
}

func newMemContactLogs(p *memPosts, u *memUsers) *memContactLogs {
	return &memContactLogs{rows: map[string]*models.ContactLog{}, posts: p, users: u, writes: map[string]int{}}
}

func (r *memContactLogs) Create(_ context.Context, l *models.ContactLog) (*models.ContactLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.ID = uuid.NewString()
	l.EmailSent = models.DeliveryPending
	l.SentAt = time.Now()
	cp := *l
	r.rows[l.ID] = &cp
	return l, nil
}

func (r *memContactLogs) Get(_ context.Context, id string) (*models.ContactLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *memContactLogs) MarkDelivery(_ context.Context, id string, status models.DeliveryStatus, errMsg *string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[id]
	if !ok || l.EmailSent != models.DeliveryPending {
		return false, nil
	}
	l.EmailSent, l.EmailError, l.DeliveredAt = status, errMsg, &at
	r.writes[id]++
	return true, nil
}

func (r *memContactLogs) sorted(keep func(*models.ContactLog) bool) []*models.ContactLog {
	out := make([]*models.ContactLog, 0)
	for _, l := range r.rows {
		if keep(l) {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	return out
}

func (r *memContactLogs) ListForPost(_ context.Context, postID int64) ([]*models.ContactLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(l *models.ContactLog) bool { return l.PostID == postID }), nil
}

func (r *memContactLogs) ListForPostOwner(_ context.Context, owner string) ([]*models.ContactLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(l *models.ContactLog) bool {
		p, ok := r.posts.rows[l.PostID]
		return ok && p.OwnerUserID == owner
	}), nil
}

func (r *memContactLogs) ListPending(_ context.Context, olderThan time.Time, limit int) ([]*models.PendingDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	logs := r.sorted(func(l *models.ContactLog) bool {
		return l.EmailSent == models.DeliveryPending && l.SentAt.Before(olderThan)
	})
	out := make([]*models.PendingDelivery, 0)
	for i := len(logs) - 1; i >= 0 && len(out) < limit; i-- {
		l := logs[i]
		p := r.posts.rows[l.PostID]
		owner := r.users.get(p.OwnerUserID)
		out = append(out, &models.PendingDelivery{Log: *l, PostTitle: p.Title, OwnerEmail: owner.Email, OwnerName: owner.FullName})
	}
	return out, nil
}

func (r *memContactLogs) row(id string) models.ContactLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}

func (r *memContactLogs) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// --- manager and queue ---

type fakeRepoManager struct {
	users    *memUsers
	sessions *memSessions
	posts    *memPosts
	logs     *memContactLogs
}

func newFakeRepoManager() *fakeRepoManager {
	u := newMemUsers()
	p := &memPosts{rows: map[int64]*models.Post{}}
	return &fakeRepoManager{users: u, sessions: newMemSessions(), posts: p, logs: newMemContactLogs(p, u)}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeRepoManager) Sessions(dbx.DBTX) sessions.Repository        { return m.sessions }
func (m *fakeRepoManager) ContactLogs(dbx.DBTX) contactlogs.Repository  { return m.logs }
func (m *fakeRepoManager) Posts(dbx.DBTX) posts.Repository              { return m.posts }

type fakeQueue struct {
	mu   sync.Mutex
	jobs []delivery.Job
	err  error
}

func (q *fakeQueue) Enqueue(job delivery.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) all() []delivery.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]delivery.Job(nil), q.jobs...)
}
