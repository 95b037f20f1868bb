package grpc

import (
	"context"
	"strconv"
	"sync"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/dmitrijs2005/lostfound/internal/server/services"
)

// fakeSessions hands out tokens of the form "tok-<id>".
type fakeSessions struct {
	mu   sync.Mutex
	rows map[string]*models.Session
	n    int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{rows: map[string]*models.Session{}}
}

func (f *fakeSessions) NewSession(context.Context) (*models.Session, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	id := "s" + strconv.Itoa(f.n)
	s := &models.Session{ID: id, CSRFToken: "csrf-" + id}
	f.rows[id] = s
	cp := *s
	return &cp, "tok-" + id, nil
}

func (f *fakeSessions) Load(_ context.Context, token string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(token) < 4 {
		return nil, common.ErrSessionNotFound
	}
	s, ok := f.rows[token[4:]]
	if !ok {
		return nil, common.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) IssueCSRFToken(_ context.Context, sess *models.Session) (string, error) {
	return sess.CSRFToken, nil
}

func (f *fakeSessions) ValidateCSRFToken(sess *models.Session, supplied string) bool {
	return sess != nil && sess.CSRFToken != "" && sess.CSRFToken == supplied
}

func (f *fakeSessions) Login(_ context.Context, sess *models.Session, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.rows[sess.ID]
	s.UserID = user.ID
	s.CSRFToken = "csrf-" + sess.ID + "-" + user.ID
	sess.UserID, sess.CSRFToken = s.UserID, s.CSRFToken
	return nil
}

func (f *fakeSessions) Logout(_ context.Context, sess *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, sess.ID)
	return nil
}

type fakeUsers struct {
	mu        sync.Mutex
	byID      map[string]*models.User
	passwords map[string]string
	resets    []string
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{byID: map[string]*models.User{}, passwords: map[string]string{}}
	for _, u := range users {
		f.byID[u.ID] = u
		f.passwords[u.Email] = "Str0ng!Pass"
	}
	return f
}

func (f *fakeUsers) Register(_ context.Context, in services.RegisterInput) (*models.User, error) {
	if in.Password != in.PasswordConfirm {
		verr := &common.ValidationError{}
		verr.Add("password_confirm", "must match password")
		return nil, verr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == in.Email {
			return nil, common.ErrDuplicateEmail
		}
	}
	u := &models.User{ID: "u-" + in.Email, Email: in.Email, FullName: in.FullName, Role: models.RoleMember}
	f.byID[u.ID] = u
	f.passwords[u.Email] = in.Password
	return u, nil
}

func (f *fakeUsers) Authenticate(_ context.Context, email, password string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email && f.passwords[email] == password {
			if !u.CanAuthenticate() {
				return nil, common.ErrAccountPending
			}
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrInvalidCredentials
}

func (f *fakeUsers) RequestPasswordReset(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, email)
	return nil
}

func (f *fakeUsers) ConsumePasswordReset(_ context.Context, token, _ string) error {
	if token != "good" {
		return common.ErrInvalidOrExpiredToken
	}
	return nil
}

func (f *fakeUsers) Activate(_ context.Context, userID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.IsActive, u.EmailVerified = true, true
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) ActivateByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	var id string
	for _, u := range f.byID {
		if u.Email == email {
			id = u.ID
		}
	}
	f.mu.Unlock()
	return f.Activate(ctx, id)
}

func (f *fakeUsers) GetUser(_ context.Context, userID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, userID string, in services.ProfileInput) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if in.FullName != "" {
		u.FullName = in.FullName
	}
	cp := *u
	return &cp, nil
}

type fakeContacts struct {
	mu    sync.Mutex
	posts map[int64]*models.Post
	reqs  []services.ContactRequest
	logs  []*models.ContactLog
}

func (f *fakeContacts) SubmitContact(_ context.Context, req services.ContactRequest) (*models.ContactLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[req.PostID]; !ok {
		return nil, common.ErrPostNotContactable
	}
	if req.Sender == nil {
		return nil, common.ErrAuthenticationRequired
	}
	f.reqs = append(f.reqs, req)
	cl := &models.ContactLog{ID: "cl-1", PostID: req.PostID, SenderUserID: req.Sender.ID, Message: req.Message, EmailSent: models.DeliveryPending}
	f.logs = append(f.logs, cl)
	return cl, nil
}

func (f *fakeContacts) GetContactLogsForPost(_ context.Context, postID int64) ([]*models.ContactLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ContactLog
	for _, l := range f.logs {
		if l.PostID == postID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeContacts) GetContactLogsForUser(_ context.Context, userID string) ([]*models.ContactLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ContactLog
	for _, l := range f.logs {
		if p, ok := f.posts[l.PostID]; ok && p.OwnerUserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeContacts) GetPost(_ context.Context, postID int64) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[postID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	return &cp, nil
}
