package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/dmitrijs2005/lostfound/internal/server/config"
	"github.com/dmitrijs2005/lostfound/internal/server/delivery"
	"github.com/dmitrijs2005/lostfound/internal/server/mail"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/repomanager"
)

// RequestMeta is captured from the inbound request for the audit trail.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// ContactRequest is one attempt to reach a post's owner. Sender is nil for
// anonymous visitors.
type ContactRequest struct {
	PostID  int64
	Sender  *models.User
	Message string
	Meta    RequestMeta
}

// ContactService is the notification relay. It records contact attempts and
// hands the owner notification to the delivery pool.
type ContactService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	queue       Enqueuer
	log         logging.Logger

	minLength int
	maxLength int
	appURL    string

	now func() time.Time
}

func NewContactService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, queue Enqueuer, log logging.Logger) *ContactService {
	return &ContactService{
		db:          db,
		repomanager: m,
		queue:       queue,
		log:         log,
		minLength:   cfg.MinMessageLength,
		maxLength:   cfg.MaxMessageLength,
		appURL:      cfg.AppURL,
		now:         time.Now,
	}
}

// SubmitContact applies the rejection checks in order, first failing check
// wins: post contactable, sender authenticated, sender not the owner,
// message long enough, message not too long. An accepted request is stored
// as a pending contact log before anything is queued, and the stored log is
// returned whatever happens to the delivery afterwards.
func (s *ContactService) SubmitContact(ctx context.Context, req ContactRequest) (*models.ContactLog, error) {
	post, err := s.repomanager.Posts(s.db).Get(ctx, req.PostID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrPostNotContactable
		}
		s.log.Error(ctx, "error loading post", "post_id", req.PostID, "error", err)
		return nil, common.ErrorInternal
	}
	if !post.Contactable() {
		return nil, common.ErrPostNotContactable
	}

	if req.Sender == nil || req.Sender.ID == "" {
		return nil, common.ErrAuthenticationRequired
	}
	if req.Sender.ID == post.OwnerUserID {
		return nil, common.ErrSelfContactForbidden
	}

	message := strings.TrimSpace(req.Message)
	n := utf8.RuneCountInString(message)
	if n == 0 || n < s.minLength {
		return nil, common.ErrMessageTooShort
	}
	if s.maxLength > 0 && n > s.maxLength {
		return nil, common.ErrMessageTooLong
	}

	owner, err := s.repomanager.Users(s.db).FindByID(ctx, post.OwnerUserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrPostNotContactable
		}
		s.log.Error(ctx, "error loading post owner", "post_id", post.ID, "error", err)
		return nil, common.ErrorInternal
	}

	logs := s.repomanager.ContactLogs(s.db)
	cl, err := logs.Create(ctx, &models.ContactLog{
		PostID:       post.ID,
		SenderUserID: req.Sender.ID,
		SenderName:   req.Sender.FullName,
		SenderEmail:  req.Sender.Email,
		Message:      message,
		IPAddress:    req.Meta.IPAddress,
		UserAgent:    req.Meta.UserAgent,
	})
	if err != nil {
		s.log.Error(ctx, "error storing contact log", "post_id", post.ID, "error", err)
		return nil, common.ErrorInternal
	}

	s.log.Info(ctx, "contact accepted", "contact_log_id", cl.ID, "post_id", post.ID)

	if err := s.schedule(ctx, cl, post.Title, owner.Email, owner.FullName); err != nil {
		s.fail(ctx, cl, err)
	}
	return cl, nil
}

func (s *ContactService) schedule(ctx context.Context, cl *models.ContactLog, postTitle, ownerEmail, ownerName string) error {
	subject, body, err := mail.RenderContactNotification(mail.ContactNotice{
		AppURL:      s.appURL,
		PostID:      cl.PostID,
		PostTitle:   postTitle,
		OwnerName:   ownerName,
		SenderName:  cl.SenderName,
		SenderEmail: cl.SenderEmail,
		Message:     cl.Message,
	})
	if err != nil {
		return err
	}

	return s.queue.Enqueue(delivery.Job{
		ID:           cl.ID,
		Kind:         delivery.KindContactNotification,
		ContactLogID: cl.ID,
		Message: mail.Message{
			To:       ownerEmail,
			Subject:  subject,
			HTMLBody: body,
			ReplyTo:  cl.SenderEmail,
		},
	})
}

// fail records a delivery that never reached the pool. The submission itself
// has already succeeded.
func (s *ContactService) fail(ctx context.Context, cl *models.ContactLog, cause error) {
	s.log.Warn(ctx, "contact notification not queued", "contact_log_id", cl.ID, "error", cause)

	msg := cause.Error()
	at := s.now()
	applied, err := s.repomanager.ContactLogs(s.db).MarkDelivery(ctx, cl.ID, models.DeliveryFailed, &msg, at)
	if err != nil {
		s.log.Error(ctx, "error recording delivery outcome", "contact_log_id", cl.ID, "error", err)
		return
	}
	if applied {
		cl.EmailSent = models.DeliveryFailed
		cl.EmailError = &msg
		cl.DeliveredAt = &at
	}
}

// ResumePending queues notifications of contact logs still pending after
// olderThan, for instance after a crash. It stops early when the queue is
// full and returns how many were queued.
func (s *ContactService) ResumePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	pending, err := s.repomanager.ContactLogs(s.db).ListPending(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		s.log.Error(ctx, "error listing pending deliveries", "error", err)
		return 0, common.ErrorInternal
	}

	queued := 0
	for _, p := range pending {
		cl := p.Log
		err := s.schedule(ctx, &cl, p.PostTitle, p.OwnerEmail, p.OwnerName)
		if errors.Is(err, common.ErrQueueFull) {
			s.log.Warn(ctx, "delivery queue full, resume stopped", "queued", queued, "pending", len(pending))
			break
		}
		if err != nil {
			s.fail(ctx, &cl, err)
			continue
		}
		queued++
	}

	if queued > 0 {
		s.log.Info(ctx, "pending deliveries requeued", "count", queued)
	}
	return queued, nil
}

// GetContactLogsForPost lists logs on one post, newest first.
func (s *ContactService) GetContactLogsForPost(ctx context.Context, postID int64) ([]*models.ContactLog, error) {
	logs, err := s.repomanager.ContactLogs(s.db).ListForPost(ctx, postID)
	if err != nil {
		s.log.Error(ctx, "error listing contact logs", "post_id", postID, "error", err)
		return nil, common.ErrorInternal
	}
	return logs, nil
}

// GetContactLogsForUser lists logs received on the posts userID owns.
func (s *ContactService) GetContactLogsForUser(ctx context.Context, userID string) ([]*models.ContactLog, error) {
	logs, err := s.repomanager.ContactLogs(s.db).ListForPostOwner(ctx, userID)
	if err != nil {
		s.log.Error(ctx, "error listing contact logs", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}
	return logs, nil
}

func (s *ContactService) GetPost(ctx context.Context, postID int64) (*models.Post, error) {
	post, err := s.repomanager.Posts(s.db).Get(ctx, postID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.log.Error(ctx, "error loading post", "post_id", postID, "error", err)
		return nil, common.ErrorInternal
	}
	return post, nil
}
