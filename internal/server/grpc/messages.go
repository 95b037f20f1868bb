package grpc

import (
	"time"

	"github.com/dmitrijs2005/lostfound/internal/server/models"
)

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type StartSessionRequest struct{}

type StartSessionResponse struct {
	SessionToken string `json:"session_token"`
	CSRFToken    string `json:"csrf_token"`
}

type IssueCSRFTokenRequest struct{}

type IssueCSRFTokenResponse struct {
	CSRFToken string `json:"csrf_token"`
}

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FullName        string `json:"full_name"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
	// Active is true when the account was auto-approved and can log in now.
	Active bool `json:"active"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the CSRF token that replaces the anonymous one.
type LoginResponse struct {
	User      User   `json:"user"`
	CSRFToken string `json:"csrf_token"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type RequestPasswordResetRequest struct {
	Email string `json:"email"`
}

type RequestPasswordResetResponse struct{}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type ResetPasswordResponse struct{}

type UpdateProfileRequest struct {
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

type UserResponse struct {
	User User `json:"user"`
}

// ActivateUserRequest names the account by id or, when UserID is empty, by
// e-mail.
type ActivateUserRequest struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

type SubmitContactRequest struct {
	PostID  int64  `json:"post_id"`
	Message string `json:"message"`
}

type SubmitContactResponse struct {
	ContactLogID   string `json:"contact_log_id"`
	DeliveryStatus string `json:"delivery_status"`
}

type ListContactLogsForPostRequest struct {
	PostID int64 `json:"post_id"`
}

// ListContactLogsForUserRequest lists logs received on the posts of
// UserID, or of the caller when it is empty.
type ListContactLogsForUserRequest struct {
	UserID string `json:"user_id,omitempty"`
}

type ListContactLogsResponse struct {
	Logs []ContactLog `json:"logs"`
}

// User is the public view of models.User.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
	Role          string `json:"role"`
	IsActive      bool   `json:"is_active"`
	EmailVerified bool   `json:"email_verified"`
}

type ContactLog struct {
	ID           string     `json:"id"`
	PostID       int64      `json:"post_id"`
	SenderUserID string     `json:"sender_user_id"`
	SenderName   string     `json:"sender_name"`
	SenderEmail  string     `json:"sender_email"`
	Message      string     `json:"message"`
	EmailSent    string     `json:"email_sent"`
	EmailError   string     `json:"email_error,omitempty"`
	SentAt       time.Time  `json:"sent_at"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
}

func userView(u *models.User) User {
	return User{
		ID:            u.ID,
		Email:         u.Email,
		FullName:      u.FullName,
		Role:          string(u.Role),
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
	}
}

func contactLogViews(logs []*models.ContactLog) []ContactLog {
	out := make([]ContactLog, 0, len(logs))
	for _, l := range logs {
		v := ContactLog{
			ID:           l.ID,
			PostID:       l.PostID,
			SenderUserID: l.SenderUserID,
			SenderName:   l.SenderName,
			SenderEmail:  l.SenderEmail,
			Message:      l.Message,
			EmailSent:    string(l.EmailSent),
			SentAt:       l.SentAt,
			DeliveredAt:  l.DeliveredAt,
		}
		if l.EmailError != nil {
			v.EmailError = *l.EmailError
		}
		out = append(out, v)
	}
	return out
}
