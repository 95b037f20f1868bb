package grpc

import (
	"context"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/dmitrijs2005/lostfound/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Ping(ctx context.Context, req *PingRequest) (*PingResponse, error) {
	return &PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) StartSession(ctx context.Context, req *StartSessionRequest) (*StartSessionResponse, error) {
	sess, token, err := s.sessions.NewSession(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &StartSessionResponse{SessionToken: token, CSRFToken: sess.CSRFToken}, nil
}

func (s *GRPCServer) IssueCSRFToken(ctx context.Context, req *IssueCSRFTokenRequest) (*IssueCSRFTokenResponse, error) {
	sess, _ := sessionFromContext(ctx)
	token, err := s.sessions.IssueCSRFToken(ctx, sess)
	if err != nil {
		return nil, toStatus(err)
	}
	return &IssueCSRFTokenResponse{CSRFToken: token}, nil
}

func (s *GRPCServer) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {

	s.logger.Info(ctx, "Registration request")

	user, err := s.users.Register(ctx, services.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		FullName:        req.FullName,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	s.logger.Info(ctx, "Registered", "user_id", user.ID)
	return &RegisterResponse{UserID: user.ID, Active: user.CanAuthenticate()}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	sess, _ := sessionFromContext(ctx)

	user, err := s.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.sessions.Login(ctx, sess, user); err != nil {
		return nil, toStatus(err)
	}

	s.logger.Info(ctx, "Logged in", "user_id", user.ID)
	return &LoginResponse{User: userView(user), CSRFToken: sess.CSRFToken}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *LogoutRequest) (*LogoutResponse, error) {
	sess, _ := sessionFromContext(ctx)
	if err := s.sessions.Logout(ctx, sess); err != nil {
		return nil, toStatus(err)
	}
	return &LogoutResponse{}, nil
}

func (s *GRPCServer) RequestPasswordReset(ctx context.Context, req *RequestPasswordResetRequest) (*RequestPasswordResetResponse, error) {
	if err := s.users.RequestPasswordReset(ctx, req.Email); err != nil {
		return nil, toStatus(err)
	}
	return &RequestPasswordResetResponse{}, nil
}

func (s *GRPCServer) ResetPassword(ctx context.Context, req *ResetPasswordRequest) (*ResetPasswordResponse, error) {
	if err := s.users.ConsumePasswordReset(ctx, req.Token, req.Password); err != nil {
		return nil, toStatus(err)
	}
	return &ResetPasswordResponse{}, nil
}

func (s *GRPCServer) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*UserResponse, error) {
	caller, _ := userFromContext(ctx)

	user, err := s.users.UpdateProfile(ctx, caller.ID, services.ProfileInput{Email: req.Email, FullName: req.FullName})
	if err != nil {
		return nil, toStatus(err)
	}
	return &UserResponse{User: userView(user)}, nil
}

func (s *GRPCServer) ActivateUser(ctx context.Context, req *ActivateUserRequest) (*UserResponse, error) {
	admin, _ := userFromContext(ctx)

	var (
		user *models.User
		err  error
	)
	switch {
	case req.UserID != "":
		user, err = s.users.Activate(ctx, req.UserID)
	case req.Email != "":
		user, err = s.users.ActivateByEmail(ctx, req.Email)
	default:
		return nil, status.Error(codes.InvalidArgument, "user_id or email required")
	}
	if err != nil {
		return nil, toStatus(err)
	}

	s.logger.Info(ctx, "User activated", "user_id", user.ID, "by", admin.ID)
	return &UserResponse{User: userView(user)}, nil
}

func (s *GRPCServer) SubmitContact(ctx context.Context, req *SubmitContactRequest) (*SubmitContactResponse, error) {
	sender, _ := userFromContext(ctx)
	meta := metaFromContext(ctx)

	cl, err := s.contacts.SubmitContact(ctx, services.ContactRequest{
		PostID:  req.PostID,
		Sender:  sender,
		Message: req.Message,
		Meta:    services.RequestMeta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &SubmitContactResponse{ContactLogID: cl.ID, DeliveryStatus: string(cl.EmailSent)}, nil
}

// ListContactLogsForPost is open to the post's owner and to admins.
func (s *GRPCServer) ListContactLogsForPost(ctx context.Context, req *ListContactLogsForPostRequest) (*ListContactLogsResponse, error) {
	caller, _ := userFromContext(ctx)

	post, err := s.contacts.GetPost(ctx, req.PostID)
	if err != nil {
		return nil, toStatus(err)
	}
	if post.OwnerUserID != caller.ID && !caller.IsAdmin() {
		return nil, toStatus(common.ErrForbidden)
	}

	logs, err := s.contacts.GetContactLogsForPost(ctx, req.PostID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListContactLogsResponse{Logs: contactLogViews(logs)}, nil
}

// ListContactLogsForUser lists what a user received. Only admins may ask
// about someone else.
func (s *GRPCServer) ListContactLogsForUser(ctx context.Context, req *ListContactLogsForUserRequest) (*ListContactLogsResponse, error) {
	caller, _ := userFromContext(ctx)

	userID := req.UserID
	if userID == "" {
		userID = caller.ID
	}
	if userID != caller.ID && !caller.IsAdmin() {
		return nil, toStatus(common.ErrForbidden)
	}

	logs, err := s.contacts.GetContactLogsForUser(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListContactLogsResponse{Logs: contactLogViews(logs)}, nil
}
