// Package grpc exposes the lostfound core to the web tier over gRPC with a
// JSON codec. Interceptors resolve the session, check CSRF tokens, enforce
// admin-only methods and rate limit credential and contact calls.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/dmitrijs2005/lostfound/internal/server/services"
	"google.golang.org/grpc"
)

type sessionSvc interface {
	NewSession(ctx context.Context) (*models.Session, string, error)
	Load(ctx context.Context, token string) (*models.Session, error)
	IssueCSRFToken(ctx context.Context, sess *models.Session) (string, error)
	ValidateCSRFToken(sess *models.Session, supplied string) bool
	Login(ctx context.Context, sess *models.Session, user *models.User) error
	Logout(ctx context.Context, sess *models.Session) error
}

type userSvc interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConsumePasswordReset(ctx context.Context, token, newPassword string) error
	Activate(ctx context.Context, userID string) (*models.User, error)
	ActivateByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, in services.ProfileInput) (*models.User, error)
}

type contactSvc interface {
	SubmitContact(ctx context.Context, req services.ContactRequest) (*models.ContactLog, error)
	GetContactLogsForPost(ctx context.Context, postID int64) ([]*models.ContactLog, error)
	GetContactLogsForUser(ctx context.Context, userID string) ([]*models.ContactLog, error)
	GetPost(ctx context.Context, postID int64) (*models.Post, error)
}

type GRPCServer struct {
	address  string
	sessions sessionSvc
	users    userSvc
	contacts contactSvc
	limiter  *rateLimiter
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, ss *services.SessionService, us *services.UserService, cs *services.ContactService, rateLimitPerMinute int) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		sessions: ss,
		users:    us,
		contacts: cs,
		limiter:  newRateLimiter(rateLimitPerMinute),
	}
}

// newServer builds the grpc.Server with the JSON codec and the interceptor
// chain: rate limit, then session, then CSRF.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.ChainUnaryInterceptor(s.rateLimitInterceptor, s.sessionInterceptor, s.csrfInterceptor),
	)
	RegisterCoreServiceServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go s.limiter.run(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
