package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// access describes what a method requires from the caller.
type access struct {
	session bool // a valid session token
	user    bool // a session bound to a user
	admin   bool // the bound user is an administrator
	csrf    bool // csrf_token matches the session
	limited bool // subject to per-client rate limiting
}

var methodAccess = map[string]access{
	fullMethod("Ping"):                   {},
	fullMethod("StartSession"):           {},
	fullMethod("IssueCSRFToken"):         {session: true},
	fullMethod("Register"):               {session: true, csrf: true},
	fullMethod("Login"):                  {session: true, csrf: true, limited: true},
	fullMethod("Logout"):                 {session: true, csrf: true},
	fullMethod("RequestPasswordReset"):   {session: true, csrf: true, limited: true},
	fullMethod("ResetPassword"):          {session: true, csrf: true},
	fullMethod("UpdateProfile"):          {session: true, user: true, csrf: true},
	fullMethod("ActivateUser"):           {session: true, user: true, admin: true, csrf: true},
	fullMethod("SubmitContact"):          {session: true, csrf: true, limited: true},
	fullMethod("ListContactLogsForPost"): {session: true, user: true},
	fullMethod("ListContactLogsForUser"): {session: true, user: true},
}

type ctxKey string

const (
	sessionKey ctxKey = "session"
	userKey    ctxKey = "user"
	metaKey    ctxKey = "request_meta"
)

func sessionFromContext(ctx context.Context) (*models.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*models.Session)
	return s, ok && s != nil
}

func userFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}

func firstMD(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

// clientMeta returns the end user's address and agent as forwarded by the
// web tier, falling back to the transport peer address.
func clientMeta(ctx context.Context) requestMeta {
	md, _ := metadata.FromIncomingContext(ctx)
	m := requestMeta{
		IPAddress: firstMD(md, common.ClientIPHeaderName),
		UserAgent: firstMD(md, common.ClientUserAgentHeaderName),
	}
	if m.IPAddress == "" {
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			host, _, err := net.SplitHostPort(p.Addr.String())
			if err != nil {
				host = p.Addr.String()
			}
			m.IPAddress = host
		}
	}
	return m
}

type requestMeta struct {
	IPAddress string
	UserAgent string
}

func metaFromContext(ctx context.Context) requestMeta {
	if m, ok := ctx.Value(metaKey).(requestMeta); ok {
		return m
	}
	return clientMeta(ctx)
}

// rateLimitInterceptor throttles the methods marked limited, per client
// address.
func (s *GRPCServer) rateLimitInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	meta := clientMeta(ctx)
	ctx = context.WithValue(ctx, metaKey, meta)

	if methodAccess[info.FullMethod].limited && !s.limiter.allow(meta.IPAddress) {
		s.logger.Warn(ctx, "rate limit exceeded", "method", info.FullMethod, "ip", meta.IPAddress)
		return nil, status.Error(codes.ResourceExhausted, "too many requests")
	}
	return handler(ctx, req)
}

// sessionInterceptor resolves the session token and, when the session is
// bound, its user. Methods not listed in methodAccess are refused.
func (s *GRPCServer) sessionInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	acc, ok := methodAccess[info.FullMethod]
	if !ok {
		return nil, status.Error(codes.Unimplemented, "unknown method")
	}
	if !acc.session {
		return handler(ctx, req)
	}

	md, _ := metadata.FromIncomingContext(ctx)
	token := firstMD(md, common.SessionTokenHeaderName)
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing session token")
	}

	sess, err := s.sessions.Load(ctx, token)
	if err != nil {
		return nil, toStatus(err)
	}
	ctx = context.WithValue(ctx, sessionKey, sess)

	if sess.Authenticated() {
		user, err := s.users.GetUser(ctx, sess.UserID)
		switch {
		case err == nil && user.CanAuthenticate():
			ctx = context.WithValue(ctx, userKey, user)
		case err == nil, errors.Is(err, common.ErrorNotFound):
			// The account was removed or locked since login.
			s.logger.Warn(ctx, "session bound to unusable account", "user_id", sess.UserID)
		default:
			return nil, toStatus(err)
		}
	}

	user, hasUser := userFromContext(ctx)
	if acc.user && !hasUser {
		return nil, status.Error(codes.Unauthenticated, "login required")
	}
	if acc.admin && !user.IsAdmin() {
		return nil, status.Error(codes.PermissionDenied, "admin only")
	}

	return handler(ctx, req)
}

// csrfInterceptor checks the csrf_token metadata of state-changing methods
// against the session loaded by sessionInterceptor.
func (s *GRPCServer) csrfInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !methodAccess[info.FullMethod].csrf {
		return handler(ctx, req)
	}

	sess, ok := sessionFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing session token")
	}

	md, _ := metadata.FromIncomingContext(ctx)
	if !s.sessions.ValidateCSRFToken(sess, firstMD(md, common.CSRFTokenHeaderName)) {
		s.logger.Warn(ctx, "csrf token mismatch", "method", info.FullMethod)
		return nil, toStatus(common.ErrCSRFMismatch)
	}
	return handler(ctx, req)
}
