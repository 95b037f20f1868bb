package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "lostfound.core.v1.CoreService"

// CoreServiceServer is the RPC surface the web tier talks to.
type CoreServiceServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	StartSession(context.Context, *StartSessionRequest) (*StartSessionResponse, error)
	IssueCSRFToken(context.Context, *IssueCSRFTokenRequest) (*IssueCSRFTokenResponse, error)
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	RequestPasswordReset(context.Context, *RequestPasswordResetRequest) (*RequestPasswordResetResponse, error)
	ResetPassword(context.Context, *ResetPasswordRequest) (*ResetPasswordResponse, error)
	UpdateProfile(context.Context, *UpdateProfileRequest) (*UserResponse, error)
	ActivateUser(context.Context, *ActivateUserRequest) (*UserResponse, error)
	SubmitContact(context.Context, *SubmitContactRequest) (*SubmitContactResponse, error)
	ListContactLogsForPost(context.Context, *ListContactLogsForPostRequest) (*ListContactLogsResponse, error)
	ListContactLogsForUser(context.Context, *ListContactLogsForUserRequest) (*ListContactLogsResponse, error)
}

func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

// unary builds the method descriptor of one RPC. It decodes the request,
// then runs call through the interceptor chain.
func unary[Req, Resp any](name string, call func(CoreServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(CoreServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var coreServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CoreServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Ping", CoreServiceServer.Ping),
		unary("StartSession", CoreServiceServer.StartSession),
		unary("IssueCSRFToken", CoreServiceServer.IssueCSRFToken),
		unary("Register", CoreServiceServer.Register),
		unary("Login", CoreServiceServer.Login),
		unary("Logout", CoreServiceServer.Logout),
		unary("RequestPasswordReset", CoreServiceServer.RequestPasswordReset),
		unary("ResetPassword", CoreServiceServer.ResetPassword),
		unary("UpdateProfile", CoreServiceServer.UpdateProfile),
		unary("ActivateUser", CoreServiceServer.ActivateUser),
		unary("SubmitContact", CoreServiceServer.SubmitContact),
		unary("ListContactLogsForPost", CoreServiceServer.ListContactLogsForPost),
		unary("ListContactLogsForUser", CoreServiceServer.ListContactLogsForUser),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lostfound/core/v1",
}

// RegisterCoreServiceServer attaches srv to s.
func RegisterCoreServiceServer(s grpc.ServiceRegistrar, srv CoreServiceServer) {
	s.RegisterService(&coreServiceDesc, srv)
}

// CoreClient is a thin client of CoreService for the web tier and tests.
// Session and CSRF tokens travel in outgoing metadata, see WithSession.
type CoreClient struct {
	cc grpc.ClientConnInterface
}

func NewCoreClient(cc grpc.ClientConnInterface) *CoreClient {
	return &CoreClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *CoreClient, name string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, fullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CoreClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c, "Ping", in, opts...)
}

func (c *CoreClient) StartSession(ctx context.Context, in *StartSessionRequest, opts ...grpc.CallOption) (*StartSessionResponse, error) {
	return invoke[StartSessionResponse](ctx, c, "StartSession", in, opts...)
}

func (c *CoreClient) IssueCSRFToken(ctx context.Context, in *IssueCSRFTokenRequest, opts ...grpc.CallOption) (*IssueCSRFTokenResponse, error) {
	return invoke[IssueCSRFTokenResponse](ctx, c, "IssueCSRFToken", in, opts...)
}

func (c *CoreClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c, "Register", in, opts...)
}

func (c *CoreClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c, "Login", in, opts...)
}

func (c *CoreClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error) {
	return invoke[LogoutResponse](ctx, c, "Logout", in, opts...)
}

func (c *CoreClient) RequestPasswordReset(ctx context.Context, in *RequestPasswordResetRequest, opts ...grpc.CallOption) (*RequestPasswordResetResponse, error) {
	return invoke[RequestPasswordResetResponse](ctx, c, "RequestPasswordReset", in, opts...)
}

func (c *CoreClient) ResetPassword(ctx context.Context, in *ResetPasswordRequest, opts ...grpc.CallOption) (*ResetPasswordResponse, error) {
	return invoke[ResetPasswordResponse](ctx, c, "ResetPassword", in, opts...)
}

func (c *CoreClient) UpdateProfile(ctx context.Context, in *UpdateProfileRequest, opts ...grpc.CallOption) (*UserResponse, error) {
	return invoke[UserResponse](ctx, c, "UpdateProfile", in, opts...)
}

func (c *CoreClient) ActivateUser(ctx context.Context, in *ActivateUserRequest, opts ...grpc.CallOption) (*UserResponse, error) {
	return invoke[UserResponse](ctx, c, "ActivateUser", in, opts...)
}

func (c *CoreClient) SubmitContact(ctx context.Context, in *SubmitContactRequest, opts ...grpc.CallOption) (*SubmitContactResponse, error) {
	return invoke[SubmitContactResponse](ctx, c, "SubmitContact", in, opts...)
}

func (c *CoreClient) ListContactLogsForPost(ctx context.Context, in *ListContactLogsForPostRequest, opts ...grpc.CallOption) (*ListContactLogsResponse, error) {
	return invoke[ListContactLogsResponse](ctx, c, "ListContactLogsForPost", in, opts...)
}

func (c *CoreClient) ListContactLogsForUser(ctx context.Context, in *ListContactLogsForUserRequest, opts ...grpc.CallOption) (*ListContactLogsResponse, error) {
	return invoke[ListContactLogsResponse](ctx, c, "ListContactLogsForUser", in, opts...)
}
