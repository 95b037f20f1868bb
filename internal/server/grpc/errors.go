package grpc

import (
	"errors"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errorDomain tags ErrorInfo details attached to rejections.
const errorDomain = "lostfound"

var rejectionCodes = map[common.RejectionReason]codes.Code{
	common.ReasonPostNotContactable:     codes.FailedPrecondition,
	common.ReasonAuthenticationRequired: codes.Unauthenticated,
	common.ReasonSelfContactForbidden:   codes.PermissionDenied,
	common.ReasonMessageTooShort:        codes.InvalidArgument,
	common.ReasonMessageTooLong:         codes.InvalidArgument,
}

// toStatus converts a service error into a status error. Field messages of
// validation errors travel as BadRequest details, rejection reasons as
// ErrorInfo. Anything unrecognised becomes a generic Internal status.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var verr *common.ValidationError
	if errors.As(err, &verr) {
		br := &errdetails.BadRequest{}
		for _, f := range verr.Fields {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
				Field:       f.Field,
				Description: f.Message,
			})
		}
		return detailed(status.New(codes.InvalidArgument, verr.Error()).WithDetails(br))
	}

	var rerr *common.RejectionError
	if errors.As(err, &rerr) {
		code, ok := rejectionCodes[rerr.Reason]
		if !ok {
			code = codes.FailedPrecondition
		}
		return detailed(status.New(code, string(rerr.Reason)).WithDetails(errorInfo(string(rerr.Reason))))
	}

	switch {
	case errors.Is(err, common.ErrAccountPending):
		// Same code and message as bad credentials; the reason lets the UI
		// show a pending-approval notice once the password is known good.
		return detailed(status.New(codes.Unauthenticated, "invalid credentials").WithDetails(errorInfo(reasonAccountPending)))
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case errors.Is(err, common.ErrSessionNotFound):
		return status.Error(codes.Unauthenticated, "session required")
	case errors.Is(err, common.ErrCSRFMismatch):
		return status.Error(codes.PermissionDenied, "csrf token mismatch")
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		return status.Error(codes.InvalidArgument, "invalid or expired token")
	case errors.Is(err, common.ErrDuplicateEmail):
		return status.Error(codes.AlreadyExists, "email already registered")
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, common.ErrQueueFull):
		return status.Error(codes.Unavailable, "try again later")
	default:
		return status.Error(codes.Internal, "internal error, try again")
	}
}

const reasonAccountPending = "account_pending"

func errorInfo(reason string) *errdetails.ErrorInfo {
	return &errdetails.ErrorInfo{Reason: reason, Domain: errorDomain}
}

func detailed(st *status.Status, err error) error {
	if err != nil {
		return status.Error(codes.Internal, "internal error, try again")
	}
	return st.Err()
}

// ReasonOf returns the ErrorInfo reason attached to a status error, or ""
// when there is none. Clients use it to tell rejection reasons apart.
func ReasonOf(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}
