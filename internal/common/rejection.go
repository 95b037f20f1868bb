package common

// RejectionReason is the structured reason a contact submission was refused.
type RejectionReason string

const (
	ReasonPostNotContactable     RejectionReason = "post_not_contactable"
	ReasonAuthenticationRequired RejectionReason = "authentication_required"
	ReasonSelfContactForbidden   RejectionReason = "self_contact_forbidden"
	ReasonMessageTooShort        RejectionReason = "message_too_short"
	ReasonMessageTooLong         RejectionReason = "message_too_long"
)

// RejectionError is returned when a contact submission fails a policy check.
type RejectionError struct {
	Reason RejectionReason
}

func (e *RejectionError) Error() string {
	return "contact rejected: " + string(e.Reason)
}

// Is reports whether target is a RejectionError with the same reason.
func (e *RejectionError) Is(target error) bool {
	t, ok := target.(*RejectionError)
	return ok && t.Reason == e.Reason
}

var (
	ErrPostNotContactable     = &RejectionError{Reason: ReasonPostNotContactable}
	ErrAuthenticationRequired = &RejectionError{Reason: ReasonAuthenticationRequired}
	ErrSelfContactForbidden   = &RejectionError{Reason: ReasonSelfContactForbidden}
	ErrMessageTooShort        = &RejectionError{Reason: ReasonMessageTooShort}
	ErrMessageTooLong         = &RejectionError{Reason: ReasonMessageTooLong}
)
