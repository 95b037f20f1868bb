package common

// Metadata keys carried on inbound RPCs.
const (
	// SessionTokenHeaderName carries the signed session token.
	SessionTokenHeaderName = "session_token"
	// CSRFTokenHeaderName carries the synchronizer token of the session.
	CSRFTokenHeaderName = "csrf_token"
)

// Metadata keys the web tier sets on behalf of the end user.
const (
	ClientIPHeaderName        = "client_ip"
	ClientUserAgentHeaderName = "client_user_agent"
)
