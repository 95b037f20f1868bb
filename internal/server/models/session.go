package models

import "time"

// Session ties one browser to at most one authenticated user. UserID is
// empty while the session is anonymous.
type Session struct {
	ID         string
	UserID     string
	CSRFToken  string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != ""
}
