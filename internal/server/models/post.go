package models

// Post statuses. The web application owns the full set; only approved
// posts can be contacted.
const (
	PostStatusPending  = "pending"
	PostStatusApproved = "approved"
	PostStatusRejected = "rejected"
)

// Post is read-only from the point of view of this service.
type Post struct {
	ID          int64
	OwnerUserID string
	Title       string
	Status      string
	IsResolved  bool
}

// Contactable reports whether other users may reach the owner about it.
func (p *Post) Contactable() bool {
	return p.Status == PostStatusApproved && !p.IsResolved
}
