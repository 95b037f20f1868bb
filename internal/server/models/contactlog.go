package models

import "time"

// DeliveryStatus is the tri-state email_sent column of a contact log.
// It moves from pending to exactly one of sent or failed.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

func (s DeliveryStatus) Terminal() bool {
	return s == DeliverySent || s == DeliveryFailed
}

// ContactLog records one accepted contact attempt against a post.
// SenderName and SenderEmail are snapshots taken at submission time.
type ContactLog struct {
	ID           string
	PostID       int64
	SenderUserID string
	SenderName   string
	SenderEmail  string
	Message      string
	IPAddress    string
	UserAgent    string
	EmailSent    DeliveryStatus
	EmailError   *string
	SentAt       time.Time
	DeliveredAt  *time.Time
}

// PendingDelivery is a contact log whose notification has not been
// dispatched yet, joined with what is needed to rebuild the job.
type PendingDelivery struct {
	Log        ContactLog
	PostTitle  string
	OwnerEmail string
	OwnerName  string
}
