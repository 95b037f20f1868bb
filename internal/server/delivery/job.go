// Package delivery runs outbound mail off the request path. A Dispatcher
// queues jobs for a pool of goroutines; each job goes through a Worker that
// sends it with a hard timeout and bounded retry and records the outcome on
// the originating contact log exactly once.
package delivery

import (
	"errors"

	"github.com/dmitrijs2005/lostfound/internal/server/mail"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
)

type Kind string

const (
	KindContactNotification Kind = "contact_notification"
	KindPasswordReset       Kind = "password_reset"
)

// Job is one message to deliver. ContactLogID is set for contact
// notifications and names the row that receives the outcome.
type Job struct {
	ID           string
	Kind         Kind
	ContactLogID string
	Message      mail.Message
}

// Outcome is the result of Dispatch.
//
// Status is pending only when the caller's context ended before a terminal
// result; such rows are picked up again by the startup resume.
type Outcome struct {
	Status   models.DeliveryStatus
	Err      error
	Attempts int
	// Recorded is true when the execution behind this outcome performed the
	// terminal write. Concurrent callers sharing one execution all see it.
	Recorded bool
	// Skipped is true when the row was already terminal and nothing was sent.
	Skipped bool
}

// ErrTimeout classifies an attempt cut off by the hard deadline.
var ErrTimeout = errors.New("delivery timed out")
