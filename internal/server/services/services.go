// Package services holds the domain flows of the lostfound core: the session
// guard, the auth service and the contact notification relay.
package services

import (
	"github.com/dmitrijs2005/lostfound/internal/server/delivery"
)

// Enqueuer hands delivery jobs to the background pool without blocking.
// It returns common.ErrQueueFull when the job cannot be accepted.
type Enqueuer interface {
	Enqueue(job delivery.Job) error
}
