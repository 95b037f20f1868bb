package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
)

// memRecorder mimics the conditional update of the contact log store.
type memRecorder struct {
	mu     sync.Mutex
	rows   map[string]*models.ContactLog
	writes int
}

func newMemRecorder(ids ...string) *memRecorder {
	r := &memRecorder{rows: map[string]*models.ContactLog{}}
	for _, id := range ids {
		r.rows[id] = &models.ContactLog{ID: id, EmailSent: models.DeliveryPending}
	}
	return r
}

func (r *memRecorder) Get(_ context.Context, id string) (*models.ContactLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cl, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *cl
	return &cp, nil
}

func (r *memRecorder) MarkDelivery(_ context.Context, id string, status models.DeliveryStatus, errMsg *string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cl, ok := r.rows[id]
	if !ok || cl.EmailSent != models.DeliveryPending {
		return false, nil
	}
	cl.EmailSent = status
	cl.EmailError = errMsg
	cl.DeliveredAt = &at
	r.writes++
	return true, nil
}

func (r *memRecorder) row(id string) models.ContactLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}
