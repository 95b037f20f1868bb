// Package contactlogs stores the audit and delivery record of each accepted
// contact submission.
package contactlogs

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/server/models"
)

type Repository interface {
	// Create inserts log in the pending state and fills in its id and SentAt.
	Create(ctx context.Context, log *models.ContactLog) (*models.ContactLog, error)
	Get(ctx context.Context, id string) (*models.ContactLog, error)
	// MarkDelivery moves a pending row to a terminal status. It reports
	// false, without error, when the row was already terminal.
	MarkDelivery(ctx context.Context, id string, status models.DeliveryStatus, errMsg *string, at time.Time) (bool, error)
	ListForPost(ctx context.Context, postID int64) ([]*models.ContactLog, error)
	// ListForPostOwner returns logs received on any post owned by ownerUserID.
	ListForPostOwner(ctx context.Context, ownerUserID string) ([]*models.ContactLog, error)
	// ListPending returns up to limit rows still pending since before olderThan,
	// oldest first, joined with what is needed to redeliver them.
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*models.PendingDelivery, error)
}
