// Package posts reads lost-and-found posts. Posts belong to the web
// application; this service only looks them up.
package posts

import (
	"context"

	"github.com/dmitrijs2005/lostfound/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, id int64) (*models.Post, error)
}
