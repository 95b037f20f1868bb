package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/lostfound/internal/dbx"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/contactlogs"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/posts"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs against *sql.DB or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	ContactLogs(db dbx.DBTX) contactlogs.Repository
	Posts(db dbx.DBTX) posts.Repository
}
