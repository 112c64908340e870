package repomanager

import (
	"context"
	"database/sql"

	"github.com/snapvault/snapvault/internal/dbx"
	"github.com/snapvault/snapvault/internal/server/repositories/batches"
	"github.com/snapvault/snapvault/internal/server/repositories/photos"
	"github.com/snapvault/snapvault/internal/server/repositories/refreshtokens"
	"github.com/snapvault/snapvault/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX: pass *sql.DB for
// standalone operations or the dbx.WithTx handle to run several repositories
// inside one transaction.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Photos(db dbx.DBTX) photos.Repository
	Batches(db dbx.DBTX) batches.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
