package dbx

import (
	"context"
	"database/sql"
)

// TxRunner runs a function inside one logical transaction. The production
// implementation wraps *sql.DB; test stores substitute their own
// serialization (see the inmemory package).
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
}

// SQLTxRunner is the database/sql-backed TxRunner.
type SQLTxRunner struct {
	DB *sql.DB
}

func NewSQLTxRunner(db *sql.DB) *SQLTxRunner {
	return &SQLTxRunner{DB: db}
}

func (r *SQLTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	return WithTx(ctx, r.DB, nil, fn)
}
