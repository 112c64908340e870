// Package batches provides the PostgreSQL-backed store for upload batches.
package batches

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/snapvault/snapvault/internal/common"
	"github.com/snapvault/snapvault/internal/dbx"
	"github.com/snapvault/snapvault/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const batchColumns = `id, user_id, total_files, completed_files, succeeded_files, failed_files, status, created_at`

// Create inserts the batch row.
func (r *PostgresRepository) Create(ctx context.Context, batch *models.UploadBatch) error {
	query := `
		INSERT INTO upload_batches (id, user_id, total_files, completed_files, succeeded_files, failed_files, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := r.db.ExecContext(ctx, query,
		batch.ID, batch.UserID, batch.TotalFiles, batch.CompletedFiles,
		batch.SucceededFiles, batch.FailedFiles, batch.Status, batch.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns the batch, or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.UploadBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM upload_batches WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByIDForUpdate returns the batch holding a row lock. Must run inside a
// transaction: the lock is what serializes concurrent settlements.
func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.UploadBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM upload_batches WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query, id string) (*models.UploadBatch, error) {
	batch := &models.UploadBatch{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&batch.ID, &batch.UserID, &batch.TotalFiles, &batch.CompletedFiles,
		&batch.SucceededFiles, &batch.FailedFiles, &batch.Status, &batch.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return batch, nil
}

// Update persists the batch counters and status. Exactly one row must be
// affected.
func (r *PostgresRepository) Update(ctx context.Context, batch *models.UploadBatch) error {
	query := `
		UPDATE upload_batches
		SET completed_files = $2, succeeded_files = $3, failed_files = $4, status = $5
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		batch.ID, batch.CompletedFiles, batch.SucceededFiles, batch.FailedFiles, batch.Status)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
