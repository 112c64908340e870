package services

import (
	"context"
	"fmt"

	"github.com/snapvault/snapvault/internal/common"
	"github.com/snapvault/snapvault/internal/dbx"
	"github.com/snapvault/snapvault/internal/logging"
	"github.com/snapvault/snapvault/internal/server/models"
	"github.com/snapvault/snapvault/internal/server/repositories/repomanager"
)

// BatchService tracks upload batches through their settlement lifecycle.
// The per-file counting itself happens inside UploadService.settle (same
// transaction as the photo transition); this service owns creation, status
// reads and the explicit batch-level abort.
type BatchService struct {
	db     dbx.DBTX
	tx     dbx.TxRunner
	rm     repomanager.RepositoryManager
	logger logging.Logger
}

// NewBatchService constructs a BatchService.
func NewBatchService(db dbx.DBTX, tx dbx.TxRunner, rm repomanager.RepositoryManager, logger logging.Logger) *BatchService {
	return &BatchService{
		db:     db,
		tx:     tx,
		rm:     rm,
		logger: logger.With("module", "batches"),
	}
}

// Create registers a batch of totalFiles uploads for userID.
func (s *BatchService) Create(ctx context.Context, userID string, totalFiles int) (*BatchView, error) {
	batch, err := models.NewUploadBatch(userID, totalFiles)
	if err != nil {
		return nil, err
	}
	if err := s.rm.Batches(s.db).Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("error creating batch: %w", err)
	}
	s.logger.Info(ctx, "batch created", "batch_id", batch.ID, "user_id", userID, "total_files", totalFiles)
	return newBatchView(batch), nil
}

// Get returns the batch's progress. Only the owner may read it.
func (s *BatchService) Get(ctx context.Context, batchID, userID string) (*BatchView, error) {
	batch, err := s.rm.Batches(s.db).GetByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("error loading batch: %w", err)
	}
	if batch.UserID != userID {
		return nil, fmt.Errorf("%w: batch %s belongs to another user", common.ErrorForbidden, batchID)
	}
	return newBatchView(batch), nil
}

// Abort force-fails the batch regardless of settlement progress. Individual
// photo records are left as they are: files already completed stay
// completed.
func (s *BatchService) Abort(ctx context.Context, batchID, userID string) (*BatchView, error) {
	var view *BatchView
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.Batches(tx)
		batch, err := repo.GetByIDForUpdate(ctx, batchID)
		if err != nil {
			return fmt.Errorf("error loading batch: %w", err)
		}
		if batch.UserID != userID {
			return fmt.Errorf("%w: batch %s belongs to another user", common.ErrorForbidden, batchID)
		}
		if err := batch.MarkFailed(); err != nil {
			return err
		}
		if err := repo.Update(ctx, batch); err != nil {
			return fmt.Errorf("error updating batch: %w", err)
		}
		view = newBatchView(batch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "batch aborted", "batch_id", batchID)
	return view, nil
}
