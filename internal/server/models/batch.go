package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/snapvault/snapvault/internal/common"
)

// UploadBatch statuses. Unlike a single photo, a batch does model an
// "uploading" phase: it starts there on the first settlement and leaves it
// when every member file has settled.
const (
	BatchStatusPending   = "pending"
	BatchStatusUploading = "uploading"
	BatchStatusCompleted = "completed"
	BatchStatusFailed    = "failed"
)

// UploadBatch aggregates progress over a client-declared group of uploads.
// CompletedFiles counts settled files (completed or failed alike); the
// succeeded/failed tallies let callers tell "all attempted" from
// "all succeeded". TotalFiles is fixed at creation.
type UploadBatch struct {
	ID             string
	UserID         string
	TotalFiles     int
	CompletedFiles int
	SucceededFiles int
	FailedFiles    int
	Status         string
	CreatedAt      time.Time
}

// NewUploadBatch constructs a pending batch for totalFiles member uploads.
func NewUploadBatch(userID string, totalFiles int) (*UploadBatch, error) {
	if totalFiles < 1 {
		return nil, fmt.Errorf("%w: batch must contain at least one file", common.ErrorValidation)
	}
	return &UploadBatch{
		ID:         uuid.NewString(),
		UserID:     userID,
		TotalFiles: totalFiles,
		Status:     BatchStatusPending,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// IsTerminal reports whether the batch has reached a terminal status.
func (b *UploadBatch) IsTerminal() bool {
	return b.Status == BatchStatusCompleted || b.Status == BatchStatusFailed
}

// RecordSettlement counts one settled file and advances the batch status:
// the first settlement moves a pending batch to "uploading", and the
// settlement that brings CompletedFiles to TotalFiles moves it to
// "completed" (directly from "pending" when TotalFiles is 1). Settling a
// terminal or already full batch is a conflict.
//
// Callers must hold the batch row exclusively (SELECT ... FOR UPDATE or an
// equivalent lock) while calling this: the guard assumes no concurrent
// writer sees the same CompletedFiles value.
func (b *UploadBatch) RecordSettlement(succeeded bool) error {
	if b.IsTerminal() {
		return fmt.Errorf("%w: batch %s already %s", common.ErrorConflict, b.ID, b.Status)
	}
	if b.CompletedFiles >= b.TotalFiles {
		return fmt.Errorf("%w: batch %s already has all %d files settled", common.ErrorConflict, b.ID, b.TotalFiles)
	}

	b.CompletedFiles++
	if succeeded {
		b.SucceededFiles++
	} else {
		b.FailedFiles++
	}

	if b.CompletedFiles == b.TotalFiles {
		b.Status = BatchStatusCompleted
	} else {
		b.Status = BatchStatusUploading
	}
	return nil
}

// ProgressPercent returns settlement progress in [0,100]. A zero TotalFiles
// is unreachable through the constructor; the guard protects against
// corrupted rows only.
func (b *UploadBatch) ProgressPercent() float64 {
	if b.TotalFiles == 0 {
		return 0
	}
	return float64(b.CompletedFiles) * 100 / float64(b.TotalFiles)
}

// MarkFailed force-transitions the batch to "failed" regardless of how many
// files have settled. Aborting an already failed batch is a no-op; a
// completed batch rejects the abort with a conflict.
func (b *UploadBatch) MarkFailed() error {
	if b.Status == BatchStatusFailed {
		return nil
	}
	if b.Status == BatchStatusCompleted {
		return fmt.Errorf("%w: batch %s already completed", common.ErrorConflict, b.ID)
	}
	b.Status = BatchStatusFailed
	return nil
}
