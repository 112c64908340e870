// Package services contains server-side business logic: the upload
// orchestration workflow, batch progress aggregation, tag editing, and
// account/token management.
package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/snapvault/snapvault/internal/common"
	"github.com/snapvault/snapvault/internal/dbx"
	"github.com/snapvault/snapvault/internal/logging"
	"github.com/snapvault/snapvault/internal/server/models"
	"github.com/snapvault/snapvault/internal/server/repositories/repomanager"
)

// Grant lifetimes, in minutes.
const (
	UploadGrantTTLMinutes   = 15
	DownloadGrantTTLMinutes = 15
)

// Gallery paging bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// UploadService is the entry-point workflow for uploads: it mints pending
// photo records paired with direct-to-storage upload grants, accepts the
// client's completion/failure reports, and keeps the owning batch's progress
// in step with the per-file transitions.
type UploadService struct {
	db     dbx.DBTX
	tx     dbx.TxRunner
	rm     repomanager.RepositoryManager
	grants GrantIssuer
	logger logging.Logger
}

// NewUploadService constructs an UploadService. db serves plain reads; tx is
// the transaction boundary for every mutation.
func NewUploadService(db dbx.DBTX, tx dbx.TxRunner, rm repomanager.RepositoryManager, grants GrantIssuer, logger logging.Logger) *UploadService {
	return &UploadService{
		db:     db,
		tx:     tx,
		rm:     rm,
		grants: grants,
		logger: logger.With("module", "uploads"),
	}
}

// InitiateResult is what the client needs to move the bytes itself: the
// record id to report against, the presigned URL to PUT to, and when the
// grant expires.
type InitiateResult struct {
	PhotoID    string
	UploadURL  string
	StorageKey string
	ExpiresAt  time.Time
}

// Initiate validates the file metadata, creates a pending photo record and
// requests an upload grant. Record creation and grant issuance have no
// ordering dependency, so they run concurrently; the response composes both.
//
// If grant issuance fails after the record was inserted, the pending record
// is left behind: it never transitions and a later initiate simply mints a
// new one.
func (s *UploadService) Initiate(ctx context.Context, userID, fileName, contentType string, sizeBytes int64, tags []string, batchID string) (*InitiateResult, error) {
	if batchID != "" {
		batch, err := s.rm.Batches(s.db).GetByID(ctx, batchID)
		if err != nil {
			return nil, fmt.Errorf("error loading batch: %w", err)
		}
		if batch.UserID != userID {
			return nil, fmt.Errorf("%w: batch %s belongs to another user", common.ErrorForbidden, batchID)
		}
		if batch.IsTerminal() {
			return nil, fmt.Errorf("%w: batch %s is %s", common.ErrorConflict, batchID, batch.Status)
		}
	}

	photo, err := models.NewPhoto(userID, fileName, contentType, sizeBytes, tags, batchID)
	if err != nil {
		return nil, err
	}

	var grant *storageGrant
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		issued, err := s.grants.GrantUpload(gctx, photo.StorageKey, photo.ContentType, UploadGrantTTLMinutes)
		if err != nil {
			return err
		}
		grant = &storageGrant{url: issued.URL, expiresAt: issued.ExpiresAt}
		return nil
	})
	g.Go(func() error {
		return s.rm.Photos(s.db).Create(gctx, photo)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "upload initiated", "photo_id", photo.ID, "user_id", userID, "batch_id", batchID)

	return &InitiateResult{
		PhotoID:    photo.ID,
		UploadURL:  grant.url,
		StorageKey: photo.StorageKey,
		ExpiresAt:  grant.expiresAt,
	}, nil
}

type storageGrant struct {
	url       string
	expiresAt time.Time
}

// ReportCompletion marks the photo completed and, if it belongs to a batch,
// counts one settled file toward the batch. Both updates happen in one
// transaction; a conflict on either side rolls back both.
func (s *UploadService) ReportCompletion(ctx context.Context, photoID string) error {
	return s.settle(ctx, photoID, true, "")
}

// ReportFailure marks the photo failed, persisting the client-supplied
// reason, and settles the batch counter. Reporting an already failed photo
// again is a no-op and does not settle the batch twice.
func (s *UploadService) ReportFailure(ctx context.Context, photoID, reason string) error {
	return s.settle(ctx, photoID, false, reason)
}

func (s *UploadService) settle(ctx context.Context, photoID string, succeeded bool, reason string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		photoRepo := s.rm.Photos(tx)
		photo, err := photoRepo.GetByIDForUpdate(ctx, photoID)
		if err != nil {
			return fmt.Errorf("error loading photo: %w", err)
		}

		if succeeded {
			if err := photo.MarkCompleted(); err != nil {
				return err
			}
		} else {
			if photo.Status == models.PhotoStatusFailed {
				// repeated failure report: no-op, the batch was settled
				// by the first one
				return nil
			}
			if err := photo.MarkFailed(reason); err != nil {
				return err
			}
		}

		if err := photoRepo.UpdateStatus(ctx, photo); err != nil {
			return fmt.Errorf("error updating photo: %w", err)
		}

		if photo.BatchID != "" {
			batchRepo := s.rm.Batches(tx)
			batch, err := batchRepo.GetByIDForUpdate(ctx, photo.BatchID)
			if err != nil {
				return fmt.Errorf("error loading batch: %w", err)
			}
			if err := batch.RecordSettlement(succeeded); err != nil {
				return err
			}
			if err := batchRepo.Update(ctx, batch); err != nil {
				return fmt.Errorf("error updating batch: %w", err)
			}
		}

		s.logger.Info(ctx, "upload settled", "photo_id", photoID, "succeeded", succeeded)
		return nil
	})
}

// StatusView is the read projection of a photo's lifecycle state.
type StatusView struct {
	PhotoID      string
	Status       string
	UploadedAt   time.Time
	ErrorMessage string
}

// Status returns the photo's current lifecycle state.
func (s *UploadService) Status(ctx context.Context, photoID string) (*StatusView, error) {
	photo, err := s.rm.Photos(s.db).GetByID(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("error loading photo: %w", err)
	}
	return &StatusView{
		PhotoID:      photo.ID,
		Status:       photo.Status,
		UploadedAt:   photo.UploadedAt,
		ErrorMessage: photo.ErrorMessage,
	}, nil
}

// List returns one page of the owner's gallery, optionally filtered to
// photos carrying every one of the given tags. Completed photos get a fresh
// download grant; a storage hiccup degrades the listing (missing URLs)
// instead of failing it.
func (s *UploadService) List(ctx context.Context, userID string, rawTags []string, page, pageSize int) (*PhotoPage, error) {
	tags, err := models.NormalizeTags(rawTags)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	repo := s.rm.Photos(s.db)
	list, err := repo.ListByOwner(ctx, userID, tags, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("error listing photos: %w", err)
	}
	total, err := repo.CountByOwner(ctx, userID, tags)
	if err != nil {
		return nil, fmt.Errorf("error counting photos: %w", err)
	}

	views := make([]*PhotoView, 0, len(list))
	for _, photo := range list {
		url := ""
		if photo.Status == models.PhotoStatusCompleted {
			grant, err := s.grants.GrantDownload(ctx, photo.StorageKey, DownloadGrantTTLMinutes)
			if err != nil {
				s.logger.Warn(ctx, "download grant failed", "photo_id", photo.ID, "error", err.Error())
			} else {
				url = grant.URL
			}
		}
		views = append(views, newPhotoView(photo, url))
	}

	return &PhotoPage{Photos: views, Total: total, Page: page, PageSize: pageSize}, nil
}

// Delete removes the photo record and best-effort deletes the stored object.
// A storage failure after the row is gone is logged, not surfaced: the
// record deletion already happened and manual cleanup is acceptable.
func (s *UploadService) Delete(ctx context.Context, photoID, userID string) error {
	repo := s.rm.Photos(s.db)
	photo, err := repo.GetByID(ctx, photoID)
	if err != nil {
		return fmt.Errorf("error loading photo: %w", err)
	}
	if photo.UserID != userID {
		return fmt.Errorf("%w: photo %s belongs to another user", common.ErrorForbidden, photoID)
	}
	if err := repo.Delete(ctx, photoID); err != nil {
		return fmt.Errorf("error deleting photo: %w", err)
	}
	if err := s.grants.Revoke(ctx, photo.StorageKey); err != nil {
		s.logger.Warn(ctx, "object revoke failed", "photo_id", photoID, "storage_key", photo.StorageKey, "error", err.Error())
	}
	return nil
}
