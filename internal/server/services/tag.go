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

// TagOperation selects how TagService.Apply combines the given tags with
// the photo's current set.
type TagOperation string

const (
	TagOpAdd     TagOperation = "add"     // union
	TagOpRemove  TagOperation = "remove"  // set difference
	TagOpReplace TagOperation = "replace" // full overwrite
)

// TagService edits a photo's tag set. All three operations are idempotent:
// applying the same request twice leaves the same set.
type TagService struct {
	db     dbx.DBTX
	tx     dbx.TxRunner
	rm     repomanager.RepositoryManager
	grants GrantIssuer
	logger logging.Logger
}

// NewTagService constructs a TagService.
func NewTagService(db dbx.DBTX, tx dbx.TxRunner, rm repomanager.RepositoryManager, grants GrantIssuer, logger logging.Logger) *TagService {
	return &TagService{
		db:     db,
		tx:     tx,
		rm:     rm,
		grants: grants,
		logger: logger.With("module", "tags"),
	}
}

// Apply loads the photo, verifies ownership, applies the operation and
// persists the result, returning the updated view. Completed photos get a
// fresh download grant in the view. Tags are metadata, not lifecycle:
// editing is allowed in any status, terminal ones included.
func (s *TagService) Apply(ctx context.Context, photoID, userID string, tags []string, op TagOperation) (*PhotoView, error) {
	var updated *models.Photo

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.Photos(tx)
		photo, err := repo.GetByIDForUpdate(ctx, photoID)
		if err != nil {
			return fmt.Errorf("error loading photo: %w", err)
		}
		if photo.UserID != userID {
			return fmt.Errorf("%w: photo %s belongs to another user", common.ErrorForbidden, photoID)
		}

		switch op {
		case TagOpAdd:
			err = photo.AddTags(tags)
		case TagOpRemove:
			err = photo.RemoveTags(tags)
		case TagOpReplace:
			err = photo.ReplaceTags(tags)
		default:
			err = fmt.Errorf("%w: unknown tag operation %q", common.ErrorValidation, op)
		}
		if err != nil {
			return err
		}

		if err := repo.ReplaceTags(ctx, photo.ID, photo.Tags); err != nil {
			return fmt.Errorf("error saving tags: %w", err)
		}
		updated = photo
		return nil
	})
	if err != nil {
		return nil, err
	}

	url := ""
	if updated.Status == models.PhotoStatusCompleted {
		grant, err := s.grants.GrantDownload(ctx, updated.StorageKey, DownloadGrantTTLMinutes)
		if err != nil {
			return nil, err
		}
		url = grant.URL
	}

	return newPhotoView(updated, url), nil
}
