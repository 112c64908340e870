package batches

import (
	"context"

	"github.com/snapvault/snapvault/internal/server/models"
)

// Repository stores upload batches. Settlement callers must pair
// GetByIDForUpdate with Update inside one transaction so concurrent
// settlements of the same batch serialize on the row lock.
type Repository interface {
	Create(ctx context.Context, batch *models.UploadBatch) error
	GetByID(ctx context.Context, id string) (*models.UploadBatch, error)
	GetByIDForUpdate(ctx context.Context, id string) (*models.UploadBatch, error)
	Update(ctx context.Context, batch *models.UploadBatch) error
}
