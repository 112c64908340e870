package photos

import (
	"context"

	"github.com/snapvault/snapvault/internal/server/models"
)

// Repository is the narrow persistence capability the services consume.
// Any concrete store (PostgreSQL in production, in-memory in tests)
// implements it.
type Repository interface {
	Create(ctx context.Context, photo *models.Photo) error
	GetByID(ctx context.Context, id string) (*models.Photo, error)
	// GetByIDForUpdate reads the row holding a row lock; call it inside a
	// transaction when a lifecycle transition follows the read.
	GetByIDForUpdate(ctx context.Context, id string) (*models.Photo, error)
	UpdateStatus(ctx context.Context, photo *models.Photo) error
	ReplaceTags(ctx context.Context, photoID string, tags []string) error
	ListByOwner(ctx context.Context, userID string, tags []string, limit, offset int) ([]*models.Photo, error)
	CountByOwner(ctx context.Context, userID string, tags []string) (int, error)
	Delete(ctx context.Context, id string) error
}
