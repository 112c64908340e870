package services

import (
	"context"

	"github.com/snapvault/snapvault/internal/server/storage"
)

// GrantIssuer is the object-storage capability the services consume.
// *storage.Issuer implements it in production; tests substitute fakes.
type GrantIssuer interface {
	GrantUpload(ctx context.Context, key, contentType string, ttlMinutes int) (*storage.Grant, error)
	GrantDownload(ctx context.Context, key string, ttlMinutes int) (*storage.Grant, error)
	Revoke(ctx context.Context, key string) error
}
