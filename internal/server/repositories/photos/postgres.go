// Package photos provides the PostgreSQL-backed store for photo upload
// records and their tags.
package photos

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

const photoColumns = `id, user_id, COALESCE(batch_id::text, ''), file_name, content_type, size_bytes, storage_key, status, COALESCE(error_message, ''), uploaded_at`

// Create inserts the photo row and its tag rows.
func (r *PostgresRepository) Create(ctx context.Context, photo *models.Photo) error {
	query := `
		INSERT INTO photos (id, user_id, batch_id, file_name, content_type, size_bytes, storage_key, status, error_message, uploaded_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)
	`
	if _, err := r.db.ExecContext(ctx, query,
		photo.ID, photo.UserID, photo.BatchID, photo.FileName, photo.ContentType,
		photo.SizeBytes, photo.StorageKey, photo.Status, photo.ErrorMessage, photo.UploadedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return r.insertTags(ctx, photo.ID, photo.Tags)
}

// GetByID returns the photo with its tags, or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByIDForUpdate returns the photo holding a row lock. Must run inside a
// transaction; outside one the lock is released immediately.
func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query, id string) (*models.Photo, error) {
	photo := &models.Photo{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&photo.ID, &photo.UserID, &photo.BatchID, &photo.FileName, &photo.ContentType,
		&photo.SizeBytes, &photo.StorageKey, &photo.Status, &photo.ErrorMessage, &photo.UploadedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	tags, err := r.selectTags(ctx, photo.ID)
	if err != nil {
		return nil, err
	}
	photo.Tags = tags
	return photo, nil
}

// UpdateStatus persists the photo's status and error message.
// Exactly one row must be affected.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, photo *models.Photo) error {
	query := `UPDATE photos SET status = $2, error_message = NULLIF($3, '') WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, photo.ID, photo.Status, photo.ErrorMessage)
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

// ReplaceTags overwrites the photo's tag rows with the given set.
func (r *PostgresRepository) ReplaceTags(ctx context.Context, photoID string, tags []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM photo_tags WHERE photo_id = $1`, photoID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return r.insertTags(ctx, photoID, tags)
}

func (r *PostgresRepository) insertTags(ctx context.Context, photoID string, tags []string) error {
	for _, tag := range tags {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO photo_tags (photo_id, tag) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			photoID, tag); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) selectTags(ctx context.Context, photoID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tag FROM photo_tags WHERE photo_id = $1 ORDER BY tag`, photoID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tags, nil
}

// ListByOwner returns a page of the owner's photos, newest first. When tags
// is non-empty only photos carrying every tag are returned (AND semantics,
// via a grouped join over photo_tags).
func (r *PostgresRepository) ListByOwner(ctx context.Context, userID string, tags []string, limit, offset int) ([]*models.Photo, error) {
	var rows *sql.Rows
	var err error
	if len(tags) == 0 {
		query := `SELECT ` + photoColumns + ` FROM photos
			WHERE user_id = $1
			ORDER BY uploaded_at DESC, id
			LIMIT $2 OFFSET $3`
		rows, err = r.db.QueryContext(ctx, query, userID, limit, offset)
	} else {
		query := `SELECT ` + photoColumns + ` FROM photos
			WHERE user_id = $1 AND id IN (
				SELECT photo_id FROM photo_tags
				WHERE tag = ANY($2)
				GROUP BY photo_id
				HAVING COUNT(DISTINCT tag) = $3
			)
			ORDER BY uploaded_at DESC, id
			LIMIT $4 OFFSET $5`
		rows, err = r.db.QueryContext(ctx, query, userID, tags, len(tags), limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select photos: %w", err)
	}
	defer rows.Close()

	var result []*models.Photo
	for rows.Next() {
		photo := &models.Photo{}
		if err := rows.Scan(
			&photo.ID, &photo.UserID, &photo.BatchID, &photo.FileName, &photo.ContentType,
			&photo.SizeBytes, &photo.StorageKey, &photo.Status, &photo.ErrorMessage, &photo.UploadedAt); err != nil {
			return nil, err
		}
		result = append(result, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, photo := range result {
		photoTags, err := r.selectTags(ctx, photo.ID)
		if err != nil {
			return nil, err
		}
		photo.Tags = photoTags
	}
	return result, nil
}

// CountByOwner counts the owner's photos, honoring the same tag filter as
// ListByOwner; used for pagination.
func (r *PostgresRepository) CountByOwner(ctx context.Context, userID string, tags []string) (int, error) {
	var count int
	var err error
	if len(tags) == 0 {
		err = r.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM photos WHERE user_id = $1`, userID).Scan(&count)
	} else {
		query := `SELECT COUNT(*) FROM photos
			WHERE user_id = $1 AND id IN (
				SELECT photo_id FROM photo_tags
				WHERE tag = ANY($2)
				GROUP BY photo_id
				HAVING COUNT(DISTINCT tag) = $3
			)`
		err = r.db.QueryRowContext(ctx, query, userID, tags, len(tags)).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

// Delete removes the photo row; tag rows cascade. Deleting an unknown id
// returns common.ErrorNotFound.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE id = $1`, id)
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
