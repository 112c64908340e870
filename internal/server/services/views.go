package services

import (
	"time"

	"github.com/snapvault/snapvault/internal/server/models"
)

// PhotoView is the read projection of a photo returned to API callers.
// DownloadURL is only populated for completed photos, and only by operations
// that issue a fresh download grant.
type PhotoView struct {
	ID           string
	BatchID      string
	FileName     string
	ContentType  string
	SizeBytes    int64
	StorageKey   string
	Status       string
	ErrorMessage string
	Tags         []string
	UploadedAt   time.Time
	DownloadURL  string
}

func newPhotoView(photo *models.Photo, downloadURL string) *PhotoView {
	return &PhotoView{
		ID:           photo.ID,
		BatchID:      photo.BatchID,
		FileName:     photo.FileName,
		ContentType:  photo.ContentType,
		SizeBytes:    photo.SizeBytes,
		StorageKey:   photo.StorageKey,
		Status:       photo.Status,
		ErrorMessage: photo.ErrorMessage,
		Tags:         photo.Tags,
		UploadedAt:   photo.UploadedAt,
		DownloadURL:  downloadURL,
	}
}

// PhotoPage is one page of an owner's gallery plus the total match count
// for pagination.
type PhotoPage struct {
	Photos   []*PhotoView
	Total    int
	Page     int
	PageSize int
}

// BatchView is the read projection of an upload batch.
type BatchView struct {
	ID              string
	TotalFiles      int
	CompletedFiles  int
	SucceededFiles  int
	FailedFiles     int
	Status          string
	ProgressPercent float64
	CreatedAt       time.Time
}

func newBatchView(batch *models.UploadBatch) *BatchView {
	return &BatchView{
		ID:              batch.ID,
		TotalFiles:      batch.TotalFiles,
		CompletedFiles:  batch.CompletedFiles,
		SucceededFiles:  batch.SucceededFiles,
		FailedFiles:     batch.FailedFiles,
		Status:          batch.Status,
		ProgressPercent: batch.ProgressPercent(),
		CreatedAt:       batch.CreatedAt,
	}
}
