package httpapi

import (
	"time"

	"github.com/snapvault/snapvault/internal/server/services"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type initiateUploadRequest struct {
	Filename    string   `json:"filename"`
	ContentType string   `json:"contentType"`
	FileSize    int64    `json:"fileSize"`
	Tags        []string `json:"tags"`
	BatchID     string   `json:"batchId,omitempty"`
}

type initiateUploadResponse struct {
	PhotoID        string    `json:"photoId"`
	PresignedURL   string    `json:"presignedUrl"`
	S3Key          string    `json:"s3Key"`
	ExpirationTime time.Time `json:"expirationTime"`
}

type uploadStatusResponse struct {
	PhotoID      string    `json:"photoId"`
	Status       string    `json:"status"`
	UploadDate   time.Time `json:"uploadDate"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

type failUploadRequest struct {
	ErrorMessage string `json:"errorMessage"`
}

type createBatchRequest struct {
	TotalFiles int `json:"totalFiles"`
}

type batchResponse struct {
	BatchID         string    `json:"batchId"`
	TotalFiles      int       `json:"totalFiles"`
	CompletedFiles  int       `json:"completedFiles"`
	SucceededFiles  int       `json:"succeededFiles"`
	FailedFiles     int       `json:"failedFiles"`
	Status          string    `json:"status"`
	ProgressPercent float64   `json:"progressPercent"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toBatchResponse(v *services.BatchView) *batchResponse {
	return &batchResponse{
		BatchID:         v.ID,
		TotalFiles:      v.TotalFiles,
		CompletedFiles:  v.CompletedFiles,
		SucceededFiles:  v.SucceededFiles,
		FailedFiles:     v.FailedFiles,
		Status:          v.Status,
		ProgressPercent: v.ProgressPercent,
		CreatedAt:       v.CreatedAt,
	}
}

type tagsRequest struct {
	Tags []string `json:"tags"`
}

type photoResponse struct {
	PhotoID      string    `json:"photoId"`
	BatchID      string    `json:"batchId,omitempty"`
	Filename     string    `json:"filename"`
	ContentType  string    `json:"contentType"`
	FileSize     int64     `json:"fileSize"`
	S3Key        string    `json:"s3Key"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Tags         []string  `json:"tags"`
	UploadDate   time.Time `json:"uploadDate"`
	DownloadURL  string    `json:"downloadUrl,omitempty"`
}

func toPhotoResponse(v *services.PhotoView) *photoResponse {
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	return &photoResponse{
		PhotoID:      v.ID,
		BatchID:      v.BatchID,
		Filename:     v.FileName,
		ContentType:  v.ContentType,
		FileSize:     v.SizeBytes,
		S3Key:        v.StorageKey,
		Status:       v.Status,
		ErrorMessage: v.ErrorMessage,
		Tags:         tags,
		UploadDate:   v.UploadedAt,
		DownloadURL:  v.DownloadURL,
	}
}

type photoPageResponse struct {
	Photos   []*photoResponse `json:"photos"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}
