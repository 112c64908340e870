// Package models defines server-side data models persisted in the database.
package models

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/snapvault/snapvault/internal/common"
)

// Photo lifecycle statuses. There is no server-side "uploading" status for a
// single photo: between "pending" and a terminal status the bytes travel
// directly from the client to object storage, so the server cannot observe
// the transfer. Batches do track an uploading phase (see UploadBatch).
const (
	PhotoStatusPending   = "pending"
	PhotoStatusCompleted = "completed"
	PhotoStatusFailed    = "failed"
)

// Validation limits for photo metadata.
const (
	MaxFileNameLength   = 500
	MaxStorageKeyLength = 1000
	MaxTagLength        = 100
	MaxTagsPerPhoto     = 50
	MinFileSizeBytes    = 1
	MaxFileSizeBytes    = 50 * 1024 * 1024
)

// allowedImageFormats lists the accepted content-type suffixes
// ("image/jpeg" -> "jpeg"). Matching is case-insensitive.
var allowedImageFormats = map[string]struct{}{
	"jpeg": {},
	"jpg":  {},
	"png":  {},
	"gif":  {},
	"webp": {},
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Photo is the durable per-file upload record. FileName and StorageKey are
// assigned once at construction and never change; Status, ErrorMessage and
// Tags mutate over the record's life.
type Photo struct {
	ID           string
	UserID       string
	BatchID      string // empty for standalone uploads
	FileName     string
	ContentType  string
	SizeBytes    int64
	StorageKey   string
	Status       string
	ErrorMessage string
	Tags         []string
	UploadedAt   time.Time
}

// NewPhoto validates the caller-supplied metadata and constructs a pending
// photo with a generated id and a deterministic storage key.
func NewPhoto(userID, fileName, contentType string, sizeBytes int64, tags []string, batchID string) (*Photo, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, fmt.Errorf("%w: file name must not be empty", common.ErrorValidation)
	}
	if len(fileName) > MaxFileNameLength {
		return nil, fmt.Errorf("%w: file name exceeds %d characters", common.ErrorValidation, MaxFileNameLength)
	}

	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if !IsAllowedContentType(contentType) {
		return nil, fmt.Errorf("%w: unsupported content type %q", common.ErrorValidation, contentType)
	}

	if sizeBytes < MinFileSizeBytes || sizeBytes > MaxFileSizeBytes {
		return nil, fmt.Errorf("%w: file size must be between %d and %d bytes", common.ErrorValidation, MinFileSizeBytes, MaxFileSizeBytes)
	}

	normalized, err := NormalizeTags(tags)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	id := uuid.NewString()

	key := BuildStorageKey(userID, id, fileName, now)
	if len(key) > MaxStorageKeyLength {
		return nil, fmt.Errorf("%w: storage key exceeds %d characters", common.ErrorValidation, MaxStorageKeyLength)
	}

	return &Photo{
		ID:          id,
		UserID:      userID,
		BatchID:     batchID,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
		StorageKey:  key,
		Status:      PhotoStatusPending,
		Tags:        normalized,
		UploadedAt:  now,
	}, nil
}

// IsAllowedContentType reports whether ct names one of the supported image
// formats. Both the full MIME form ("image/png") and the bare suffix ("png")
// are accepted, case-insensitively.
func IsAllowedContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	ct = strings.TrimPrefix(ct, "image/")
	_, ok := allowedImageFormats[ct]
	return ok
}

// SanitizeFileName replaces every character outside [A-Za-z0-9._-] with '_'
// so the name is safe to embed in an object-storage key.
func SanitizeFileName(name string) string {
	return unsafeKeyChars.ReplaceAllString(name, "_")
}

// BuildStorageKey derives the object key {owner}/{year}/{month}/{id}-{sanitizedName}.
func BuildStorageKey(userID, photoID, fileName string, t time.Time) string {
	return fmt.Sprintf("%s/%d/%02d/%s-%s", userID, t.Year(), int(t.Month()), photoID, SanitizeFileName(fileName))
}

// IsTerminal reports whether the photo has reached a terminal status.
func (p *Photo) IsTerminal() bool {
	return p.Status == PhotoStatusCompleted || p.Status == PhotoStatusFailed
}

// MarkCompleted transitions the photo to "completed". Terminal photos reject
// the transition with a conflict.
func (p *Photo) MarkCompleted() error {
	if p.IsTerminal() {
		return fmt.Errorf("%w: photo %s already %s", common.ErrorConflict, p.ID, p.Status)
	}
	p.Status = PhotoStatusCompleted
	p.ErrorMessage = ""
	return nil
}

// MarkFailed transitions the photo to "failed" and records the reason.
// Marking an already failed photo again is a no-op; a completed photo
// rejects the transition with a conflict.
func (p *Photo) MarkFailed(reason string) error {
	if p.Status == PhotoStatusFailed {
		return nil
	}
	if p.Status == PhotoStatusCompleted {
		return fmt.Errorf("%w: photo %s already completed", common.ErrorConflict, p.ID)
	}
	p.Status = PhotoStatusFailed
	p.ErrorMessage = reason
	return nil
}

// NormalizeTag trims and lowercases a tag, enforcing the length limit.
func NormalizeTag(raw string) (string, error) {
	tag := strings.ToLower(strings.TrimSpace(raw))
	if tag == "" {
		return "", fmt.Errorf("%w: tag must not be empty", common.ErrorValidation)
	}
	if len(tag) > MaxTagLength {
		return "", fmt.Errorf("%w: tag exceeds %d characters", common.ErrorValidation, MaxTagLength)
	}
	return tag, nil
}

// NormalizeTags normalizes every tag, collapses duplicates and returns the
// result sorted, so two equal sets always compare equal.
func NormalizeTags(raw []string) ([]string, error) {
	set := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		tag, err := NormalizeTag(r)
		if err != nil {
			return nil, err
		}
		set[tag] = struct{}{}
	}
	if len(set) > MaxTagsPerPhoto {
		return nil, fmt.Errorf("%w: at most %d tags per photo", common.ErrorValidation, MaxTagsPerPhoto)
	}
	result := make([]string, 0, len(set))
	for tag := range set {
		result = append(result, tag)
	}
	sort.Strings(result)
	return result, nil
}

// HasTag reports whether the photo carries the (normalized form of the) tag.
func (p *Photo) HasTag(raw string) bool {
	tag, err := NormalizeTag(raw)
	if err != nil {
		return false
	}
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTags unions the given tags into the photo's tag set. Tags are metadata,
// not lifecycle: mutation is allowed in any status, terminal ones included.
func (p *Photo) AddTags(raw []string) error {
	incoming, err := NormalizeTags(raw)
	if err != nil {
		return err
	}
	merged, err := NormalizeTags(append(append([]string{}, p.Tags...), incoming...))
	if err != nil {
		return err
	}
	p.Tags = merged
	return nil
}

// RemoveTags removes the given tags from the photo's tag set. Removing an
// absent tag has no effect.
func (p *Photo) RemoveTags(raw []string) error {
	incoming, err := NormalizeTags(raw)
	if err != nil {
		return err
	}
	drop := make(map[string]struct{}, len(incoming))
	for _, t := range incoming {
		drop[t] = struct{}{}
	}
	kept := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		if _, ok := drop[t]; !ok {
			kept = append(kept, t)
		}
	}
	p.Tags = kept
	return nil
}

// ReplaceTags overwrites the photo's tag set with the given one.
func (p *Photo) ReplaceTags(raw []string) error {
	incoming, err := NormalizeTags(raw)
	if err != nil {
		return err
	}
	p.Tags = incoming
	return nil
}
