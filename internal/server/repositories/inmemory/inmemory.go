// Package inmemory provides map-backed implementations of the repository
// interfaces plus a matching transaction runner. It exists for tests: each
// test constructs an isolated Manager, so nothing leaks between cases.
//
// The runner serializes whole "transactions" under one mutex, which gives
// the same single-writer-at-a-time guarantee per batch that the PostgreSQL
// implementation gets from SELECT ... FOR UPDATE.
package inmemory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/snapvault/snapvault/internal/common"
	"github.com/snapvault/snapvault/internal/dbx"
	"github.com/snapvault/snapvault/internal/server/models"
	"github.com/snapvault/snapvault/internal/server/repositories/batches"
	"github.com/snapvault/snapvault/internal/server/repositories/photos"
	"github.com/snapvault/snapvault/internal/server/repositories/refreshtokens"
	"github.com/snapvault/snapvault/internal/server/repositories/users"
)

// Manager implements repomanager.RepositoryManager over in-process maps.
// The DBTX arguments are ignored; state lives in the Manager itself.
type Manager struct {
	mu sync.Mutex

	photoRepo   *PhotoRepository
	batchRepo   *BatchRepository
	userRepo    *UserRepository
	refreshRepo *RefreshTokenRepository
}

func NewManager() *Manager {
	m := &Manager{}
	m.photoRepo = &PhotoRepository{byID: map[string]*models.Photo{}}
	m.batchRepo = &BatchRepository{byID: map[string]*models.UploadBatch{}}
	m.userRepo = &UserRepository{byID: map[string]*models.User{}}
	m.refreshRepo = &RefreshTokenRepository{byToken: map[string]*models.RefreshToken{}}
	return m
}

func (m *Manager) Photos(_ dbx.DBTX) photos.Repository { return m.photoRepo }

func (m *Manager) Batches(_ dbx.DBTX) batches.Repository { return m.batchRepo }

func (m *Manager) Users(_ dbx.DBTX) users.Repository { return m.userRepo }

func (m *Manager) RefreshTokens(_ dbx.DBTX) refreshtokens.Repository { return m.refreshRepo }

func (m *Manager) RunMigrations(context.Context, *sql.DB) error { return nil }

// Runner returns a TxRunner whose transactions serialize on the Manager's
// mutex. The DBTX handed to fn is nil; the in-memory repositories never
// touch it.
func (m *Manager) Runner() dbx.TxRunner { return &mutexTxRunner{mu: &m.mu} }

type mutexTxRunner struct {
	mu *sync.Mutex
}

func (r *mutexTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, nil)
}

// PhotoRepository is the map-backed photos.Repository.
type PhotoRepository struct {
	mu   sync.RWMutex
	byID map[string]*models.Photo
}

func clonePhoto(p *models.Photo) *models.Photo {
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	return &c
}

func (r *PhotoRepository) Create(_ context.Context, photo *models.Photo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[photo.ID] = clonePhoto(photo)
	return nil
}

func (r *PhotoRepository) GetByID(_ context.Context, id string) (*models.Photo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clonePhoto(p), nil
}

func (r *PhotoRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Photo, error) {
	// exclusivity comes from the Manager's transaction mutex
	return r.GetByID(ctx, id)
}

func (r *PhotoRepository) UpdateStatus(_ context.Context, photo *models.Photo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[photo.ID]
	if !ok {
		return common.ErrorNotFound
	}
	stored.Status = photo.Status
	stored.ErrorMessage = photo.ErrorMessage
	return nil
}

func (r *PhotoRepository) ReplaceTags(_ context.Context, photoID string, tags []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[photoID]
	if !ok {
		return common.ErrorNotFound
	}
	stored.Tags = append([]string(nil), tags...)
	return nil
}

func (r *PhotoRepository) ListByOwner(_ context.Context, userID string, tags []string, limit, offset int) ([]*models.Photo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := r.matchLocked(userID, tags)
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	result := make([]*models.Photo, 0, end-offset)
	for _, p := range matched[offset:end] {
		result = append(result, clonePhoto(p))
	}
	return result, nil
}

func (r *PhotoRepository) CountByOwner(_ context.Context, userID string, tags []string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matchLocked(userID, tags)), nil
}

func (r *PhotoRepository) matchLocked(userID string, tags []string) []*models.Photo {
	var matched []*models.Photo
	for _, p := range r.byID {
		if p.UserID != userID {
			continue
		}
		if !hasAllTags(p, tags) {
			continue
		}
		matched = append(matched, p)
	}
	// newest first, id as tiebreaker, mirroring the SQL ORDER BY
	sortPhotos(matched)
	return matched
}

func hasAllTags(p *models.Photo, tags []string) bool {
	for _, want := range tags {
		found := false
		for _, have := range p.Tags {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortPhotos(ps []*models.Photo) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].UploadedAt.Equal(ps[j].UploadedAt) {
			return ps[i].UploadedAt.After(ps[j].UploadedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}

func (r *PhotoRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.byID, id)
	return nil
}

// BatchRepository is the map-backed batches.Repository.
type BatchRepository struct {
	mu   sync.RWMutex
	byID map[string]*models.UploadBatch
}

func (r *BatchRepository) Create(_ context.Context, batch *models.UploadBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *batch
	r.byID[batch.ID] = &c
	return nil
}

func (r *BatchRepository) GetByID(_ context.Context, id string) (*models.UploadBatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *b
	return &c, nil
}

func (r *BatchRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.UploadBatch, error) {
	return r.GetByID(ctx, id)
}

func (r *BatchRepository) Update(_ context.Context, batch *models.UploadBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[batch.ID]; !ok {
		return common.ErrorNotFound
	}
	c := *batch
	r.byID[batch.ID] = &c
	return nil
}

// UserRepository is the map-backed users.Repository.
type UserRepository struct {
	mu   sync.RWMutex
	byID map[string]*models.User
}

func (r *UserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == user.Email {
			return common.ErrorEmailAlreadyExists
		}
	}
	c := *user
	r.byID[user.ID] = &c
	return nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

// RefreshTokenRepository is the map-backed refreshtokens.Repository.
type RefreshTokenRepository struct {
	mu      sync.RWMutex
	byToken map[string]*models.RefreshToken
}

func (r *RefreshTokenRepository) Create(_ context.Context, userID string, token string, validity time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byToken[token] = &models.RefreshToken{
		UserID:  userID,
		Token:   token,
		Expires: time.Now().Add(validity),
	}
	return nil
}

func (r *RefreshTokenRepository) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byToken[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *t
	return &c, nil
}

func (r *RefreshTokenRepository) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byToken, token)
	return nil
}
