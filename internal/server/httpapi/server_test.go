package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/snapvault/snapvault/internal/common"
	"github.com/snapvault/snapvault/internal/logging"
	"github.com/snapvault/snapvault/internal/server/auth"
	"github.com/snapvault/snapvault/internal/server/repositories/inmemory"
	"github.com/snapvault/snapvault/internal/server/services"
	"github.com/snapvault/snapvault/internal/server/storage"
)

// --- helpers ---

type stubGrantIssuer struct {
	uploadErr error
}

func (f *stubGrantIssuer) GrantUpload(_ context.Context, key, contentType string, ttlMinutes int) (*storage.Grant, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &storage.Grant{URL: "https://storage.test/put/" + key, ExpiresAt: time.Now().Add(15 * time.Minute)}, nil
}

func (f *stubGrantIssuer) GrantDownload(_ context.Context, key string, ttlMinutes int) (*storage.Grant, error) {
	return &storage.Grant{URL: "https://storage.test/get/" + key, ExpiresAt: time.Now().Add(15 * time.Minute)}, nil
}

func (f *stubGrantIssuer) Revoke(context.Context, string) error { return nil }

type testEnv struct {
	router http.Handler
	rm     *inmemory.Manager
	grants *stubGrantIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	rm := inmemory.NewManager()
	logger := logging.NewNopLogger()
	tokens := auth.NewTokenIssuer([]byte("test-secret"), 15*time.Minute, 7*24*time.Hour)
	grants := &stubGrantIssuer{}

	users := services.NewUserService(nil, rm.Runner(), rm, tokens, 7*24*time.Hour, logger)
	uploads := services.NewUploadService(nil, rm.Runner(), rm, grants, logger)
	batches := services.NewBatchService(nil, rm.Runner(), rm, logger)
	tags := services.NewTagService(nil, rm.Runner(), rm, grants, logger)

	handler := NewHandler(users, uploads, batches, tags, logger)
	srv := NewServer(":0", handler, tokens, logger)

	return &testEnv{router: srv.Router(), rm: rm, grants: grants}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// registerAndLogin creates an account through the API and returns the access
// token.
func (e *testEnv) registerAndLogin(t *testing.T, email string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": email, "password": "password123"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": "password123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}
	var pair tokenPairResponse
	decodeResponse(t, rec, &pair)
	return pair.AccessToken
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	decodeResponse(t, rec, &body)
	return body.Error.Code
}

// --- tests ---

func TestHealthz(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "u@example.com", "password": "password123"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d", rec.Code)
	}

	// duplicate registration conflicts
	rec = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "u@example.com", "password": "password123"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "u@example.com", "password": "wrong-password"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "u@example.com", "password": "password123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d", rec.Code)
	}
	var pair tokenPairResponse
	decodeResponse(t, rec, &pair)

	rec = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": pair.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: status %d body %s", rec.Code, rec.Body.String())
	}
	var rotated tokenPairResponse
	decodeResponse(t, rec, &rotated)
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatalf("refresh token not rotated")
	}
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	// no token
	rec := env.do(t, http.MethodGet, "/api/photos/", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", rec.Code)
	}
	if errorCode(t, rec) != CodeUnauthorized {
		t.Fatalf("code: %s", rec.Body.String())
	}

	// garbage token
	rec = env.do(t, http.MethodGet, "/api/photos/", "garbage", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d", rec.Code)
	}

	// refresh token is not an access token
	ti := auth.NewTokenIssuer([]byte("test-secret"), 15*time.Minute, time.Hour)
	refresh, err := ti.IssueRefresh("u1")
	if err != nil {
		t.Fatalf("IssueRefresh error: %v", err)
	}
	rec = env.do(t, http.MethodGet, "/api/photos/", refresh, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh as bearer: status %d", rec.Code)
	}

	// token signed with a different secret
	other := auth.NewTokenIssuer([]byte("other-secret"), 15*time.Minute, time.Hour)
	forged, err := other.IssueAccess("u1", "u@example.com")
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}
	rec = env.do(t, http.MethodGet, "/api/photos/", forged, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged token: status %d", rec.Code)
	}
}

func TestUploadLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.registerAndLogin(t, "u@example.com")

	// initiate
	rec := env.do(t, http.MethodPost, "/api/uploads/", token, map[string]any{
		"filename":    "vacation.jpg",
		"contentType": "image/jpeg",
		"fileSize":    2048,
		"tags":        []string{"Beach"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("initiate: status %d body %s", rec.Code, rec.Body.String())
	}
	var initiated initiateUploadResponse
	decodeResponse(t, rec, &initiated)
	if initiated.PhotoID == "" || initiated.PresignedURL == "" || initiated.S3Key == "" {
		t.Fatalf("incomplete initiate response: %+v", initiated)
	}

	// status is pending
	rec = env.do(t, http.MethodGet, "/api/uploads/"+initiated.PhotoID+"/status", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var status uploadStatusResponse
	decodeResponse(t, rec, &status)
	if status.Status != "pending" {
		t.Fatalf("status: %q", status.Status)
	}

	// complete
	rec = env.do(t, http.MethodPost, "/api/uploads/"+initiated.PhotoID+"/complete", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: status %d body %s", rec.Code, rec.Body.String())
	}

	// completing again conflicts
	rec = env.do(t, http.MethodPost, "/api/uploads/"+initiated.PhotoID+"/complete", token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("double complete: status %d", rec.Code)
	}
	if errorCode(t, rec) != CodeConflict {
		t.Fatalf("code: %s", rec.Body.String())
	}

	// the gallery shows it with a download URL
	rec = env.do(t, http.MethodGet, "/api/photos/?tags=beach", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var page photoPageResponse
	decodeResponse(t, rec, &page)
	if page.Total != 1 || len(page.Photos) != 1 {
		t.Fatalf("page: %+v", page)
	}
	if page.Photos[0].DownloadURL == "" {
		t.Fatalf("missing download URL")
	}

	// delete
	rec = env.do(t, http.MethodDelete, "/api/photos/"+initiated.PhotoID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/uploads/"+initiated.PhotoID+"/status", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status after delete: %d", rec.Code)
	}
}

func TestUploadFailureReport(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.registerAndLogin(t, "u@example.com")

	rec := env.do(t, http.MethodPost, "/api/uploads/", token, map[string]any{
		"filename":    "a.jpg",
		"contentType": "image/jpeg",
		"fileSize":    100,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("initiate: status %d", rec.Code)
	}
	var initiated initiateUploadResponse
	decodeResponse(t, rec, &initiated)

	rec = env.do(t, http.MethodPost, "/api/uploads/"+initiated.PhotoID+"/fail", token, map[string]string{"errorMessage": "connection reset"})
	if rec.Code != http.StatusOK {
		t.Fatalf("fail: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/uploads/"+initiated.PhotoID+"/status", token, nil)
	var status uploadStatusResponse
	decodeResponse(t, rec, &status)
	if status.Status != "failed" || status.ErrorMessage != "connection reset" {
		t.Fatalf("status: %+v", status)
	}
}

func TestUploadValidationErrors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.registerAndLogin(t, "u@example.com")

	// invalid JSON body
	req := httptest.NewRequest(http.MethodPost, "/api/uploads/", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("broken body: status %d", rec.Code)
	}

	// unsupported content type
	rec = env.do(t, http.MethodPost, "/api/uploads/", token, map[string]any{
		"filename":    "doc.pdf",
		"contentType": "application/pdf",
		"fileSize":    100,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad content type: status %d", rec.Code)
	}
	if errorCode(t, rec) != CodeValidationError {
		t.Fatalf("code: %s", rec.Body.String())
	}

	// unknown photo id
	rec = env.do(t, http.MethodPost, "/api/uploads/nope/complete", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown photo: status %d", rec.Code)
	}
}

func TestBatchLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.registerAndLogin(t, "u@example.com")

	rec := env.do(t, http.MethodPost, "/api/batches/", token, map[string]int{"totalFiles": 2})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create batch: status %d body %s", rec.Code, rec.Body.String())
	}
	var batch batchResponse
	decodeResponse(t, rec, &batch)
	if batch.Status != "pending" || batch.TotalFiles != 2 {
		t.Fatalf("batch: %+v", batch)
	}

	// two member uploads
	ids := make([]string, 2)
	for i := range ids {
		rec = env.do(t, http.MethodPost, "/api/uploads/", token, map[string]any{
			"filename":    "a.jpg",
			"contentType": "image/jpeg",
			"fileSize":    100,
			"batchId":     batch.BatchID,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("initiate %d: status %d", i, rec.Code)
		}
		var initiated initiateUploadResponse
		decodeResponse(t, rec, &initiated)
		ids[i] = initiated.PhotoID
	}

	rec = env.do(t, http.MethodPost, "/api/uploads/"+ids[0]+"/complete", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/batches/"+batch.BatchID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("batch status: %d", rec.Code)
	}
	decodeResponse(t, rec, &batch)
	if batch.Status != "uploading" || batch.CompletedFiles != 1 || batch.ProgressPercent != 50 {
		t.Fatalf("batch after 1st settlement: %+v", batch)
	}

	rec = env.do(t, http.MethodPost, "/api/uploads/"+ids[1]+"/fail", token, map[string]string{"errorMessage": "timeout"})
	if rec.Code != http.StatusOK {
		t.Fatalf("fail: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/batches/"+batch.BatchID, token, nil)
	decodeResponse(t, rec, &batch)
	if batch.Status != "completed" || batch.SucceededFiles != 1 || batch.FailedFiles != 1 {
		t.Fatalf("batch final: %+v", batch)
	}

	// aborting a completed batch conflicts
	rec = env.do(t, http.MethodPost, "/api/batches/"+batch.BatchID+"/abort", token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("abort completed: status %d", rec.Code)
	}
}

func TestBatchOwnership(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	owner := env.registerAndLogin(t, "owner@example.com")
	intruder := env.registerAndLogin(t, "intruder@example.com")

	rec := env.do(t, http.MethodPost, "/api/batches/", owner, map[string]int{"totalFiles": 1})
	var batch batchResponse
	decodeResponse(t, rec, &batch)

	rec = env.do(t, http.MethodGet, "/api/batches/"+batch.BatchID, intruder, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign batch read: status %d", rec.Code)
	}
	if errorCode(t, rec) != CodeForbidden {
		t.Fatalf("code: %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/batches/"+batch.BatchID+"/abort", intruder, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign batch abort: status %d", rec.Code)
	}
}

func TestTagEndpoints(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.registerAndLogin(t, "u@example.com")

	rec := env.do(t, http.MethodPost, "/api/uploads/", token, map[string]any{
		"filename":    "a.jpg",
		"contentType": "image/jpeg",
		"fileSize":    100,
		"tags":        []string{"beach"},
	})
	var initiated initiateUploadResponse
	decodeResponse(t, rec, &initiated)

	rec = env.do(t, http.MethodPost, "/api/photos/"+initiated.PhotoID+"/tags", token, map[string][]string{"tags": {"Sunset"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("add tags: status %d body %s", rec.Code, rec.Body.String())
	}
	var photo photoResponse
	decodeResponse(t, rec, &photo)
	if len(photo.Tags) != 2 {
		t.Fatalf("tags after add: %v", photo.Tags)
	}

	rec = env.do(t, http.MethodDelete, "/api/photos/"+initiated.PhotoID+"/tags", token, map[string][]string{"tags": {"beach"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("remove tags: status %d", rec.Code)
	}
	decodeResponse(t, rec, &photo)
	if len(photo.Tags) != 1 || photo.Tags[0] != "sunset" {
		t.Fatalf("tags after remove: %v", photo.Tags)
	}

	rec = env.do(t, http.MethodPut, "/api/photos/"+initiated.PhotoID+"/tags", token, map[string][]string{"tags": {}})
	if rec.Code != http.StatusOK {
		t.Fatalf("replace tags: status %d", rec.Code)
	}
	decodeResponse(t, rec, &photo)
	if len(photo.Tags) != 0 {
		t.Fatalf("tags after clear: %v", photo.Tags)
	}
}

func TestStorageUnavailable(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.registerAndLogin(t, "u@example.com")
	env.grants.uploadErr = common.ErrorStorageUnavailable

	rec := env.do(t, http.MethodPost, "/api/uploads/", token, map[string]any{
		"filename":    "a.jpg",
		"contentType": "image/jpeg",
		"fileSize":    100,
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if errorCode(t, rec) != CodeStorageUnavailable {
		t.Fatalf("code: %s", rec.Body.String())
	}
}
