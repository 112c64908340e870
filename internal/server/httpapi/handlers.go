// Package httpapi exposes the REST surface: upload initiation and
// settlement reports, batch progress, the gallery, tag editing, and the
// auth endpoints.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/snapvault/snapvault/internal/logging"
	"github.com/snapvault/snapvault/internal/server/services"
)

// Handler bundles the services behind the REST endpoints.
type Handler struct {
	users   *services.UserService
	uploads *services.UploadService
	batches *services.BatchService
	tags    *services.TagService
	logger  logging.Logger
}

// NewHandler constructs a Handler.
func NewHandler(users *services.UserService, uploads *services.UploadService, batches *services.BatchService, tags *services.TagService, logger logging.Logger) *Handler {
	return &Handler{
		users:   users,
		uploads: uploads,
		batches: batches,
		tags:    tags,
		logger:  logger.With("module", "httpapi"),
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "invalid request body")
		return false
	}
	return true
}

// --- auth ---

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := h.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"userId": user.ID, "email": user.Email})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pair, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pair, err := h.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// --- uploads ---

func (h *Handler) initiateUpload(w http.ResponseWriter, r *http.Request) {
	var req initiateUploadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.uploads.Initiate(r.Context(), UserID(r.Context()), req.Filename, req.ContentType, req.FileSize, req.Tags, req.BatchID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, initiateUploadResponse{
		PhotoID:        result.PhotoID,
		PresignedURL:   result.UploadURL,
		S3Key:          result.StorageKey,
		ExpirationTime: result.ExpiresAt,
	})
}

func (h *Handler) uploadStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.uploads.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadStatusResponse{
		PhotoID:      status.PhotoID,
		Status:       status.Status,
		UploadDate:   status.UploadedAt,
		ErrorMessage: status.ErrorMessage,
	})
}

func (h *Handler) completeUpload(w http.ResponseWriter, r *http.Request) {
	if err := h.uploads.ReportCompletion(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (h *Handler) failUpload(w http.ResponseWriter, r *http.Request) {
	var req failUploadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.uploads.ReportFailure(r.Context(), chi.URLParam(r, "id"), req.ErrorMessage); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "failed"})
}

// --- batches ---

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := h.batches.Create(r.Context(), UserID(r.Context()), req.TotalFiles)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchResponse(view))
}

func (h *Handler) batchStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.batches.Get(r.Context(), chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(view))
}

func (h *Handler) abortBatch(w http.ResponseWriter, r *http.Request) {
	view, err := h.batches.Abort(r.Context(), chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(view))
}

// --- photos / gallery ---

func (h *Handler) listPhotos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	var tags []string
	if raw := q.Get("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	result, err := h.uploads.List(r.Context(), UserID(r.Context()), tags, page, pageSize)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	photos := make([]*photoResponse, 0, len(result.Photos))
	for _, v := range result.Photos {
		photos = append(photos, toPhotoResponse(v))
	}
	writeJSON(w, http.StatusOK, photoPageResponse{
		Photos:   photos,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	})
}

func (h *Handler) deletePhoto(w http.ResponseWriter, r *http.Request) {
	if err := h.uploads.Delete(r.Context(), chi.URLParam(r, "id"), UserID(r.Context())); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) editTags(op services.TagOperation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tagsRequest
		if !decodeBody(w, r, &req) {
			return
		}
		view, err := h.tags.Apply(r.Context(), chi.URLParam(r, "id"), UserID(r.Context()), req.Tags, op)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPhotoResponse(view))
	}
}
