package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/snapvault/snapvault/internal/common"
)

// Machine-readable error codes carried in the response envelope.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeConflict           = "CONFLICT"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// errorBody is the uniform error response: {"error":{"code":"...","message":"..."}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: code, Message: message}})
}

// writeServiceError maps a service-layer error onto the HTTP taxonomy.
// Unclassified errors become a generic 500 with no internal detail in the
// body.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		writeError(w, http.StatusBadRequest, CodeValidationError, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "resource not found")
	case errors.Is(err, common.ErrorForbidden):
		writeError(w, http.StatusForbidden, CodeForbidden, "not the owner of this resource")
	case errors.Is(err, common.ErrorConflict):
		writeError(w, http.StatusConflict, CodeConflict, err.Error())
	case errors.Is(err, common.ErrorStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, CodeStorageUnavailable, "object storage unavailable")
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrorInvalidCredentials),
		errors.Is(err, common.ErrorTokenExpired),
		errors.Is(err, common.ErrorTokenMalformed),
		errors.Is(err, common.ErrorTokenBadSignature),
		errors.Is(err, common.ErrorTokenUnsupported):
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authentication failed")
	case errors.Is(err, common.ErrorEmailAlreadyExists):
		writeError(w, http.StatusConflict, CodeConflict, "email already registered")
	default:
		writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
