package common

import "errors"

var (

	// repository specific errors
	ErrorNotFound = errors.New("not found")

	// service specific errors
	ErrorInternal           = errors.New("internal error")
	ErrorUnauthorized       = errors.New("unauthorized")
	ErrorForbidden          = errors.New("forbidden")
	ErrorValidation         = errors.New("validation error")
	ErrorConflict           = errors.New("conflict")
	ErrorStorageUnavailable = errors.New("storage unavailable")

	// token classification errors; callers must be able to tell an
	// expired token apart from a broken one to drive the refresh flow
	ErrorTokenExpired      = errors.New("token expired")
	ErrorTokenMalformed    = errors.New("token malformed")
	ErrorTokenBadSignature = errors.New("token signature invalid")
	ErrorTokenUnsupported  = errors.New("token unsupported")

	ErrorInvalidAuthHeaderFormat = errors.New("invalid auth header format")

	// account-specific errors
	ErrorEmailAlreadyExists = errors.New("email already exists")
	ErrorInvalidCredentials = errors.New("invalid email/password")
)
