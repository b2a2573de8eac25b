// Package service implements the application logic between the HTTP
// layer and storage. Services accept narrow store interfaces so
// handlers and tests can swap implementations.
package service

import (
	"errors"

	"github.com/aksjeradar/internal/storage"
	"github.com/aksjeradar/internal/types"
)

// invalidInput builds a validation error.
func invalidInput(message string) *types.ServiceError {
	return types.NewServiceError(types.ErrCodeInvalidInput, message)
}

// notFound builds a not-found error.
func notFound(message string) *types.ServiceError {
	return types.NewServiceError(types.ErrCodeNotFound, message)
}

// conflict builds a conflict error.
func conflict(message string) *types.ServiceError {
	return types.NewServiceError(types.ErrCodeConflict, message)
}

// unauthorized builds an authentication error.
func unauthorized(message string) *types.ServiceError {
	return types.NewServiceError(types.ErrCodeUnauthorized, message)
}

// internal wraps an unexpected error. The cause is not exposed to
// clients; callers log it.
func internal(message string) *types.ServiceError {
	return types.NewServiceError(types.ErrCodeInternalError, message)
}

// mapStorageErr translates storage sentinels into service errors.
func mapStorageErr(err error, notFoundMsg, conflictMsg string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return notFound(notFoundMsg)
	case errors.Is(err, storage.ErrDuplicate):
		return conflict(conflictMsg)
	default:
		return err
	}
}
