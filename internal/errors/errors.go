// Package errors defines the error taxonomy shared by the engine, the store
// and the HTTP surface. Errors are built with cockroachdb/errors and marked
// with one of the sentinels below so callers can classify them with Is.
package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

var (
	ErrValidation = newInternal(ErrCodeValidation, "validation error")
	ErrNotFound   = newInternal(ErrCodeNotFound, "resource not found")
	ErrConflict   = newInternal(ErrCodeConflict, "resource already exists")
	ErrIntegrity  = newInternal(ErrCodeIntegrity, "integrity violation")
	ErrDatabase   = newInternal(ErrCodeDatabase, "database error")
	ErrSystem     = newInternal(ErrCodeSystem, "system error")

	// maps errors to http status codes
	statusCodeMap = map[error]int{
		ErrValidation: http.StatusBadRequest,
		ErrNotFound:   http.StatusNotFound,
		ErrConflict:   http.StatusConflict,
		ErrIntegrity:  http.StatusUnprocessableEntity,
		ErrDatabase:   http.StatusInternalServerError,
		ErrSystem:     http.StatusInternalServerError,
	}
)

const (
	ErrCodeValidation = "validation_error"
	ErrCodeNotFound   = "not_found"
	ErrCodeConflict   = "conflict"
	ErrCodeIntegrity  = "integrity_error"
	ErrCodeDatabase   = "database_error"
	ErrCodeSystem     = "system_error"
)

// InternalError is a sentinel carrying a machine-readable code.
type InternalError struct {
	Code    string
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches sentinels by code.
func (e *InternalError) Is(target error) bool {
	t, ok := target.(*InternalError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newInternal(code, message string) *InternalError {
	return &InternalError{Code: code, Message: message}
}

// UnknownIDsError reports every id of a bulk request that does not exist.
type UnknownIDsError struct {
	Entity string
	IDs    []int64
}

func (e *UnknownIDsError) Error() string {
	return fmt.Sprintf("some %s do not exist: %v", e.Entity, e.IDs)
}

// NewUnknownIDs returns an UnknownIDsError marked as ErrNotFound.
func NewUnknownIDs(entity string, ids []int64) error {
	return errors.Mark(&UnknownIDsError{Entity: entity, IDs: ids}, ErrNotFound)
}

// UnknownIDs extracts the unknown ids carried by err, if any.
func UnknownIDs(err error) ([]int64, bool) {
	var target *UnknownIDsError
	if errors.As(err, &target) {
		return target.IDs, true
	}
	return nil, false
}

func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsIntegrity checks if an error is an integrity error
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

// Code returns the code of the first sentinel err is marked with.
func Code(err error) string {
	for sentinel := range statusCodeMap {
		if errors.Is(err, sentinel) {
			return sentinel.(*InternalError).Code
		}
	}
	return ErrCodeSystem
}

// HTTPStatus maps err to an HTTP status code. Unclassified errors are 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for sentinel, status := range statusCodeMap {
		if errors.Is(err, sentinel) {
			return status
		}
	}
	return http.StatusInternalServerError
}
