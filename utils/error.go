package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrSyncInProgress is returned when another sync of the same entity type holds the lock.
var ErrSyncInProgress = errors.New("a sync for this entity type is already running")

// ValidationError is malformed or out-of-range input. Nothing was read or written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// MissingVehicleError lists vehicle codes referenced by ERP invoice rows that are
// not registered locally. The cargo check stops before diffing when it occurs.
type MissingVehicleError struct {
	Codes []string
}

func (e *MissingVehicleError) Error() string {
	return "vehicles not registered: " + strings.Join(e.Codes, ", ")
}

// ConflictUnresolvedError is returned when a sync request carries a conflict or
// reactivation item without an explicit operator decision.
type ConflictUnresolvedError struct {
	Entity string
	Key    string
}

func (e *ConflictUnresolvedError) Error() string {
	return fmt.Sprintf("%s %q has no decision", e.Entity, e.Key)
}

// PersistenceError wraps a local store failure. Op is "read", "insert", "update"...
// Record names the record being written when the failure happened, if any.
type PersistenceError struct {
	Op     string
	Record string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.Record == "" {
		return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s of %s failed: %v", e.Op, e.Record, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// SourceUnavailableError wraps a failure reading from the ERP.
type SourceUnavailableError struct {
	Err error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("erp source unavailable: %v", e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// StatusCodeFor maps the error taxonomy onto HTTP status codes.
func StatusCodeFor(err error) int {
	var (
		ve *ValidationError
		cu *ConflictUnresolvedError
		su *SourceUnavailableError
		mv *MissingVehicleError
		pe *PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &cu), errors.As(err, &mv):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrSyncInProgress):
		return http.StatusConflict
	case errors.As(err, &su):
		return http.StatusBadGateway
	case errors.As(err, &pe):
		return http.StatusInternalServerError
	case errors.Is(err, ErrorRecordNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as {"error": ...} with the status StatusCodeFor picks.
func RespondError(c *gin.Context, err error) {
	c.JSON(StatusCodeFor(err), gin.H{"error": err.Error()})
}
