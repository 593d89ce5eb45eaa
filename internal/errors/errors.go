package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a folio error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrConflict       ErrorCode = "CONFLICT"        // 409
	ErrCycleDetected  ErrorCode = "CYCLE_DETECTED"  // 508
	ErrUpstream       ErrorCode = "UPSTREAM"        // upstream status, 502 on transport failure
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// FolioError represents a structured error with code, status, and details.
type FolioError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *FolioError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for input that failed validation.
// Validation errors are raised before any backend call is made.
func NewInvalidRequest(msg string) *FolioError {
	return &FolioError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a resource the backend does not know.
func NewNotFound(resource string, id any) *FolioError {
	return &FolioError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %v", resource, id),
		Details: map[string]any{"resource": resource, "id": id},
	}
}

// NewUpstream creates an error for a failed backend request.
// status is the upstream HTTP status, or 502 when no response was received.
func NewUpstream(method, path string, status int, msg string) *FolioError {
	if msg == "" {
		msg = fmt.Sprintf("%s %s failed with status %d", method, path, status)
	}
	return &FolioError{
		Code:    ErrUpstream,
		Status:  status,
		Message: msg,
		Details: map[string]any{"method": method, "path": path, "upstream_status": status},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *FolioError {
	return &FolioError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewCycleDetected creates an error for a folder hierarchy that revisits a folder
// along one parent/child path.
func NewCycleDetected(folderID int64, path []int64) *FolioError {
	return &FolioError{
		Code:    ErrCycleDetected,
		Status:  508,
		Message: fmt.Sprintf("folder hierarchy contains a cycle at folder %d", folderID),
		Details: map[string]any{"folder_id": folderID, "path": path},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *FolioError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &FolioError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if err, or any error it wraps, is a FolioError with the given code.
func Is(err error, code ErrorCode) bool {
	var fErr *FolioError
	if stderrors.As(err, &fErr) {
		return fErr.Code == code
	}
	return false
}

// As returns the FolioError in err's chain, wrapping anything else as internal.
func As(err error) *FolioError {
	var fErr *FolioError
	if stderrors.As(err, &fErr) {
		return fErr
	}
	return NewInternal(err)
}
