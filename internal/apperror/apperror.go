package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the HTTP layer to translate into a status code.
type Kind int

const (
	KindNotFound Kind = iota
	KindForbidden
	KindValidation
	KindStoreUnavailable
)

type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource string) *AppError {
	return &AppError{Kind: KindNotFound, Message: resource + " not found"}
}

func Forbidden(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

func Validation(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

// StoreUnavailable wraps a backing-store failure. The core never retries these;
// the caller decides.
func StoreUnavailable(op string, err error) *AppError {
	return &AppError{Kind: KindStoreUnavailable, Message: "store operation failed: " + op, Err: err}
}

func KindOf(err error) (Kind, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}

// BatchResult reports the outcome of a multi-item operation. Per-item failures
// are recorded, never escalated to a total failure.
type BatchResult struct {
	Deleted int      `json:"deleted"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

func (r *BatchResult) RecordFailure(id string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", id, err))
}
