// Package errors provides the standardized error taxonomy for the pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeTransientCollaborator ErrorCode = "TRANSIENT_COLLABORATOR_ERROR"
	ErrCodeValidationFailed      ErrorCode = "VALIDATION_FAILED"
	ErrCodePartialBatchFailure   ErrorCode = "PARTIAL_BATCH_FAILURE"
	ErrCodeInvalidTransition     ErrorCode = "INVALID_TRANSITION"
	ErrCodeIndexNotReady         ErrorCode = "INDEX_NOT_READY"
	ErrCodeStageTimeout          ErrorCode = "STAGE_TIMEOUT"

	ErrCodeDiscoveryFailed ErrorCode = "DISCOVERY_FAILED"
	ErrCodeEmbeddingFailed ErrorCode = "EMBEDDING_FAILED"
	ErrCodeScoringFailed   ErrorCode = "SCORING_FAILED"
	ErrCodeOutreachFailed  ErrorCode = "OUTREACH_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// CodeOf extracts the ErrorCode from err, or empty when err is not a
// StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsTransient reports whether err should be retried by the caller.
func IsTransient(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// ==========================
// Error Constructors
// ==========================

// NewTransientCollaboratorError wraps a network/provider hiccup. Retried by
// the caller with backoff; does not corrupt state.
func NewTransientCollaboratorError(collaborator string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransientCollaborator,
		Message:   fmt.Sprintf("Transient error from collaborator '%s'", collaborator),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError aborts the run at INIT. Never retried.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPartialBatchFailureError records item-level failures inside an otherwise
// successful batch. Reported in the run summary, never aborts the run.
func NewPartialBatchFailureError(failed, total int, details string) *StandardError {
	return &StandardError{
		Code:    ErrCodePartialBatchFailure,
		Message: fmt.Sprintf("%d of %d batch items failed", failed, total),
		Details: details,
		Metadata: map[string]interface{}{
			"failedItems": failed,
			"totalItems":  total,
		},
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError rejects an illegal application-stage change.
func NewInvalidTransitionError(jobID, from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Illegal application stage transition",
		Details:   fmt.Sprintf("jobId: %s, from: %s, to: %s", jobID, from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexNotReadyError marks a query issued before any successful rebuild.
// Treated as a programming/ordering error, not retried.
func NewIndexNotReadyError() *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexNotReady,
		Message:   "Embedding index queried before first successful rebuild",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStageTimeoutError records a stage exceeding its deadline. Whether the
// run continues with partial output or fails is decided by the orchestrator
// policy, not here.
func NewStageTimeoutError(stage string, timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeStageTimeout,
		Message:   fmt.Sprintf("Stage '%s' exceeded timeout", stage),
		Details:   fmt.Sprintf("timeout: %s", timeout),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDiscoveryFailedError creates a permanent discovery error.
func NewDiscoveryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDiscoveryFailed,
		Message:   "Job discovery failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmbeddingFailedError creates a retryable embedding provider error.
func NewEmbeddingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmbeddingFailed,
		Message:   "Embedding provider error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewScoringFailedError marks a single job that could not be scored.
func NewScoringFailedError(jobID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeScoringFailed,
		Message:   "Job scoring failed",
		Details:   fmt.Sprintf("jobId: %s, error: %s", jobID, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOutreachFailedError creates a retryable outreach drafting error.
func NewOutreachFailedError(jobID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOutreachFailed,
		Message:   "Outreach drafting failed",
		Details:   fmt.Sprintf("jobId: %s, error: %s", jobID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(query string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("query: %s, error: %s", query, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable listing search error.
func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Listing search query error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeTransientCollaborator,
		ErrCodeEmbeddingFailed,
		ErrCodeOutreachFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeSearchQueryFailed:
		return 3 // Retryable technical errors

	default:
		return 0 // Validation, ordering and item-level errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}
