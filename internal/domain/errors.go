package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches errors by code so wrapped instances compare against sentinels.
func (e *DomainError) Is(target error) bool {
	other, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == other.Code && e.Message == other.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeEmbeddingUnavailable = "EMBEDDING_UNAVAILABLE"
	ErrCodeRetrievalDegraded    = "RETRIEVAL_DEGRADED"
	ErrCodeGenerationFailed     = "GENERATION_FAILED"
	ErrCodeTenantIsolation      = "TENANT_ISOLATION_VIOLATION"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// Input validation errors
var (
	ErrEmptyQuestion = NewDomainError(ErrCodeInvalidInput, "question must not be empty")
	ErrEmptyDocument = NewDomainError(ErrCodeInvalidInput, "document text must not be empty")
	ErrPartialTenant = NewDomainError(ErrCodeInvalidInput, "tenant requires both notebook id and user id")
)

// Retrieval and embedding errors
var (
	ErrEmbeddingUnavailable = NewDomainError(ErrCodeEmbeddingUnavailable, "embedding model unavailable")
	ErrDimensionMismatch    = NewDomainError(ErrCodeInvalidInput, "embedding dimensions do not match")
	ErrChunkNotFound        = NewDomainError(ErrCodeNotFound, "chunk not found")
	ErrSourceNotArchived    = NewDomainError(ErrCodeNotFound, "source document was not archived")
)

// Generation errors
var (
	ErrGenerationFailed = NewDomainError(ErrCodeGenerationFailed, "language model call failed")
)

// ErrTenantIsolation signals that a search returned a chunk outside the
// requested tenant. This is an internal invariant failure, never filtered
// away silently.
var ErrTenantIsolation = NewDomainError(ErrCodeTenantIsolation, "search returned chunk from another tenant")
