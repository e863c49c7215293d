// Package errors defines the error taxonomy shared by the ingestion and
// generation pipeline, and how each kind surfaces over HTTP.
package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/ory/herodot"
)

// Error types. Each sentinel below carries one of these.
const (
	TypeDocumentOpen  = "DOCUMENT_OPEN"
	TypeNotIngested   = "NOT_INGESTED"
	TypeConfiguration = "CONFIGURATION"
	TypeModelOutput   = "MODEL_OUTPUT"
	TypeIndexQuery    = "INDEX_QUERY"
	TypeEmbedding     = "EMBEDDING"
)

// ErrDocumentOpen indicates an empty or unparsable input document
var ErrDocumentOpen = &StandardError{
	Type:    TypeDocumentOpen,
	Message: "Document could not be opened",
}

// ErrNotIngested indicates an operation on an unknown collection key
var ErrNotIngested = &StandardError{
	Type:    TypeNotIngested,
	Message: "Document has not been ingested",
}

// ErrConfiguration indicates a missing prompt template or credential
var ErrConfiguration = &StandardError{
	Type:    TypeConfiguration,
	Message: "Invalid configuration",
}

// ErrModelOutput indicates a model response that does not fit the target schema
var ErrModelOutput = &StandardError{
	Type:    TypeModelOutput,
	Message: "Model output does not match schema",
}

// ErrIndexQuery indicates a failed call to the vector index backend
var ErrIndexQuery = &StandardError{
	Type:    TypeIndexQuery,
	Message: "Vector index query failed",
}

// ErrEmbedding indicates a failed embedding computation for one item
var ErrEmbedding = &StandardError{
	Type:    TypeEmbedding,
	Message: "Embedding computation failed",
}

// StandardError represents a standard application error
type StandardError struct {
	Type    string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *StandardError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *StandardError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a StandardError of the same type, so that
// errors.Is(err, ErrNotIngested) matches any derived instance.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithCause adds a cause to the error
func (e *StandardError) WithCause(cause error) *StandardError {
	return &StandardError{
		Type:    e.Type,
		Message: e.Message,
		Cause:   cause,
	}
}

// WithMessage returns a copy of the error with a more specific message
func (e *StandardError) WithMessage(message string) *StandardError {
	return &StandardError{
		Type:    e.Type,
		Message: message,
		Cause:   e.Cause,
	}
}

// TypeOf returns the Type of the first StandardError in err's chain, or ""
func TypeOf(err error) string {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Type
	}
	return ""
}

// HTTPStatus maps an error to the status code an HTTP front end should use
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case TypeDocumentOpen:
		return http.StatusBadRequest
	case TypeNotIngested:
		return http.StatusNotFound
	case TypeModelOutput, TypeIndexQuery, TypeEmbedding:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Handler converts pipeline errors into herodot errors for the HTTP front end
type Handler struct {
	// Detailed exposes the underlying cause in the error reason
	Detailed bool
}

// NewHandler creates a new error handler. detailed is typically false in
// production or when security.error_mode is "secure".
func NewHandler(detailed bool) *Handler {
	return &Handler{Detailed: detailed}
}

// Convert returns the herodot representation of err
func (h *Handler) Convert(err error) *herodot.DefaultError {
	code := HTTPStatus(err)

	var se *StandardError
	message := "An internal error occurred"
	if stderrors.As(err, &se) {
		message = se.Message
	}

	out := &herodot.DefaultError{
		CodeField:   code,
		StatusField: http.StatusText(code),
		ErrorField:  message,
	}
	if h.Detailed {
		out.ReasonField = err.Error()
	}
	return out
}
