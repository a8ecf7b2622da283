package fetchapi

import (
	"fmt"
	"strings"

	"github.com/samvad-hq/fetchapi/pkg/httpclient"
)

// FetchError is returned when a response arrives with a status outside 2xx.
// The raw response stays attached so callers can read an error body.
type FetchError struct {
	StatusCode int
	StatusText string
	Response   *httpclient.Response
}

func newFetchError(resp *httpclient.Response) *FetchError {
	return &FetchError{
		StatusCode: resp.StatusCode,
		StatusText: resp.StatusText(),
		Response:   resp,
	}
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return strings.TrimSpace(fmt.Sprintf("fetch api received a bad response: %d %s", e.StatusCode, e.StatusText))
}

// Issue is a single schema violation.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// ValidationError lists every violation a schema reported for a payload.
type ValidationError struct {
	Issues []Issue
	cause  error
}

// NewValidationError builds a ValidationError from issues, keeping cause for errors.Is/As.
func NewValidationError(cause error, issues ...Issue) *ValidationError {
	return &ValidationError{Issues: issues, cause: cause}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		if e.cause != nil {
			return "schema validation failed: " + e.cause.Error()
		}
		return "schema validation failed"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.String())
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

// Unwrap returns the validator's own error.
func (e *ValidationError) Unwrap() error { return e.cause }
