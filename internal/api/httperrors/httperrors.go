package httperrors

import (
	"fmt"
	"net/http"

	"github.com/escion333/autoUSD-sub000/internal/types"
)

// HTTPError wraps a public error body so handlers can return it directly;
// the server's error handler renders it as JSON.
type HTTPError struct {
	types.PublicHTTPError
	Internal error
}

// NewHTTPError creates a renderable HTTP error.
func NewHTTPError(code int, errorType, title string) *HTTPError {
	return &HTTPError{
		PublicHTTPError: types.PublicHTTPError{
			Code:  code,
			Type:  errorType,
			Title: title,
		},
	}
}

// NewHTTPErrorWithDetail creates a renderable HTTP error with a detail
// string safe to expose to callers.
func NewHTTPErrorWithDetail(code int, errorType, title, detail string) *HTTPError {
	e := NewHTTPError(code, errorType, title)
	e.Detail = detail

	return e
}

func (e *HTTPError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("HTTPError %d (%s): %s: %v", e.Code, e.Type, e.Title, e.Internal)
	}

	return fmt.Sprintf("HTTPError %d (%s): %s", e.Code, e.Type, e.Title)
}

// WithInternal attaches the causing error for logging without exposing it.
func (e *HTTPError) WithInternal(err error) *HTTPError {
	c := *e
	c.Internal = err

	return &c
}

var (
	ErrBadRequestInvalidAmount = NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeValidation, "Amount must be a positive decimal string.")
	ErrBadRequestInvalidBody   = NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeValidation, "Request body is invalid.")
	ErrForbiddenRole           = NewHTTPError(http.StatusForbidden, types.PublicHTTPErrorTypeForbidden, "Caller role is not permitted to perform this operation.")
)
