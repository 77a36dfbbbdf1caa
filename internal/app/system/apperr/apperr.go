// Package apperr defines the error kinds returned by birdbook services.
//
// Services wrap these sentinels with context (fmt.Errorf("...: %w", err)) and
// callers test them with errors.Is. HTTPStatus maps a kind onto a response
// status and a stable code for the JSON error envelope.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound means a referenced entity does not exist. Failed calls to
	// another service are reported as ErrNotFound as well.
	ErrNotFound = errors.New("not found")

	ErrAlreadyRequested = errors.New("Request already sent.")
	ErrAlreadyMember    = errors.New("User is already a member.")
	ErrNoRequestFound   = errors.New("No join request from this user.")
	ErrNotAMember       = errors.New("User is not a member of this group")

	// ErrNotFoundOrUnauthorized is returned by comment update/delete. The
	// lookup only matches comments authored by the caller, so a missing
	// comment and someone else's comment are indistinguishable.
	ErrNotFoundOrUnauthorized = errors.New("Comment not found or unauthorized")

	ErrDuplicateUsername = errors.New("Username already exists")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// ValidationError reports a rejected input field.
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

// Invalid returns a *ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// HTTPStatus returns the status code and envelope code for err.
func HTTPStatus(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case IsValidation(err):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ErrNotFoundOrUnauthorized):
		return http.StatusNotFound, "NOT_FOUND_OR_UNAUTHORIZED"
	case errors.Is(err, ErrAlreadyRequested):
		return http.StatusConflict, "ALREADY_REQUESTED"
	case errors.Is(err, ErrAlreadyMember):
		return http.StatusConflict, "ALREADY_MEMBER"
	case errors.Is(err, ErrNoRequestFound):
		return http.StatusBadRequest, "NO_REQUEST_FOUND"
	case errors.Is(err, ErrNotAMember):
		return http.StatusBadRequest, "NOT_A_MEMBER"
	case errors.Is(err, ErrDuplicateUsername):
		return http.StatusConflict, "DUPLICATE_USERNAME"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// Message returns the text shown to API callers. Known kinds report the
// sentinel text without the wrapping context; unknown errors are not echoed
// back.
func Message(err error) string {
	status, _ := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		return "internal server error"
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	for _, k := range []error{ErrNotFound, ErrAlreadyRequested, ErrAlreadyMember, ErrNoRequestFound, ErrNotAMember, ErrNotFoundOrUnauthorized, ErrDuplicateUsername} {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return err.Error()
}
