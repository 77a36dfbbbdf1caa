package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dalemusser/birdbook/internal/app/system/apperr"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", apperr.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"wrapped not found", fmt.Errorf("get user: %w", apperr.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"already requested", apperr.ErrAlreadyRequested, http.StatusConflict, "ALREADY_REQUESTED"},
		{"already member", apperr.ErrAlreadyMember, http.StatusConflict, "ALREADY_MEMBER"},
		{"no request", apperr.ErrNoRequestFound, http.StatusBadRequest, "NO_REQUEST_FOUND"},
		{"not a member", apperr.ErrNotAMember, http.StatusBadRequest, "NOT_A_MEMBER"},
		{"comment", apperr.ErrNotFoundOrUnauthorized, http.StatusNotFound, "NOT_FOUND_OR_UNAUTHORIZED"},
		{"validation", apperr.Invalid("header", "too long"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"forbidden", apperr.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := apperr.HTTPStatus(tt.err)
			if status != tt.wantStatus {
				t.Errorf("status: got %d, want %d", status, tt.wantStatus)
			}
			if code != tt.wantCode {
				t.Errorf("code: got %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"state machine", fmt.Errorf("group 123: %w", apperr.ErrAlreadyRequested), "Request already sent."},
		{"remote lookup", fmt.Errorf("user service GET /internal/users/abc: %w\nstatus 404", apperr.ErrNotFound), "not found"},
		{"store lookup", fmt.Errorf("post 65f0c0ffee: %w", apperr.ErrNotFound), "not found"},
		{"comment", fmt.Errorf("post 1: %w", apperr.ErrNotFoundOrUnauthorized), "Comment not found or unauthorized"},
		{"internal", errors.New("connection reset"), "internal server error"},
		{"validation", apperr.Invalid("text_body", "must not be blank"), "text_body: must not be blank"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := apperr.Message(tt.err); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}
