// Package jsonresp writes the JSON envelope used by every API endpoint:
//
//	{ "success": true,  "data": ... }
//	{ "success": false, "error": { "code": "NOT_FOUND", "message": "..." } }
package jsonresp

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"go.uber.org/zap"
)

// Envelope is the standard response wrapper.
type Envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError is the error half of the envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON sends data with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// OK sends data with 200.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created sends data with 201.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// Message sends {"message": msg} with 200.
func Message(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusOK, map[string]string{"message": msg})
}

// Error sends an error envelope.
func Error(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{
		Error: &APIError{Code: code, Message: message},
	})
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, "BAD_REQUEST", message)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, "NOT_FOUND", message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, "FORBIDDEN", message)
}

func TooManyRequests(w http.ResponseWriter, message string) {
	Error(w, http.StatusTooManyRequests, "RATE_LIMITED", message)
}

// FromError maps err onto the envelope via apperr. Unexpected errors are
// logged and reported as 500 without detail.
func FromError(w http.ResponseWriter, log *zap.Logger, op string, err error) {
	status, code := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError && log != nil {
		log.Error(op+" failed", zap.Error(err))
	}
	Error(w, status, code, apperr.Message(err))
}

// Decode reads a JSON request body into dst.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apperr.Invalid("", "malformed JSON body: %v", err)
	}
	return nil
}
