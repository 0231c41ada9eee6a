package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/abhisek/fractiz/internal/catalog"
	"github.com/abhisek/fractiz/internal/mastery"
	"github.com/abhisek/fractiz/internal/session"
	"github.com/abhisek/fractiz/internal/store"
)

// Response is the JSON envelope of every API reply.
type Response struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{
		Success:   status >= 200 && status < 300,
		Data:      data,
		RequestID: requestIDFrom(r.Context()),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeAPIError(w, r, status, &APIError{Code: code, Message: message})
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, apiErr *APIError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if apiErr.Retryable {
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{
		Success:   false,
		Error:     apiErr,
		RequestID: requestIDFrom(r.Context()),
	})
}

// statusFor maps a domain error to an HTTP status and error code.
func statusFor(err error) (int, *APIError) {
	switch {
	case errors.Is(err, session.ErrInvalidStudentID):
		return http.StatusBadRequest, &APIError{Code: "invalid_student_id", Message: err.Error()}
	case errors.Is(err, session.ErrUnknownStudent):
		return http.StatusForbidden, &APIError{Code: "unknown_student", Message: "begin a session first"}
	case errors.Is(err, catalog.ErrUnknownItem):
		return http.StatusNotFound, &APIError{Code: "unknown_item", Message: err.Error()}
	case errors.Is(err, catalog.ErrNoQuestionAvailable):
		return http.StatusConflict, &APIError{Code: "no_question_available", Message: err.Error()}
	case errors.Is(err, mastery.ErrUnknownKC):
		return http.StatusUnprocessableEntity, &APIError{Code: "unknown_kc", Message: err.Error()}
	case errors.Is(err, store.ErrPersistence), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, &APIError{Code: "persistence_failure", Message: "storage unavailable, retry the request", Retryable: true}
	default:
		return http.StatusInternalServerError, &APIError{Code: "internal_error", Message: "an unexpected error occurred"}
	}
}

// contentDisposition builds an attachment header whose filename survives
// non-ASCII characters (RFC 5987 ext-value).
func contentDisposition(filename string) string {
	return "attachment; filename*=UTF-8''" + percentEncode(filename)
}

// percentEncode escapes every byte outside the RFC 3986 unreserved set.
func percentEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}
