package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/eleven-am/empire/internal/goals"
)

const (
	msgUnauthorized    = "unauthorized"
	msgInvalidID       = "invalid id"
	msgInvalidBody     = "invalid request body"
	msgInvalidLongTerm = "invalid longTermId"
	msgInternal        = "internal server error"
)

type errorBody struct {
	Error       string  `json:"error"`
	CategoryIDs []int64 `json:"category_ids,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

// decodeBody reads a JSON body into dst. An empty body leaves dst untouched
// so required-field checks can report what is missing.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// respondServiceError maps goal service outcomes onto status codes. Raw
// errors never reach the client.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *goals.ValidationError
	var conflict *goals.ConflictError

	switch {
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, validation.Message)
	case errors.Is(err, goals.ErrNotFound):
		respondError(w, http.StatusNotFound, goals.MsgNotFound)
	case errors.As(err, &conflict):
		respondJSON(w, http.StatusConflict, errorBody{Error: goals.MsgLinkExists, CategoryIDs: conflict.CategoryIDs})
	default:
		s.log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err)
		respondError(w, http.StatusInternalServerError, msgInternal)
	}
}
