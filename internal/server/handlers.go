package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/eleven-am/empire/internal/goals"
)

type statementRequest struct {
	Statement string `json:"statement"`
}

type categoryIDsRequest struct {
	CategoryIDs []int64 `json:"categoryIds"`
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

// currentUser is always present behind HeaderIdentity.
func currentUser(r *http.Request) int64 {
	uid, _ := UserIDFromContext(r.Context())
	return uid
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.log.Warn("health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	longTermID, err := strconv.ParseInt(r.URL.Query().Get("longTermId"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, msgInvalidLongTerm)
		return
	}

	list, err := s.goals.List(r.Context(), currentUser(r), longTermID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var in goals.CreateInput
	if err := decodeBody(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	goal, err := s.goals.Create(r.Context(), currentUser(r), in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, goal)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, msgInvalidID)
		return
	}
	var req statementRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	goal, err := s.goals.Update(r.Context(), currentUser(r), id, req.Statement)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, goal)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	if err := s.goals.Delete(r.Context(), currentUser(r), id); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListGoalCategories(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	rows, err := s.goals.Categories(r.Context(), currentUser(r), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (s *Server) handleLinkCategories(w http.ResponseWriter, r *http.Request) {
	s.handleCategoryChange(w, r, s.goals.Link)
}

func (s *Server) handleUnlinkCategories(w http.ResponseWriter, r *http.Request) {
	s.handleCategoryChange(w, r, s.goals.Unlink)
}

func (s *Server) handleCategoryChange(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, uid, id int64, categoryIDs []int64) error) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, msgInvalidID)
		return
	}
	var req categoryIDsRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if err := apply(r.Context(), currentUser(r), id, req.CategoryIDs); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListLongTerms(w http.ResponseWriter, r *http.Request) {
	terms, err := s.goals.LongTerms(r.Context(), currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, terms)
}
