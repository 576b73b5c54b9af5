package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/brokerload/lenderdesk/internal/lender"
	"github.com/brokerload/lenderdesk/internal/logging"
	"github.com/go-chi/chi/v5"
)

// handleIndex names the collections this API serves.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"lenders": scheme + "://" + r.Host + "/lenders/",
	})
}

// listResponse is one page of lenders with navigation links.
type listResponse struct {
	Count    int              `json:"count"`
	Next     *string          `json:"next"`
	Previous *string          `json:"previous"`
	Results  []*lender.Lender `json:"results"`
}

// handleListLenders lists lenders with optional filtering on active/code,
// ordering, and fixed-size pagination.
func (s *Server) handleListLenders(w http.ResponseWriter, r *http.Request) {
	q := lender.ListQuery{
		Code:     r.URL.Query().Get("code"),
		OrderBy:  r.URL.Query().Get("ordering"),
		Page:     parseIntParam(r, "page", 1),
		PageSize: s.cfg.API.PageSize,
	}

	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active filter must be a boolean")
			return
		}
		q.Active = &active
	}

	page, err := s.repo.List(r.Context(), q)
	if err != nil {
		if errors.Is(err, lender.ErrInvalidOrdering) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondStoreError(w, r, err)
		return
	}

	resp := listResponse{
		Count:   page.Count,
		Results: page.Items,
	}
	if q.Page*q.PageSize < page.Count {
		resp.Next = pageLink(r, q.Page+1)
	}
	if q.Page > 1 {
		resp.Previous = pageLink(r, q.Page-1)
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCreateLender creates a single lender from a JSON body.
func (s *Server) handleCreateLender(w http.ResponseWriter, r *http.Request) {
	var cand lender.Candidate
	if err := json.NewDecoder(r.Body).Decode(&cand); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := cand.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.repo.Create(r.Context(), cand.CreateInput())
	if err != nil {
		if errors.Is(err, lender.ErrDuplicateCode) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.respondStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// handleGetLender fetches one lender by code.
func (s *Server) handleGetLender(w http.ResponseWriter, r *http.Request) {
	rec, err := s.repo.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, lender.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lender not found")
			return
		}
		s.respondStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleUpdateLender replaces the full field set of one lender.
func (s *Server) handleUpdateLender(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var cand lender.Candidate
	if err := json.NewDecoder(r.Body).Decode(&cand); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if cand.Code == "" {
		cand.Code = code
	}
	if err := cand.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.repo.Update(r.Context(), code, lender.UpdateInput{
		Name:                  cand.Name,
		Code:                  cand.Code,
		UpfrontCommissionRate: cand.UpfrontCommissionRate,
		TrialCommissionRate:   cand.TrialCommissionRate,
		Active:                cand.Active,
	})
	if err != nil {
		switch {
		case errors.Is(err, lender.ErrNotFound):
			writeError(w, http.StatusNotFound, "lender not found")
		case errors.Is(err, lender.ErrDuplicateCode):
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.respondStoreError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteLender removes one lender by code.
func (s *Server) handleDeleteLender(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		if errors.Is(err, lender.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lender not found")
			return
		}
		s.respondStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondStoreError logs an unexpected store failure and replies 500 with a
// sanitized message.
func (s *Server) respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).Error("store error",
		"path", r.URL.Path,
		"method", r.Method,
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// pageLink rebuilds the request URL with a different page number,
// preserving filters and ordering.
func pageLink(r *http.Request, page int) *string {
	u := *r.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	link := u.String()
	return &link
}
