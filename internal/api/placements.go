package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListPlacements(w http.ResponseWriter, r *http.Request) {
	req, err := runPipeline(r, requireToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	placements, err := s.gateway.ListPlacements(r.Context(), req.token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"placements": placements})
}

func (s *Server) handleGetPlacement(w http.ResponseWriter, r *http.Request) {
	req, err := runPipeline(r, requireToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.gateway.GetPlacement(r.Context(), req.token, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
