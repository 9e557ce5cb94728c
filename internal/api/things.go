package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-gateway/internal/gateway"
)

// handleListThings returns the things matching the query parameters.
// Each parameter is a filter; the first value of a repeated one wins.
//
//	GET /things/?placement=R1&type=lamp
func (s *Server) handleListThings(w http.ResponseWriter, r *http.Request) {
	req, err := runPipeline(r, requireToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	filters := gateway.Filters{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			filters[key] = values[0]
		}
	}

	things, err := s.gateway.ListThings(r.Context(), req.token, filters)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"things": things})
}

// handleGetThing returns a single thing with its state and actions.
func (s *Server) handleGetThing(w http.ResponseWriter, r *http.Request) {
	req, err := runPipeline(r, requireToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	detail, err := s.gateway.GetThing(r.Context(), req.token, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleDispatch accepts an action request.
//
//	POST /messages/
//	{"type": "user_request", "event": "action_requested",
//	 "body": {"action": "on", "obj_id": "Th1", "action_params": {}}}
//
// The response is 202: the command was accepted, not necessarily
// carried out.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	req, err := runPipeline(r, requireToken, requireJSON, decodeJSONObject)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ack, err := s.gateway.DispatchCommand(r.Context(), req.token, req.body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ack)
}

// handleListPlatforms returns every registered platform and thing type.
func (s *Server) handleListPlatforms(w http.ResponseWriter, r *http.Request) {
	req, err := runPipeline(r, requireToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	keys, err := s.gateway.ListPlatforms(r.Context(), req.token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"platforms": keys})
}
