package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/nerrad567/gray-logic-gateway/internal/audit"
	"github.com/nerrad567/gray-logic-gateway/internal/gateway"
)

// handleListAudit serves GET /audit/. Admin only. The action, entity_type
// and entity_id query parameters filter; limit and offset page through the
// newest-first trail. Malformed paging values are a validation error
// rather than being silently ignored.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	req, err := runPipeline(r, requireToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	filter, err := auditFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.gateway.ListAudit(r.Context(), req.token, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func auditFilter(q url.Values) (audit.Filter, error) {
	f := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	var err error
	if f.Limit, err = nonNegativeParam(q, "limit"); err != nil {
		return f, err
	}
	f.Offset, err = nonNegativeParam(q, "offset")
	return f, err
}

// nonNegativeParam parses an optional integer query parameter. Absent
// means zero.
func nonNegativeParam(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &gateway.Error{
			Kind:    gateway.KindValidation,
			Message: name + " must be a non-negative integer",
			Field:   name,
		}
	}
	return n, nil
}
