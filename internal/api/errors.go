package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-gateway/internal/gateway"
)

// Stable error identifiers returned in error_id.
const (
	ErrIDContentType      = 1000
	ErrIDBadJSON          = 1001
	ErrIDInternal         = 1003
	ErrIDMethodNotAllowed = 1004
	ErrIDNotFound         = 1005
	ErrIDValidation       = 1006
	ErrIDUsernameMissing  = 2000
	ErrIDPasswordMissing  = 2001
	ErrIDBadCredentials   = 2002
	ErrIDMissingToken     = 2100
	ErrIDInvalidToken     = 2101
	ErrIDPermissionDenied = 2110
)

// ErrorBody is the body of every error response.
type ErrorBody struct {
	Status       int    `json:"status"`
	Message      string `json:"message"`
	ErrorID      int    `json:"error_id"`
	DevelMessage string `json:"devel_message"`
	UserMessage  string `json:"user_message"`
	DocsURL      string `json:"docs_url"`
}

type errorTemplate struct {
	status int
	devel  string
	user   string
}

var errorTemplates = map[int]errorTemplate{
	ErrIDContentType: {http.StatusBadRequest,
		"Content-Type of the request must be application/json",
		"The request could not be understood."},
	ErrIDBadJSON: {http.StatusBadRequest,
		"Request body must be a JSON object",
		"The request could not be understood."},
	ErrIDInternal: {http.StatusInternalServerError,
		"Unexpected failure while processing the request; see server logs",
		"Something went wrong. Please try again later."},
	ErrIDMethodNotAllowed: {http.StatusMethodNotAllowed,
		"This method is not allowed for the resource",
		"This operation is not supported."},
	ErrIDNotFound: {http.StatusNotFound,
		"No resource exists with the requested path or ID",
		"The requested item does not exist."},
	ErrIDValidation: {http.StatusBadRequest,
		"Request body failed validation",
		"The request contains invalid data."},
	ErrIDUsernameMissing: {http.StatusBadRequest,
		"username field is absent or null",
		"Please enter a username."},
	ErrIDPasswordMissing: {http.StatusBadRequest,
		"password field is absent or null",
		"Please enter a password."},
	ErrIDBadCredentials: {http.StatusUnauthorized,
		"No active user matches this username and password",
		"Wrong username or password."},
	ErrIDMissingToken: {http.StatusUnauthorized,
		"Authorization header is absent or empty",
		"Please log in."},
	ErrIDInvalidToken: {http.StatusUnauthorized,
		"Token is malformed, unknown, revoked or expired",
		"Your session has ended. Please log in again."},
	ErrIDPermissionDenied: {http.StatusForbidden,
		"Token scope is not sufficient for this operation",
		"You are not allowed to do this."},
}

// problemFor builds an error body from a template.
func problemFor(id int, message string) ErrorBody {
	t, ok := errorTemplates[id]
	if !ok {
		id, t = ErrIDInternal, errorTemplates[ErrIDInternal]
	}
	return ErrorBody{
		Status:       t.status,
		Message:      message,
		ErrorID:      id,
		DevelMessage: t.devel,
		UserMessage:  t.user,
	}
}

// errorID maps a gateway error onto a stable error ID.
func errorID(gerr *gateway.Error) int {
	switch gerr.Kind {
	case gateway.KindInvalidRequest:
		if gerr.Field == fieldContentType {
			return ErrIDContentType
		}
		return ErrIDBadJSON
	case gateway.KindValidation:
		switch gerr.Field {
		case fieldUsername:
			return ErrIDUsernameMissing
		case fieldPassword:
			return ErrIDPasswordMissing
		}
		return ErrIDValidation
	case gateway.KindMissingToken:
		return ErrIDMissingToken
	case gateway.KindInvalidToken:
		return ErrIDInvalidToken
	case gateway.KindPermissionDenied:
		return ErrIDPermissionDenied
	case gateway.KindThingNotFound, gateway.KindPlacementNotFound:
		return ErrIDNotFound
	case gateway.KindInvalidCredentials:
		return ErrIDBadCredentials
	default:
		return ErrIDInternal
	}
}

// problemFromError converts any error into an error body. Only gateway
// errors keep their message; anything else becomes a generic 1003.
func problemFromError(err error) ErrorBody {
	gerr := gateway.AsError(err)
	p := problemFor(errorID(gerr), gerr.Message)
	if gerr.Field != "" && gerr.Kind != gateway.KindInternal {
		p.DevelMessage += " (field: " + gerr.Field + ")"
	}
	return p
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeProblem writes p, linking it to the knowledge base when one is
// configured.
func (s *Server) writeProblem(w http.ResponseWriter, r *http.Request, p ErrorBody) {
	if s.cfg.DocsURL != "" {
		p.DocsURL = s.cfg.DocsURL + "#" + strconv.Itoa(p.ErrorID)
	}
	if p.ErrorID == ErrIDInternal {
		s.logger.Debug("internal error response", "request_id", requestIDFrom(r.Context()))
	}
	writeJSON(w, p.Status, p)
}

// writeError writes err as an error response. Internal failures are
// logged by the gateway; their cause never reaches the body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeProblem(w, r, problemFromError(err))
}
