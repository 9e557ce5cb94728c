package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	// Public
	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Post("/auth", s.handleLogin)

	// Token checks happen inside each handler's pipeline.
	r.Post("/auth/logout", s.handleLogout)
	r.Get("/auth/me", s.handleWhoami)
	r.Post("/auth/ws-ticket", s.handleWSTicket)

	r.Get("/things/", s.handleListThings)
	r.Get("/things/{id}", s.handleGetThing)

	r.Get("/placements/", s.handleListPlacements)
	r.Get("/placements/{id}", s.handleGetPlacement)

	r.Post("/messages/", s.handleDispatch)

	r.Get("/platforms/", s.handleListPlatforms)
	r.Get("/audit/", s.handleListAudit)

	// WebSocket (auth via ticket, validated in handler)
	r.Get("/ws", s.handleWebSocket)

	return r
}

// index is the body of GET /.
var index = map[string]string{
	"things":     "/things/",
	"auth":       "/auth",
	"messages":   "/messages/",
	"placements": "/placements/",
	"platforms":  "/platforms/",
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, index)
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeProblem(w, r, problemFor(ErrIDNotFound, "Resource not found"))
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	p := problemFor(ErrIDMethodNotAllowed, "Method not allowed")
	p.DevelMessage = "Method " + r.Method + " is not allowed for " + r.URL.Path
	s.writeProblem(w, r, p)
}
