package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/auth"
	"github.com/nerrad567/gray-logic-gateway/internal/gateway"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

// loginResponse is the response body for POST /auth.
type loginResponse struct {
	Message   string     `json:"message"`
	Token     string     `json:"token"`
	Scope     auth.Scope `json:"scope"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// handleLogin exchanges a username and password for a token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := runPipeline(r, requireJSON, decodeJSONObject)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	username, ok := req.body[fieldUsername].(string)
	if !ok {
		s.writeError(w, r, &gateway.Error{Kind: gateway.KindValidation,
			Message: "Username is not specified or is null", Field: fieldUsername})
		return
	}
	password, ok := req.body[fieldPassword].(string)
	if !ok {
		s.writeError(w, r, &gateway.Error{Kind: gateway.KindValidation,
			Message: "Password is not specified or is null", Field: fieldPassword})
		return
	}

	tok, err := s.gateway.Authenticate(r.Context(), username, password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message:   "authorized",
		Token:     tok.Value,
		Scope:     tok.Scope,
		ExpiresAt: tok.ExpiresAt,
	})
}

// handleLogout revokes the caller's token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	req, err := runPipeline(r, requireToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.gateway.Logout(r.Context(), req.token); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// handleWhoami returns the principal behind the caller's token.
func (s *Server) handleWhoami(w http.ResponseWriter, r *http.Request) {
	req, err := runPipeline(r, requireToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.gateway.Whoami(r.Context(), req.token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleWSTicket generates a single-use WebSocket authentication ticket
// bound to the caller's principal, so the token never goes in a URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	req, err := runPipeline(r, requireToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.gateway.Whoami(r.Context(), req.token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ticket := s.tickets.issue(*p, time.Now().Add(ticketTTL))
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use and expire after ticketTTL.
type ticketStore struct {
	mu      sync.Mutex
	tickets map[string]ticketEntry
}

type ticketEntry struct {
	principal auth.Principal
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{tickets: make(map[string]ticketEntry)}
}

func (t *ticketStore) issue(p auth.Principal, expiresAt time.Time) string {
	ticket := generateTicket()
	t.mu.Lock()
	t.tickets[ticket] = ticketEntry{principal: p, expiresAt: expiresAt}
	t.mu.Unlock()
	return ticket
}

// redeem checks if a ticket is valid and consumes it (single-use).
func (t *ticketStore) redeem(ticket string) (auth.Principal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tickets[ticket]
	if !ok {
		return auth.Principal{}, false
	}
	delete(t.tickets, ticket)

	if !time.Now().Before(entry.expiresAt) {
		return auth.Principal{}, false
	}
	return entry.principal, true
}

// sweep removes expired tickets.
func (t *ticketStore) sweep(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for ticket, entry := range t.tickets {
		if now.After(entry.expiresAt) {
			delete(t.tickets, ticket)
		}
	}
}

func (t *ticketStore) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tickets)
}

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

// generateTicket creates a cryptographically random ticket string.
func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

// cleanTicketsLoop sweeps expired tickets until the context is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tickets.sweep(now)
		}
	}
}
