// Package api implements the HTTP REST API and WebSocket push for the
// Gray Logic gateway.
//
// This package provides:
//   - REST endpoints for authentication, things, placements, platforms
//     and the audit trail
//   - the action request endpoint, POST /messages/
//   - a WebSocket hub that relays thing state changes from the bus
//   - middleware (request ID, logging, recovery, CORS, body size limit)
//
// # Request pipeline
//
// Protected handlers run an explicit, ordered list of stages before
// calling the gateway:
//
//	requireToken -> requireJSON -> decodeJSONObject
//
// Each stage either enriches the request or stops it with a gateway
// error. The first failing stage decides the response.
//
// # Errors
//
// Every error response has the body
//
//	{"status", "message", "error_id", "devel_message", "user_message", "docs_url"}
//
// where error_id is stable and machine-readable.
//
// # Security
//
// Tokens are sent raw in the Authorization header ("Bearer " is
// accepted and stripped). WebSocket connections use single-use tickets
// so tokens never appear in URLs.
package api
