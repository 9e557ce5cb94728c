// Package logging gives every gateway component the same structured
// logger, a thin layer over log/slog.
//
// Entries are JSON by default or text when logging.format is "text", and
// always carry the service name and build version. Components add their
// own tag with Component:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("api").Info("listening", "port", 8080)
//
// Session tokens are never logged in full; the token authority logs the
// first eight characters at most. The one deliberate exception to "no
// secrets in logs" is the first-boot admin password.
package logging
