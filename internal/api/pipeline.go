package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/nerrad567/gray-logic-gateway/internal/gateway"
)

const contentTypeJSON = "application/json"

// Field names used to tell otherwise identical errors apart.
const (
	fieldContentType = "Content-Type"
	fieldBody        = "body"
	fieldUsername    = "username"
	fieldPassword    = "password"
)

// request carries what the pipeline stages extract from an HTTP request.
type request struct {
	http  *http.Request
	token string
	body  map[string]any
}

// stage inspects or enriches a request. A non-nil error stops the
// pipeline; stages always return *gateway.Error.
type stage func(*request) error

// runPipeline applies stages in order and stops at the first failure.
func runPipeline(r *http.Request, stages ...stage) (*request, error) {
	req := &request{http: r}
	for _, st := range stages {
		if err := st(req); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// requireToken reads the Authorization header. An absent or blank
// header is a missing token; whether the token is valid is decided
// later by the gateway.
func requireToken(req *request) error {
	token := strings.TrimSpace(req.http.Header.Get("Authorization"))
	if rest, ok := cutPrefixFold(token, "Bearer "); ok {
		token = strings.TrimSpace(rest)
	} else if strings.EqualFold(token, "Bearer") {
		token = ""
	}
	if token == "" {
		return gateway.NewError(gateway.KindMissingToken, "Authorization header is not available or is null")
	}
	req.token = token
	return nil
}

// requireJSON rejects requests whose Content-Type is not application/json.
// Parameters such as charset are allowed.
func requireJSON(req *request) error {
	mediaType, _, err := mime.ParseMediaType(req.http.Header.Get("Content-Type"))
	if err != nil || mediaType != contentTypeJSON {
		return &gateway.Error{
			Kind:    gateway.KindInvalidRequest,
			Message: "Invalid request content-type",
			Field:   fieldContentType,
		}
	}
	return nil
}

// decodeJSONObject decodes the body, which must be a single JSON object.
func decodeJSONObject(req *request) error {
	invalid := func(err error) error {
		return &gateway.Error{
			Kind:    gateway.KindInvalidRequest,
			Message: "Request body content must be valid JSON",
			Field:   fieldBody,
			Err:     err,
		}
	}
	if req.http.Body == nil {
		return invalid(io.EOF)
	}

	dec := json.NewDecoder(req.http.Body)
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return invalid(err)
	}
	if body == nil {
		return invalid(errors.New("body is null"))
	}
	if dec.More() {
		return invalid(errors.New("trailing data after JSON object"))
	}

	req.body = body
	return nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}
