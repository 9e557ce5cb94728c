// Package gateway is the access gateway: the one place where tokens are
// checked, scopes enforced, resources looked up and commands dispatched.
//
// Every operation except Authenticate takes the caller's raw token. The
// token is always resolved before the scope check, so a request without
// a token fails with KindMissingToken and never with
// KindPermissionDenied.
//
// Every error returned is a *Error with a Kind from a closed set.
// Failures of collaborators become KindInternal with a generic message;
// the cause is logged and kept in Err, never shown to callers.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-gateway/internal/audit"
	"github.com/nerrad567/gray-logic-gateway/internal/auth"
	"github.com/nerrad567/gray-logic-gateway/internal/command"
	"github.com/nerrad567/gray-logic-gateway/internal/placement"
	"github.com/nerrad567/gray-logic-gateway/internal/platform"
	"github.com/nerrad567/gray-logic-gateway/internal/thing"
)

// Authority issues and resolves tokens. *auth.Authority implements it.
type Authority interface {
	Authenticate(ctx context.Context, username, password string) (*auth.Token, error)
	Resolve(ctx context.Context, token string) (*auth.Principal, error)
	Revoke(ctx context.Context, token string) error
}

// Things is the live thing directory. *thing.Directory implements it.
type Things interface {
	Get(id string) (thing.Record, error)
	List() []thing.Record
	Actions(ctx context.Context, id string, b thing.Builder) ([]string, error)
	Execute(ctx context.Context, id string, b thing.Builder, cmd thing.Command) (map[string]any, error)
}

// Placements reads placement records.
type Placements interface {
	List(ctx context.Context) ([]placement.Placement, error)
	GetByID(ctx context.Context, id string) (*placement.Placement, error)
}

// Builders resolves live-thing builders. *platform.Registry implements it.
type Builders interface {
	Resolve(platformName, thingType string, def thing.Builder) thing.Builder
	Keys() []platform.Key
}

// Logger is the subset of logging.Logger the gateway needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps holds the collaborators of a Gateway.
type Deps struct {
	Authority  Authority
	Things     Things
	Placements Placements
	Builders   Builders

	// Audit is optional. When set, logins and logouts are recorded and
	// the trail can be read through ListAudit.
	Audit audit.Repository

	Logger Logger
}

// Gateway is the access gateway façade. It is safe for concurrent use;
// per-thing serialisation is the Things collaborator's job.
type Gateway struct {
	authority  Authority
	things     Things
	placements Placements
	builders   Builders
	audit      audit.Repository
	logger     Logger
	newID      func() string
}

// New creates a gateway. Authority, Things, Placements and Builders are
// required.
func New(deps Deps) (*Gateway, error) {
	if deps.Authority == nil {
		return nil, fmt.Errorf("authority is required")
	}
	if deps.Things == nil {
		return nil, fmt.Errorf("thing directory is required")
	}
	if deps.Placements == nil {
		return nil, fmt.Errorf("placement repository is required")
	}
	if deps.Builders == nil {
		return nil, fmt.Errorf("platform registry is required")
	}

	g := &Gateway{
		authority:  deps.Authority,
		things:     deps.Things,
		placements: deps.Placements,
		builders:   deps.Builders,
		audit:      deps.Audit,
		logger:     deps.Logger,
		newID:      func() string { return "cmd-" + uuid.NewString() },
	}
	if g.logger == nil {
		g.logger = noopLogger{}
	}
	return g, nil
}

// fail logs internal failures and returns err as a gateway Error.
func (g *Gateway) fail(op string, err error) *Error {
	gerr := AsError(err)
	if gerr.Kind == KindInternal {
		g.logger.Error("gateway operation failed", "op", op, "error", gerr.Err)
	}
	return gerr
}

// authorize resolves token, then checks that its principal holds scope.
func (g *Gateway) authorize(ctx context.Context, token string, scope auth.Scope) (*auth.Principal, error) {
	p, err := g.authority.Resolve(ctx, token)
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return nil, NewError(KindMissingToken, "Authorization header is not available or is null")
	case errors.Is(err, auth.ErrInvalidToken):
		return nil, NewError(KindInvalidToken, "The token is invalid or has expired")
	case err != nil:
		return nil, internal(fmt.Errorf("resolving token: %w", err))
	}

	if !p.Can(scope) {
		return nil, NewError(KindPermissionDenied,
			fmt.Sprintf("This token doesn't permit this operation (requires %s scope)", scope))
	}
	return p, nil
}

// Authenticate exchanges credentials for a new token.
func (g *Gateway) Authenticate(ctx context.Context, username, password string) (*auth.Token, error) {
	tok, err := g.authority.Authenticate(ctx, username, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		g.record(ctx, &audit.Entry{Action: audit.ActionLoginFailed, EntityType: audit.EntitySession, EntityID: username, Source: "api"})
		return nil, NewError(KindInvalidCredentials,
			"Access is forbidden. Please, check your username and password combination")
	}
	if err != nil {
		return nil, g.fail("authenticate", err)
	}

	g.record(ctx, &audit.Entry{Action: audit.ActionLogin, EntityType: audit.EntitySession, EntityID: username, Source: "api"})
	return tok, nil
}

// Logout revokes token.
func (g *Gateway) Logout(ctx context.Context, token string) error {
	p, err := g.authorize(ctx, token, auth.ScopeReader)
	if err != nil {
		return g.fail("logout", err)
	}

	if err := g.authority.Revoke(ctx, token); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			// Revoked concurrently by another logout.
			return NewError(KindInvalidToken, "The token is invalid or has expired")
		}
		return g.fail("logout", err)
	}

	g.record(ctx, &audit.Entry{Action: audit.ActionLogout, EntityType: audit.EntitySession,
		EntityID: p.Username, UserID: p.UserID, Source: "api"})
	return nil
}

// Whoami returns the principal token was issued to.
func (g *Gateway) Whoami(ctx context.Context, token string) (*auth.Principal, error) {
	p, err := g.authorize(ctx, token, auth.ScopeReader)
	if err != nil {
		return nil, g.fail("whoami", err)
	}
	return p, nil
}

// ListThings returns the things matching every recognised filter, in
// directory order. No match is an empty, non-nil slice.
func (g *Gateway) ListThings(ctx context.Context, token string, filters Filters) ([]ThingSummary, error) {
	if _, err := g.authorize(ctx, token, auth.ScopeReader); err != nil {
		return nil, g.fail("list_things", err)
	}

	out := []ThingSummary{}
	for _, rec := range g.things.List() {
		if filters.Match(&rec) {
			out = append(out, summarize(&rec))
		}
	}
	return out, nil
}

// GetThing returns the full view of one thing. A thing whose platform
// has no builder is still returned, marked unreachable and without
// actions.
func (g *Gateway) GetThing(ctx context.Context, token, id string) (*ThingDetail, error) {
	if _, err := g.authorize(ctx, token, auth.ScopeReader); err != nil {
		return nil, g.fail("get_thing", err)
	}

	rec, err := g.things.Get(id)
	if errors.Is(err, thing.ErrNotFound) {
		return nil, thingNotFound(id)
	}
	if err != nil {
		return nil, g.fail("get_thing", err)
	}

	detail := &ThingDetail{
		ThingSummary:   summarize(&rec),
		Actions:        []string{},
		State:          rec.State,
		StateUpdatedAt: rec.StateUpdatedAt,
	}
	if detail.State == nil {
		detail.State = map[string]any{}
	}

	if b := g.builders.Resolve(rec.Platform, rec.Type, nil); b != nil {
		actions, err := g.things.Actions(ctx, id, b)
		if err != nil {
			g.logger.Warn("thing unreachable", "thing_id", id, "error", err)
		} else {
			detail.Reachable = true
			detail.Actions = actions
		}
	}
	return detail, nil
}

// ListPlacements returns every placement.
func (g *Gateway) ListPlacements(ctx context.Context, token string) ([]placement.Placement, error) {
	if _, err := g.authorize(ctx, token, auth.ScopeReader); err != nil {
		return nil, g.fail("list_placements", err)
	}

	placements, err := g.placements.List(ctx)
	if err != nil {
		return nil, g.fail("list_placements", err)
	}
	if placements == nil {
		placements = []placement.Placement{}
	}
	return placements, nil
}

// GetPlacement returns one placement.
func (g *Gateway) GetPlacement(ctx context.Context, token, id string) (*placement.Placement, error) {
	if _, err := g.authorize(ctx, token, auth.ScopeReader); err != nil {
		return nil, g.fail("get_placement", err)
	}

	p, err := g.placements.GetByID(ctx, id)
	if errors.Is(err, placement.ErrNotFound) {
		return nil, NewError(KindPlacementNotFound, "Failed to find a placement with the specified ID")
	}
	if err != nil {
		return nil, g.fail("get_placement", err)
	}
	return p, nil
}

// ListPlatforms returns every registered (platform, type) pair.
func (g *Gateway) ListPlatforms(ctx context.Context, token string) ([]platform.Key, error) {
	if _, err := g.authorize(ctx, token, auth.ScopeReader); err != nil {
		return nil, g.fail("list_platforms", err)
	}
	return g.builders.Keys(), nil
}

// ListAudit returns a page of the audit trail. Admin only.
func (g *Gateway) ListAudit(ctx context.Context, token string, filter audit.Filter) (*audit.ListResult, error) {
	if _, err := g.authorize(ctx, token, auth.ScopeAdmin); err != nil {
		return nil, g.fail("list_audit", err)
	}
	if g.audit == nil {
		return &audit.ListResult{Entries: []audit.Entry{}, Limit: filter.Limit, Offset: filter.Offset}, nil
	}

	res, err := g.audit.List(ctx, filter)
	if err != nil {
		return nil, g.fail("list_audit", err)
	}
	return res, nil
}

// DispatchCommand validates an action request and runs it on the target
// thing. Admin only.
//
// Steps, each returning on the first failure:
//  1. validate the envelope structure (KindValidation)
//  2. look up the thing (KindThingNotFound)
//  3. resolve its builder; none means unreachable (KindThingNotFound)
//  4. execute the action; the thing's own rejections map to
//     KindPermissionDenied or KindValidation
//
// On success the directory has published exactly one state change.
func (g *Gateway) DispatchCommand(ctx context.Context, token string, raw map[string]any) (*Ack, error) {
	p, err := g.authorize(ctx, token, auth.ScopeAdmin)
	if err != nil {
		return nil, g.fail("dispatch_command", err)
	}

	env, err := command.Validate(raw)
	if err != nil {
		var verr *command.ValidationError
		if errors.As(err, &verr) {
			return nil, &Error{Kind: KindValidation, Message: verr.Reason, Field: verr.Field, Err: err}
		}
		return nil, g.fail("dispatch_command", err)
	}

	rec, err := g.things.Get(env.TargetThingID)
	if errors.Is(err, thing.ErrNotFound) {
		return nil, thingNotFound(env.TargetThingID)
	}
	if err != nil {
		return nil, g.fail("dispatch_command", err)
	}

	b := g.builders.Resolve(rec.Platform, rec.Type, nil)
	if b == nil {
		g.logger.Debug("no builder for thing", "thing_id", rec.ID, "platform", rec.Platform, "type", rec.Type)
		return nil, thingNotFound(rec.ID)
	}

	cmd := thing.Command{
		ID:        g.newID(),
		Action:    env.ActionName,
		Params:    env.ActionParams,
		Principal: p.UserID,
	}

	state, err := g.things.Execute(ctx, rec.ID, b, cmd)
	if err != nil {
		return nil, g.fail("dispatch_command", g.mapThingError(rec.ID, err))
	}

	g.logger.Info("command accepted",
		"command_id", cmd.ID,
		"thing_id", rec.ID,
		"action", cmd.Action,
		"username", p.Username,
	)
	return &Ack{CommandID: cmd.ID, Status: AckAccepted, State: state}, nil
}

// mapThingError turns an Execute failure into a gateway Error.
func (g *Gateway) mapThingError(id string, err error) error {
	switch {
	case errors.Is(err, thing.ErrForbidden):
		return &Error{Kind: KindPermissionDenied, Message: err.Error(), Err: err}
	case errors.Is(err, thing.ErrUnsupportedAction), errors.Is(err, thing.ErrInvalidParams):
		return &Error{Kind: KindValidation, Message: err.Error(), Field: command.FieldAction, Err: err}
	case errors.Is(err, thing.ErrNotFound):
		// Removed between lookup and execution.
		return thingNotFound(id)
	default:
		return internal(fmt.Errorf("executing command on %s: %w", id, err))
	}
}

func thingNotFound(id string) *Error {
	return NewError(KindThingNotFound, fmt.Sprintf("Failed to find a thing with ID %q", id))
}

// record writes an audit entry when an audit trail is configured.
// Failures are logged and otherwise ignored.
func (g *Gateway) record(ctx context.Context, e *audit.Entry) {
	if g.audit == nil {
		return
	}
	if err := g.audit.Create(ctx, e); err != nil {
		g.logger.Warn("failed to record audit entry", "action", e.Action, "error", err)
	}
}
