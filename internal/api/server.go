package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/audit"
	"github.com/nerrad567/gray-logic-gateway/internal/auth"
	"github.com/nerrad567/gray-logic-gateway/internal/gateway"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gateway/internal/notify"
	"github.com/nerrad567/gray-logic-gateway/internal/placement"
	"github.com/nerrad567/gray-logic-gateway/internal/platform"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Gateway is the access gateway the API exposes. *gateway.Gateway
// implements it.
type Gateway interface {
	Authenticate(ctx context.Context, username, password string) (*auth.Token, error)
	Logout(ctx context.Context, token string) error
	Whoami(ctx context.Context, token string) (*auth.Principal, error)
	ListThings(ctx context.Context, token string, filters gateway.Filters) ([]gateway.ThingSummary, error)
	GetThing(ctx context.Context, token, id string) (*gateway.ThingDetail, error)
	ListPlacements(ctx context.Context, token string) ([]placement.Placement, error)
	GetPlacement(ctx context.Context, token, id string) (*placement.Placement, error)
	DispatchCommand(ctx context.Context, token string, raw map[string]any) (*gateway.Ack, error)
	ListPlatforms(ctx context.Context, token string) ([]platform.Key, error)
	ListAudit(ctx context.Context, token string, filter audit.Filter) (*audit.ListResult, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Gateway Gateway

	// Events is the thing directory's bus. When set, state changes are
	// pushed to WebSocket clients.
	Events notify.Observable

	// The remaining sources feed GET /metrics. All are optional.
	BusStats        func() notify.Stats
	DB              *sql.DB
	Things          func() int
	TelemetryErrors func() uint64

	Version string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	gateway   Gateway
	events    notify.Observable
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	tickets   *ticketStore
	cancel    context.CancelFunc // cancels background goroutines on Close()

	// metrics sources
	busStats        func() notify.Stats
	db              *sql.DB
	things          func() int
	telemetryErrors func() uint64
}

// New creates a new API server with the given dependencies.
//
// The WebSocket hub is created here and, when Events is set, subscribed
// to the bus straight away. The HTTP listener is not started until
// Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		gateway:   deps.Gateway,
		events:    deps.Events,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
		tickets:   newTicketStore(),

		busStats:        deps.BusStats,
		db:              deps.DB,
		things:          deps.Things,
		telemetryErrors: deps.TelemetryErrors,
	}

	if s.events != nil {
		if err := s.events.Subscribe(s.hub); err != nil {
			return nil, fmt.Errorf("subscribing websocket hub: %w", err)
		}
	}

	return s, nil
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and ticket cleanup, then launches the
// HTTP listener in a background goroutine. The server can be stopped
// with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It unsubscribes the hub from the bus, then waits up to 10 seconds for
// in-flight requests to complete.
func (s *Server) Close() error {
	if s.events != nil {
		s.events.Unsubscribe(s.hub)
	}

	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket cleanup)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
