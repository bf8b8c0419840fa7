package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/nerrad567/order-relay/internal/infrastructure/config"
	"github.com/nerrad567/order-relay/internal/infrastructure/influxdb"
	"github.com/nerrad567/order-relay/internal/infrastructure/logging"
	"github.com/nerrad567/order-relay/internal/infrastructure/mqtt"
	"github.com/nerrad567/order-relay/internal/ratelimit"
	"github.com/nerrad567/order-relay/internal/trigger"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Service     config.ServiceConfig
	Logger      *logging.Logger
	Trigger     trigger.Trigger
	Limiter     *ratelimit.Limiter // nil when rate limiting is disabled
	MQTT        *mqtt.Client       // nil when MQTT is disabled
	Influx      *influxdb.Client   // nil when telemetry is disabled
	TriggerTime time.Duration      // per-order trigger budget
	Version     string
}

// Server is the HTTP server for Order Relay.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	secCfg  config.SecurityConfig
	svcCfg  config.ServiceConfig
	logger  *logging.Logger
	trigger trigger.Trigger
	limiter *ratelimit.Limiter
	mqtt    *mqtt.Client
	influx  *influxdb.Client

	triggerTimeout time.Duration
	version        string
	startTime      time.Time

	server  *http.Server
	hub     *Hub
	tickets *ticketStore
	cancel  context.CancelFunc // cancels background goroutines on Close()

	// Relay counters, exposed on /metrics.
	ordersAccepted  atomic.Uint64
	ordersRejected  atomic.Uint64
	triggerFailures atomic.Uint64
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Trigger == nil {
		return nil, fmt.Errorf("trigger is required")
	}
	// Limiter, MQTT and Influx are optional — the relay degrades to
	// unlimited requests / no command bus / no telemetry without them.

	triggerTimeout := deps.TriggerTime
	if triggerTimeout <= 0 {
		triggerTimeout = 10 * time.Second
	}

	return &Server{
		cfg:            deps.Config,
		wsCfg:          deps.WS,
		secCfg:         deps.Security,
		svcCfg:         deps.Service,
		logger:         deps.Logger,
		trigger:        deps.Trigger,
		limiter:        deps.Limiter,
		mqtt:           deps.MQTT,
		influx:         deps.Influx,
		triggerTimeout: triggerTimeout,
		version:        deps.Version,
		tickets:        newTicketStore(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub and ticket cleanup, and
// launches the HTTP listener in a background goroutine. The server can be
// stopped with Close().
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.startTime = time.Now()

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Periodic ticket cleanup to prevent memory leaks
	go s.tickets.cleanLoop(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
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
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
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
