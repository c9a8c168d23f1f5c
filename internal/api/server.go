// Package api provides the HTTP REST API and WebSocket server for the
// ViCare bridge.
//
// It exposes the materialised entities, their live state, command and
// service endpoints, Prometheus metrics and a WebSocket feed of state
// changes. The server follows the same lifecycle pattern as other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	bridge "github.com/nerrad567/vicare-bridge/internal/bridges/vicare"
	"github.com/nerrad567/vicare-bridge/internal/entity"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/config"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/vicare-bridge/internal/registry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Bridge is the part of the ViCare bridge the API serves.
type Bridge interface {
	Entities() []entity.Entity
	Entity(id string) (entity.Entity, error)
	Devices() []bridge.DeviceSummary
	Health() bridge.HealthMessage
	Dispatch(ctx context.Context, entityID string, cmd bridge.CommandMessage) bridge.AckMessage
	CallService(ctx context.Context, name string, msg bridge.ServiceMessage) bridge.AckMessage
	SetStateListener(fn func(bridge.StateMessage))
	Metrics() *bridge.Metrics
}

// StateStore exposes persisted entity records.
type StateStore interface {
	ListEntities(ctx context.Context) []registry.Entity
	GetEntity(ctx context.Context, id string) (*registry.Entity, error)
	Stats() registry.Stats
}

// MQTTStatus reports broker connectivity.
type MQTTStatus interface {
	IsConnected() bool
}

// stateEvent is a bridge state message as broadcast to WebSocket clients.
type stateEvent struct {
	bridge.StateMessage
}

func (e stateEvent) entityID() string { return e.EntityID }

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Bridge   Bridge
	Registry StateStore // optional
	MQTT     MQTTStatus // optional
	Version  string
}

// Server is the HTTP API server for the bridge.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	bridge    Bridge
	registry  StateStore
	mqtt      MQTTStatus
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	tickets   *ticketStore
	gatherer  *prometheus.Registry
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		bridge:    deps.Bridge,
		registry:  deps.Registry,
		mqtt:      deps.MQTT,
		version:   deps.Version,
		startTime: time.Now(),
		tickets:   newTicketStore(),
		hub:       NewHub(deps.WS, deps.Logger),
	}

	s.gatherer = prometheus.NewRegistry()
	s.gatherer.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if m := deps.Bridge.Metrics(); m != nil {
		s.gatherer.MustRegister(m.Collectors()...)
	}
	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays bridge state changes to WebSocket
// clients and launches the HTTP listener in a background goroutine. The
// server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.tickets.cleanLoop(srvCtx)

	s.bridge.SetStateListener(func(msg bridge.StateMessage) {
		s.hub.Broadcast(ChannelStateChanged, stateEvent{msg})
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadDuration(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadDuration(),
		WriteTimeout:      s.cfg.Timeouts.WriteDuration(),
		IdleTimeout:       s.cfg.Timeouts.IdleDuration(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	s.bridge.SetStateListener(nil)
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

// HealthCheck verifies the API server is running.
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
