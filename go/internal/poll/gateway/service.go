package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/mcdev12/petpoll/go/internal/poll"
	"github.com/rs/zerolog/log"
)

// Service is the poll gateway: WebSocket connections in, room state out
type Service struct {
	connectionManager *ConnectionManager
	broadcaster       *Broadcaster
	registry          *poll.Registry
	coordinator       *poll.Coordinator
	dispatcher        *Dispatcher
	wsHandler         *WebSocketHandler
}

// Config holds configuration for the poll gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	BroadcastBuffer  int
	AllowedOrigins   []string // overrides ConnectionConfig.CheckOrigin; "*" allows any origin
}

// Stats is the payload of /ws/stats
type Stats struct {
	TotalConnections int    `json:"total_connections"`
	ActiveRooms      int    `json:"active_rooms"`
	Participants     int    `json:"participants"`
	Channels         int    `json:"channels"`
	Subscriptions    int    `json:"subscriptions"`
	Service          string `json:"service"`
}

// DefaultConfig returns default configuration for the poll gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		BroadcastBuffer:  1000,
		AllowedOrigins:   []string{"http://localhost:3000"},
	}
}

// NewService wires the registry, coordinator, broadcaster and connection
// manager together. Extra notifiers observe every room change after the
// broadcaster
func NewService(config Config, clock poll.Clock, observers ...poll.Notifier) *Service {
	connConfig := config.ConnectionConfig
	if len(config.AllowedOrigins) > 0 {
		connConfig.CheckOrigin = originChecker(config.AllowedOrigins)
	}
	connectionManager := NewConnectionManager(connConfig)
	broadcaster := NewBroadcaster(connectionManager, config.BroadcastBuffer)

	notifiers := append(poll.MultiNotifier{broadcaster}, observers...)
	registry := poll.NewRegistry(clock, notifiers)
	coordinator := poll.NewCoordinator(registry, clock)
	dispatcher := NewDispatcher(registry, coordinator, broadcaster)

	s := &Service{
		connectionManager: connectionManager,
		broadcaster:       broadcaster,
		registry:          registry,
		coordinator:       coordinator,
		dispatcher:        dispatcher,
	}
	s.wsHandler = NewWebSocketHandler(connectionManager, dispatcher, s.GetStats)
	return s
}

// Start runs the broadcaster until ctx is cancelled, then stops the service
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting poll gateway service")

	s.broadcaster.Start(ctx)

	log.Info().Msg("poll gateway service shutting down")
	return s.Stop()
}

// Stop closes every connection and releases blocked notifiers
func (s *Service) Stop() error {
	s.broadcaster.Stop()
	s.connectionManager.CloseAll()
	log.Info().Msg("poll gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("poll gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() Stats {
	reg := s.registry.Stats()
	channels, subs := s.broadcaster.Stats()
	return Stats{
		TotalConnections: s.connectionManager.Count(),
		ActiveRooms:      reg.Rooms,
		Participants:     reg.Participants,
		Channels:         channels,
		Subscriptions:    subs,
		Service:          "poll_gateway",
	}
}

// Registry exposes the room registry
func (s *Service) Registry() *poll.Registry {
	return s.registry
}

// originChecker allows requests without an Origin header (non-browser
// clients) and those whose origin is listed
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[u.Scheme+"://"+u.Host]
	}
}
