package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/petpoll/go/internal/poll"
	"github.com/mcdev12/petpoll/go/internal/poll/eventsink"
	"github.com/mcdev12/petpoll/go/internal/poll/gateway"
	"github.com/mcdev12/petpoll/go/internal/pollconfig"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	cfg, err := pollconfig.Load(os.Getenv("POLL_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogging(cfg)

	var observers []poll.Notifier
	if cfg.NATS.URL != "" {
		sink, nc, err := eventsink.Connect(eventsink.Config{
			URL:           cfg.NATS.URL,
			Subject:       cfg.NATS.Subject,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect event mirror")
		}
		defer nc.Close()
		defer sink.Close()
		observers = append(observers, sink)
	}

	gatewayConfig := gateway.Config{
		ConnectionConfig: gateway.ConnectionConfig{
			WriteTimeout:    cfg.Connection.WriteTimeout,
			ReadTimeout:     cfg.Connection.ReadTimeout,
			PingInterval:    cfg.Connection.PingInterval,
			MaxMessageSize:  cfg.Connection.MaxMessageSize,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			SendBufferSize:  cfg.Connection.SendBuffer,
		},
		BroadcastBuffer: cfg.BroadcastBuffer,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	}
	gatewayService := gateway.NewService(gatewayConfig, clockwork.NewRealClock(), observers...)

	server := setupServer(cfg, gatewayService)

	log.Info().
		Str("addr", server.Addr).
		Strs("allowed_origins", cfg.Server.AllowedOrigins).
		Bool("nats_mirror", cfg.NATS.URL != "").
		Msg("starting poll gateway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceDone := make(chan struct{})
	go func() {
		defer close(serviceDone)
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Hijacked WebSocket connections are not tracked by Shutdown; the
	// service closes them once its context is cancelled
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()

	select {
	case <-serviceDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("gateway service did not stop in time")
	}

	log.Info().Msg("poll gateway shutdown complete")
}

func setupLogging(cfg pollconfig.Config) {
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func setupServer(cfg pollconfig.Config, gatewayService *gateway.Service) *http.Server {
	mux := http.NewServeMux()

	gatewayService.RegisterRoutes(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})

	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"service": "poll-gateway",
			"stats":   gatewayService.GetStats(),
		}); err != nil {
			log.Error().Err(err).Msg("failed to encode info response")
		}
	})

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
