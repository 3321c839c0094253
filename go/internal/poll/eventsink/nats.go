package eventsink

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/petpoll/go/internal/models"
	"github.com/mcdev12/petpoll/go/internal/poll"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Config holds configuration for the NATS event mirror
type Config struct {
	URL           string
	Subject       string // room changes go to <Subject>.<roomCode>
	MaxReconnects int
	ReconnectWait time.Duration
	Buffer        int // pending publishes; further changes are dropped
}

// DefaultConfig returns default NATS mirror configuration
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Subject:       "poll.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Buffer:        1024,
	}
}

// Publisher is the part of *nats.Conn the sink uses
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Envelope is the message published for each room change
type Envelope struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	RoomCode  string    `json:"roomCode"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// Payload carries the change details
type Payload struct {
	UserName string          `json:"userName,omitempty"`
	Option   models.Option   `json:"option,omitempty"`
	Snapshot models.Snapshot `json:"snapshot"`
}

type message struct {
	subject string
	kind    poll.ChangeKind
	data    []byte
}

// NATSSink mirrors room changes onto NATS subjects. Delivery is
// fire-and-forget: a background goroutine publishes, and failures are
// logged and never reach clients
type NATSSink struct {
	pub     Publisher
	subject string

	mu      sync.RWMutex
	closed  bool
	pending chan message
	done    chan struct{}
}

// New creates a sink over an existing publisher and starts its publishing
// goroutine. Close stops it
func New(pub Publisher, subject string, buffer int) *NATSSink {
	if buffer <= 0 {
		buffer = DefaultConfig().Buffer
	}
	s := &NATSSink{
		pub:     pub,
		subject: subject,
		pending: make(chan message, buffer),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Connect dials NATS and returns a sink plus the connection to close
func Connect(config Config) (*NATSSink, *nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("poll-gateway"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().Str("url", nc.ConnectedUrl()).Str("subject", config.Subject).Msg("NATS event mirror connected")
	return New(nc, config.Subject, config.Buffer), nc, nil
}

// Notify queues change for publishing. It runs under the room lock, so it
// never blocks: when the queue is full the change is dropped and logged
func (s *NATSSink) Notify(change poll.Change) {
	data, err := json.Marshal(NewEnvelope(change))
	if err != nil {
		log.Error().Err(err).Str("room_code", change.Code).Msg("failed to marshal room change")
		return
	}
	msg := message{subject: s.Subject(change.Code), kind: change.Kind, data: data}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.pending <- msg:
	default:
		log.Warn().
			Str("subject", msg.subject).
			Str("event_type", string(msg.kind)).
			Msg("event mirror queue full, dropping room change")
	}
}

// Close publishes what is already queued and stops the sink
func (s *NATSSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.pending)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *NATSSink) run() {
	defer close(s.done)
	for msg := range s.pending {
		s.publish(msg)
	}
}

func (s *NATSSink) publish(msg message) {
	if err := s.pub.Publish(msg.subject, msg.data); err != nil {
		log.Error().
			Err(err).
			Str("subject", msg.subject).
			Str("event_type", string(msg.kind)).
			Msg("failed to publish room change")
		return
	}

	log.Debug().
		Str("subject", msg.subject).
		Str("event_type", string(msg.kind)).
		Int("size", len(msg.data)).
		Msg("room change published")
}

// Subject returns the subject changes for code are published on
func (s *NATSSink) Subject(code string) string {
	return s.subject + "." + code
}

// NewEnvelope builds the published form of change
func NewEnvelope(change poll.Change) Envelope {
	return Envelope{
		EventID:   uuid.New().String(),
		EventType: string(change.Kind),
		RoomCode:  change.Code,
		Timestamp: change.At,
		Payload: Payload{
			UserName: change.Name,
			Option:   change.Option,
			Snapshot: change.Snapshot,
		},
	}
}
