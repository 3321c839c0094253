package gateway

import (
	"context"
	"sync"

	"github.com/mcdev12/petpoll/go/internal/models"
	"github.com/mcdev12/petpoll/go/internal/poll"
	"github.com/rs/zerolog/log"
)

// ConnectionSource resolves connection ids to live connections
type ConnectionSource interface {
	Connection(id string) *Connection
}

// Subscription binds one connection to one room channel. It exists from a
// successful create/join until the participant leaves or the room closes
type Subscription struct {
	Code string
	Conn *Connection
}

// outbound is one queued item: a room change, or a reply to a single connection
type outbound struct {
	change  *poll.Change
	connID  string
	event   EventType
	payload interface{}
}

// Broadcaster turns room changes and sender replies into outbound frames.
// Items are queued in order and drained by a single goroutine, so frames
// for one room leave in the order the mutations were applied and a
// connection sees its replies in the order it sent requests
type Broadcaster struct {
	connections ConnectionSource
	queue       chan outbound
	done        chan struct{}
	stopOnce    sync.Once

	mu       sync.RWMutex
	channels map[string]map[string]*Subscription // room code -> connection id
	byConn   map[string]*Subscription
}

// NewBroadcaster creates a broadcaster with a change queue of the given size
func NewBroadcaster(connections ConnectionSource, buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 1000
	}
	return &Broadcaster{
		connections: connections,
		queue:       make(chan outbound, buffer),
		done:        make(chan struct{}),
		channels:    make(map[string]map[string]*Subscription),
		byConn:      make(map[string]*Subscription),
	}
}

// Notify queues a change. It blocks while the queue is full and returns
// immediately once the broadcaster has stopped
func (b *Broadcaster) Notify(change poll.Change) {
	b.enqueue(outbound{change: &change})
}

// Reply queues an event for one connection behind everything already queued
func (b *Broadcaster) Reply(connID string, event EventType, payload interface{}) {
	b.enqueue(outbound{connID: connID, event: event, payload: payload})
}

func (b *Broadcaster) enqueue(item outbound) {
	select {
	case b.queue <- item:
	case <-b.done:
	}
}

// Start processes queued items until ctx is cancelled
func (b *Broadcaster) Start(ctx context.Context) {
	log.Info().Msg("broadcaster started")
	defer b.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("broadcaster shutting down")
			return
		case item := <-b.queue:
			b.handle(item)
		}
	}
}

// Stop releases any goroutine blocked in Notify or Reply
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() { close(b.done) })
}

func (b *Broadcaster) handle(item outbound) {
	if item.change != nil {
		b.handleChange(*item.change)
		return
	}
	b.reply(item.connID, item.event, item.payload)
}

// reply sends one event to a single connection, if it is still open
func (b *Broadcaster) reply(connID string, event EventType, payload interface{}) {
	conn := b.connections.Connection(connID)
	if conn == nil || conn.Closed() {
		log.Debug().
			Str("connection_id", connID).
			Str("event_type", string(event)).
			Msg("dropping reply to closed connection")
		return
	}
	conn.SendEvent(event, payload)
}

func (b *Broadcaster) handleChange(change poll.Change) {
	switch change.Kind {
	case poll.ChangeRoomCreated:
		if conn := b.subscribe(change.Code, change.ConnectionID); conn != nil {
			conn.SendEvent(EventRoomCreated, change.Code)
		}
		b.publishSnapshot(change.Snapshot)

	case poll.ChangeParticipantJoined:
		if conn := b.subscribe(change.Code, change.ConnectionID); conn != nil {
			conn.SendEvent(EventRoomJoined, change.Code)
		}
		b.publish(change.Code, EventNewUserAlert, change.Name)
		b.publishSnapshot(change.Snapshot)

	case poll.ChangeVoteCast:
		b.publishSnapshot(change.Snapshot)

	case poll.ChangeParticipantLeft:
		b.unsubscribe(change.ConnectionID)
		b.publish(change.Code, EventUserLeftAlert, UserLeftMessage)
		b.publishSnapshot(change.Snapshot)

	case poll.ChangeRoomClosed:
		b.unsubscribe(change.ConnectionID)
		b.closeChannel(change.Code)

	default:
		log.Warn().Str("kind", string(change.Kind)).Msg("ignoring unknown room change")
	}
}

// subscribe adds the connection to the room channel. It returns nil when
// the connection is already gone
func (b *Broadcaster) subscribe(code, connID string) *Connection {
	conn := b.connections.Connection(connID)
	if conn == nil || conn.Closed() {
		log.Debug().
			Str("room_code", code).
			Str("connection_id", connID).
			Msg("connection gone before subscription")
		return nil
	}

	sub := &Subscription{Code: code, Conn: conn}

	b.mu.Lock()
	if b.channels[code] == nil {
		b.channels[code] = make(map[string]*Subscription)
	}
	b.channels[code][connID] = sub
	b.byConn[connID] = sub
	b.mu.Unlock()

	conn.setRoomCode(code)
	return conn
}

func (b *Broadcaster) unsubscribe(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.byConn[connID]
	if !ok {
		return
	}
	delete(b.byConn, connID)
	sub.Conn.setRoomCode("")
	if members := b.channels[sub.Code]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(b.channels, sub.Code)
		}
	}
}

// closeChannel drops every subscription left on a closed room
func (b *Broadcaster) closeChannel(code string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for connID, sub := range b.channels[code] {
		delete(b.byConn, connID)
		sub.Conn.setRoomCode("")
	}
	delete(b.channels, code)

	log.Debug().Str("room_code", code).Msg("room channel closed")
}

func (b *Broadcaster) members(code string) []*Connection {
	b.mu.RLock()
	defer b.mu.RUnlock()

	members := b.channels[code]
	conns := make([]*Connection, 0, len(members))
	for _, sub := range members {
		conns = append(conns, sub.Conn)
	}
	return conns
}

func (b *Broadcaster) publishSnapshot(snap models.Snapshot) {
	participants := snap.Participants
	if participants == nil {
		participants = []models.ParticipantView{}
	}
	b.publish(snap.Code, EventUpdateUserList, participants)
	b.publish(snap.Code, EventUpdateVotes, snap.Tally)
}

// publish sends one event to every member of the room channel
func (b *Broadcaster) publish(code string, event EventType, payload interface{}) {
	targets := b.members(code)
	if len(targets) == 0 {
		return
	}

	frame, err := encodeEvent(event, payload)
	if err != nil {
		log.Error().Err(err).Str("room_code", code).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		if conn.Enqueue(frame) {
			continue
		}
		if conn.Closed() {
			continue
		}
		// Slow consumer: closing it runs the normal disconnect path
		log.Warn().
			Str("connection_id", conn.ID).
			Str("room_code", code).
			Msg("connection send buffer full, closing connection")
		conn.Close()
	}

	log.Debug().
		Str("event_type", string(event)).
		Str("room_code", code).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// Subscription returns the active subscription of a connection
func (b *Broadcaster) Subscription(connID string) (*Subscription, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sub, ok := b.byConn[connID]
	return sub, ok
}

// Stats returns the number of open room channels and subscriptions
func (b *Broadcaster) Stats() (channels, subscriptions int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels), len(b.byConn)
}
