package gateway

import (
	"errors"
	"fmt"

	"github.com/mcdev12/petpoll/go/internal/models"
	"github.com/mcdev12/petpoll/go/internal/poll"
	"github.com/rs/zerolog/log"
)

const (
	malformedMessage = "Malformed message."
	unknownEvent     = "Unknown event."
	internalError    = "Something went wrong. Please try again."
)

// Replier delivers an event to one connection in order with room changes
type Replier interface {
	Reply(connID string, event EventType, payload interface{})
}

// Dispatcher routes inbound events to the registry and vote coordinator.
// Outcomes of successful requests reach clients as room changes; failures
// are answered to the sender only, through the same queue
type Dispatcher struct {
	registry    *poll.Registry
	coordinator *poll.Coordinator
	replies     Replier
}

// NewDispatcher creates a dispatcher over registry and coordinator
func NewDispatcher(registry *poll.Registry, coordinator *poll.Coordinator, replies Replier) *Dispatcher {
	return &Dispatcher{
		registry:    registry,
		coordinator: coordinator,
		replies:     replies,
	}
}

// HandleMessage decodes and applies one client message
func (d *Dispatcher) HandleMessage(c *Connection, message []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("connection_id", c.ID).
				Str("panic", fmt.Sprint(r)).
				Msg("recovered from panic while handling message")
			d.replies.Reply(c.ID, EventError, internalError)
		}
	}()

	env, err := decodeEnvelope(message)
	if err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("rejecting malformed message")
		d.replies.Reply(c.ID, EventError, malformedMessage)
		return
	}

	if err := d.dispatch(c, env); err != nil {
		d.reply(c, env.Event, err)
	}
}

func (d *Dispatcher) dispatch(c *Connection, env Envelope) error {
	switch env.Event {
	case EventCreateRoom:
		var req RoomRequest
		if err := decodePayload(env, &req); err != nil {
			return err
		}
		_, err := d.registry.CreateRoom(req.RoomCode, req.UserName, c.ID)
		return err

	case EventJoinRoom:
		var req RoomRequest
		if err := decodePayload(env, &req); err != nil {
			return err
		}
		_, err := d.registry.JoinRoom(req.RoomCode, req.UserName, c.ID)
		return err

	case EventVote:
		var req VoteRequest
		if err := decodePayload(env, &req); err != nil {
			return err
		}
		_, err := d.coordinator.CastVote(req.RoomCode, req.UserName, models.Option(req.Option))
		return err

	default:
		return errUnknownEvent
	}
}

var errUnknownEvent = errors.New("unknown event")

// reply queues the error for a failed request back to its sender
func (d *Dispatcher) reply(c *Connection, event EventType, err error) {
	var perr *poll.Error
	switch {
	case errors.As(err, &perr):
		log.Debug().
			Str("connection_id", c.ID).
			Str("event_type", string(event)).
			Str("code", string(perr.Code)).
			Msg("request rejected")
		d.replies.Reply(c.ID, EventError, perr.Message)
	case errors.Is(err, errUnknownEvent):
		d.replies.Reply(c.ID, EventError, unknownEvent)
	default:
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("rejecting malformed payload")
		d.replies.Reply(c.ID, EventError, malformedMessage)
	}
}

// Disconnected removes the connection's participant, if any
func (d *Dispatcher) Disconnected(c *Connection) {
	res, err := d.registry.RemoveParticipant(c.ID)
	if errors.Is(err, poll.ErrParticipantNotFound) {
		log.Debug().Str("connection_id", c.ID).Msg("connection closed without joining a room")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to remove participant")
		return
	}

	log.Info().
		Str("connection_id", c.ID).
		Str("room_code", res.Code).
		Str("user_name", res.Name).
		Bool("room_closed", res.Closed).
		Time("last_ping", c.LastPing()).
		Msg("user disconnected")
}
