package gateway

import (
	"encoding/json"
	"fmt"
)

// EventType names a message on the wire
type EventType string

// Client -> server
const (
	EventCreateRoom EventType = "createRoom"
	EventJoinRoom   EventType = "joinRoom"
	EventVote       EventType = "vote"
)

// Server -> client
const (
	EventRoomCreated    EventType = "roomCreated"
	EventRoomJoined     EventType = "roomJoined"
	EventError          EventType = "error"
	EventUpdateUserList EventType = "updateUserList"
	EventUpdateVotes    EventType = "updateVotes"
	EventNewUserAlert   EventType = "newUserAlert"
	EventUserLeftAlert  EventType = "userLeftAlert"
)

// UserLeftMessage is the text of every userLeftAlert
const UserLeftMessage = "A user has left"

// Envelope is the frame carried by every WebSocket text message
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomRequest is the payload of createRoom and joinRoom
type RoomRequest struct {
	RoomCode string `json:"roomCode"`
	UserName string `json:"userName"`
}

// VoteRequest is the payload of vote
type VoteRequest struct {
	RoomCode string `json:"roomCode"`
	Option   string `json:"option"`
	UserName string `json:"userName"`
}

// encodeEvent marshals payload into an envelope for event
func encodeEvent(event EventType, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", event, err)
	}
	return frame, nil
}

// decodeEnvelope parses an inbound frame
func decodeEnvelope(message []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("envelope has no event")
	}
	return env, nil
}

// decodePayload parses the data of an envelope into v
func decodePayload(env Envelope, v interface{}) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s has no data", env.Event)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", env.Event, err)
	}
	return nil
}
