package poll

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/petpoll/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Clock is the time source for join instants and vote checks.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock
type Clock interface {
	Now() time.Time
}

// Registry owns every live room and serializes all mutations to each one.
//
// Locking: mu guards the rooms and byConn maps; each room has its own
// lock. A goroutine may take mu while holding a room lock, never the
// other way around
type Registry struct {
	clock    Clock
	notifier Notifier

	mu     sync.RWMutex
	rooms  map[string]*room
	byConn map[string]string // connection id -> room code
}

// Removal reports what RemoveParticipant did
type Removal struct {
	Code     string
	Name     string
	Closed   bool // the room was deleted with its last participant
	Snapshot models.Snapshot
}

// RegistryStats is a point-in-time count of rooms and participants
type RegistryStats struct {
	Rooms        int `json:"active_rooms"`
	Participants int `json:"participants"`
}

// NewRegistry creates an empty registry. A nil clock means the real clock,
// a nil notifier drops changes
func NewRegistry(clock Clock, notifier Notifier) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Registry{
		clock:    clock,
		notifier: notifier,
		rooms:    make(map[string]*room),
		byConn:   make(map[string]string),
	}
}

// CreateRoom opens a room seeded with its creator as the only participant
func (reg *Registry) CreateRoom(code, name, connID string) (models.Snapshot, error) {
	code, err := normalizeRoomCode(code)
	if err != nil {
		return models.Snapshot{}, err
	}
	name, err = normalizeUserName(name)
	if err != nil {
		return models.Snapshot{}, err
	}

	now := reg.clock.Now()
	r := newRoom(code, models.NewParticipant(connID, name, now))

	// Unpublished until inserted below, so holding its lock first is free
	r.mu.Lock()
	defer r.mu.Unlock()

	reg.mu.Lock()
	if _, joined := reg.byConn[connID]; joined {
		reg.mu.Unlock()
		return models.Snapshot{}, ErrAlreadyInRoom
	}
	if _, exists := reg.rooms[code]; exists {
		reg.mu.Unlock()
		return models.Snapshot{}, ErrRoomExists
	}
	reg.rooms[code] = r
	reg.byConn[connID] = code
	reg.mu.Unlock()

	snap := r.snapshot()
	reg.notifier.Notify(Change{
		Kind:         ChangeRoomCreated,
		Code:         code,
		ConnectionID: connID,
		Name:         name,
		Snapshot:     snap,
		At:           now,
	})

	log.Info().
		Str("room_code", code).
		Str("user_name", name).
		Str("connection_id", connID).
		Msg("room created")

	return snap, nil
}

// JoinRoom appends a new participant to an existing room
func (reg *Registry) JoinRoom(code, name, connID string) (models.Snapshot, error) {
	code, err := normalizeRoomCode(code)
	if err != nil {
		return models.Snapshot{}, err
	}
	name, err = normalizeUserName(name)
	if err != nil {
		return models.Snapshot{}, err
	}

	reg.mu.RLock()
	_, joined := reg.byConn[connID]
	r := reg.rooms[code]
	reg.mu.RUnlock()

	if joined {
		return models.Snapshot{}, ErrAlreadyInRoom
	}
	if r == nil {
		return models.Snapshot{}, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Lost a race with the removal of the last participant
	if r.closed {
		return models.Snapshot{}, ErrRoomNotFound
	}
	if r.findByName(name) != nil {
		return models.Snapshot{}, ErrNameTaken
	}

	now := reg.clock.Now()
	r.participants = append(r.participants, models.NewParticipant(connID, name, now))

	reg.mu.Lock()
	reg.byConn[connID] = code
	reg.mu.Unlock()

	snap := r.snapshot()
	reg.notifier.Notify(Change{
		Kind:         ChangeParticipantJoined,
		Code:         code,
		ConnectionID: connID,
		Name:         name,
		Snapshot:     snap,
		At:           now,
	})

	log.Debug().
		Str("room_code", code).
		Str("user_name", name).
		Int("participants", len(r.participants)).
		Msg("participant joined")

	return snap, nil
}

// RemoveParticipant drops the participant bound to connID. When that was
// the last participant the room is deleted in the same critical section
func (reg *Registry) RemoveParticipant(connID string) (Removal, error) {
	reg.mu.RLock()
	code, joined := reg.byConn[connID]
	r := reg.rooms[code]
	reg.mu.RUnlock()

	if !joined || r == nil {
		return Removal{}, ErrParticipantNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Removal{}, ErrParticipantNotFound
	}
	i := r.indexOfConnection(connID)
	if i < 0 {
		return Removal{}, ErrParticipantNotFound
	}
	p := r.remove(i)

	res := Removal{Code: code, Name: p.Name, Closed: len(r.participants) == 0}

	reg.mu.Lock()
	delete(reg.byConn, connID)
	if res.Closed {
		r.closed = true
		if reg.rooms[code] == r {
			delete(reg.rooms, code)
		}
	}
	reg.mu.Unlock()

	kind := ChangeParticipantLeft
	if res.Closed {
		kind = ChangeRoomClosed
	}
	res.Snapshot = r.snapshot()
	reg.notifier.Notify(Change{
		Kind:         kind,
		Code:         code,
		ConnectionID: connID,
		Name:         p.Name,
		Snapshot:     res.Snapshot,
		At:           reg.clock.Now(),
	})

	if res.Closed {
		log.Info().Str("room_code", code).Msg("room is now empty and has been closed")
	} else {
		log.Debug().
			Str("room_code", code).
			Str("user_name", p.Name).
			Int("participants", len(r.participants)).
			Msg("participant left")
	}

	return res, nil
}

// Lookup returns a snapshot of the room with the given code
func (reg *Registry) Lookup(code string) (models.Snapshot, bool) {
	reg.mu.RLock()
	r := reg.rooms[code]
	reg.mu.RUnlock()
	if r == nil {
		return models.Snapshot{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return models.Snapshot{}, false
	}
	return r.snapshot(), true
}

// RoomOf returns the code of the room connID currently belongs to
func (reg *Registry) RoomOf(connID string) (string, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	code, ok := reg.byConn[connID]
	return code, ok
}

// Stats counts rooms and bound participants
func (reg *Registry) Stats() RegistryStats {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return RegistryStats{
		Rooms:        len(reg.rooms),
		Participants: len(reg.byConn),
	}
}

// withRoom runs fn with the room's lock held. fn never sees a closed room
func (reg *Registry) withRoom(code string, fn func(r *room) error) error {
	reg.mu.RLock()
	r := reg.rooms[code]
	reg.mu.RUnlock()
	if r == nil {
		return ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}
	return fn(r)
}
