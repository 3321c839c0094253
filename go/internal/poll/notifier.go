package poll

import (
	"time"

	"github.com/mcdev12/petpoll/go/internal/models"
)

// ChangeKind says which mutation produced a Change
type ChangeKind string

const (
	ChangeRoomCreated       ChangeKind = "RoomCreated"
	ChangeParticipantJoined ChangeKind = "ParticipantJoined"
	ChangeVoteCast          ChangeKind = "VoteCast"
	ChangeParticipantLeft   ChangeKind = "ParticipantLeft"
	ChangeRoomClosed        ChangeKind = "RoomClosed"
)

// Change describes one applied mutation of a room
type Change struct {
	Kind         ChangeKind
	Code         string
	ConnectionID string // connection that caused the change
	Name         string
	Option       models.Option // VoteCast only
	Snapshot     models.Snapshot
	At           time.Time
}

// Notifier receives every applied change. Notify is called while the
// room's lock is held, so calls for one room arrive in application order.
// Implementations must not call back into the Registry
type Notifier interface {
	Notify(change Change)
}

// MultiNotifier forwards each change to every notifier in order
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(change Change) {
	for _, n := range m {
		if n != nil {
			n.Notify(change)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(Change) {}
