package poll

import (
	"sync"

	"github.com/mcdev12/petpoll/go/internal/models"
)

// room is the mutable state behind a room code. Every field below mu is
// guarded by it; participants and tally change together as one unit
type room struct {
	code string

	mu           sync.Mutex
	participants []*models.Participant // join order
	tally        models.Tally
	closed       bool // set once the room has left the registry
}

func newRoom(code string, creator *models.Participant) *room {
	return &room{
		code:         code,
		participants: []*models.Participant{creator},
	}
}

func (r *room) findByName(name string) *models.Participant {
	for _, p := range r.participants {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (r *room) indexOfConnection(connID string) int {
	for i, p := range r.participants {
		if p.ConnectionID == connID {
			return i
		}
	}
	return -1
}

// remove drops the participant at i and withdraws its vote so the tally
// keeps matching the number of voted participants
func (r *room) remove(i int) *models.Participant {
	p := r.participants[i]
	r.participants = append(r.participants[:i:i], r.participants[i+1:]...)
	if p.HasVoted {
		r.tally.Remove(p.Choice)
	}
	return p
}

func (r *room) snapshot() models.Snapshot {
	views := make([]models.ParticipantView, len(r.participants))
	for i, p := range r.participants {
		views[i] = p.View()
	}
	return models.Snapshot{
		Code:         r.code,
		Participants: views,
		Tally:        r.tally,
	}
}
