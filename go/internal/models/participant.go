package models

import "time"

// Participant is a named voter bound to one live connection
type Participant struct {
	ConnectionID string
	Name         string
	HasVoted     bool
	Choice       Option // set together with HasVoted
	JoinedAt     time.Time
}

// NewParticipant creates a participant that has not voted yet
func NewParticipant(connectionID, name string, joinedAt time.Time) *Participant {
	return &Participant{
		ConnectionID: connectionID,
		Name:         name,
		JoinedAt:     joinedAt,
	}
}

// Deadline returns the last instant at which a vote is still accepted
func (p *Participant) Deadline(window time.Duration) time.Time {
	return p.JoinedAt.Add(window)
}

// CanVoteAt reports whether now is still inside the participant's voting window
func (p *Participant) CanVoteAt(now time.Time, window time.Duration) bool {
	return !now.After(p.Deadline(window))
}

// View returns the broadcastable form of the participant
func (p *Participant) View() ParticipantView {
	return ParticipantView{
		ID:       p.ConnectionID,
		Name:     p.Name,
		HasVoted: p.HasVoted,
		JoinTime: p.JoinedAt.UnixMilli(),
	}
}
