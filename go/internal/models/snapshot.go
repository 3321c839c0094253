package models

// ParticipantView is what room members see about each other
type ParticipantView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	HasVoted bool   `json:"hasVoted"`
	JoinTime int64  `json:"joinTime"` // unix millis
}

// Snapshot is a point-in-time copy of a room's membership and tally
type Snapshot struct {
	Code         string            `json:"roomCode"`
	Participants []ParticipantView `json:"participants"`
	Tally        Tally             `json:"votes"`
}

// VotedCount returns how many participants in the snapshot have voted
func (s Snapshot) VotedCount() int {
	n := 0
	for _, p := range s.Participants {
		if p.HasVoted {
			n++
		}
	}
	return n
}
