package models_test

import (
	"testing"
	"time"

	"github.com/mcdev12/petpoll/go/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestParticipant_CanVoteAt(t *testing.T) {
	joined := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := models.NewParticipant("conn-1", "Alice", joined)

	assert.False(t, p.HasVoted)
	assert.True(t, p.CanVoteAt(joined, models.VotingWindow))
	assert.True(t, p.CanVoteAt(joined.Add(10*time.Second), models.VotingWindow))
	assert.True(t, p.CanVoteAt(joined.Add(models.VotingWindow), models.VotingWindow), "window is inclusive")
	assert.False(t, p.CanVoteAt(joined.Add(models.VotingWindow+time.Millisecond), models.VotingWindow))
	assert.Equal(t, joined.Add(time.Minute), p.Deadline(models.VotingWindow))
}

func TestParticipant_View(t *testing.T) {
	joined := time.UnixMilli(1700000000123)
	p := models.NewParticipant("conn-1", "Alice", joined)
	p.HasVoted = true

	assert.Equal(t, models.ParticipantView{
		ID:       "conn-1",
		Name:     "Alice",
		HasVoted: true,
		JoinTime: 1700000000123,
	}, p.View())
}

func TestSnapshot_VotedCount(t *testing.T) {
	s := models.Snapshot{
		Participants: []models.ParticipantView{
			{Name: "Alice", HasVoted: true},
			{Name: "Bob"},
			{Name: "Carol", HasVoted: true},
		},
	}

	assert.Equal(t, 2, s.VotedCount())
}
