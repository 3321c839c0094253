package poll_test

import (
	"sync"
	"testing"

	"github.com/mcdev12/petpoll/go/internal/models"
	"github.com/mcdev12/petpoll/go/internal/poll"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu      sync.Mutex
	changes []poll.Change
}

func (r *recorder) Notify(c poll.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) all() []poll.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]poll.Change(nil), r.changes...)
}

func (r *recorder) kinds() []poll.ChangeKind {
	var kinds []poll.ChangeKind
	for _, c := range r.all() {
		kinds = append(kinds, c.Kind)
	}
	return kinds
}

func (r *recorder) last() poll.Change {
	all := r.all()
	if len(all) == 0 {
		return poll.Change{}
	}
	return all[len(all)-1]
}

func names(s models.Snapshot) []string {
	out := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		out = append(out, p.Name)
	}
	return out
}

// assertRoomInvariants checks the properties every live room must satisfy
func assertRoomInvariants(t *testing.T, s models.Snapshot) {
	t.Helper()

	assert.NotEmpty(t, s.Participants, "live room has no participants")

	seen := make(map[string]bool)
	for _, p := range s.Participants {
		assert.False(t, seen[p.Name], "duplicate name %q", p.Name)
		seen[p.Name] = true
	}

	assert.GreaterOrEqual(t, s.Tally.Cats, 0)
	assert.GreaterOrEqual(t, s.Tally.Dogs, 0)
	assert.Equal(t, s.VotedCount(), s.Tally.Total(), "tally does not match voted participants")
}
