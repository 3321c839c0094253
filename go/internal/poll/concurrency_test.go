package poll_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/petpoll/go/internal/models"
	"github.com/mcdev12/petpoll/go/internal/poll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ConcurrentCreateSameCode(t *testing.T) {
	reg := poll.NewRegistry(clockwork.NewFakeClock(), nil)

	const n = 50
	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := reg.CreateRoom("r1", fmt.Sprintf("user-%d", i), fmt.Sprintf("conn-%d", i))
			if err == nil {
				created.Add(1)
				return
			}
			assert.ErrorIs(t, err, poll.ErrRoomExists)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	snap, ok := reg.Lookup("r1")
	require.True(t, ok)
	assert.Len(t, snap.Participants, 1)
}

func TestRegistry_ConcurrentJoinAndVote(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := poll.NewRegistry(clock, nil)
	coord := poll.NewCoordinator(reg, clock)
	_, err := reg.CreateRoom("r1", "host", "conn-host")
	require.NoError(t, err)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("user-%d", i)
			if _, err := reg.JoinRoom("r1", name, fmt.Sprintf("conn-%d", i)); err != nil {
				t.Errorf("join %s: %v", name, err)
				return
			}
			option := models.OptionCats
			if i%2 == 1 {
				option = models.OptionDogs
			}
			// Each participant hammers a few times; only the first may count
			for j := 0; j < 3; j++ {
				_, err := coord.CastVote("r1", name, option)
				if j > 0 {
					assert.ErrorIs(t, err, poll.ErrAlreadyVoted)
				}
			}
		}(i)
	}
	wg.Wait()

	snap, ok := reg.Lookup("r1")
	require.True(t, ok)
	assert.Len(t, snap.Participants, n+1)
	assert.Equal(t, models.Tally{Cats: n / 2, Dogs: n / 2}, snap.Tally)
	assertRoomInvariants(t, snap)
}

func TestRegistry_ConcurrentJoinWhileClosing(t *testing.T) {
	// A join racing the removal of the last participant either lands in the
	// old room before it closes or sees the code as free; never a zombie room
	for round := 0; round < 200; round++ {
		reg := poll.NewRegistry(clockwork.NewFakeClock(), nil)
		_, err := reg.CreateRoom("r1", "Alice", "conn-a")
		require.NoError(t, err)

		var wg sync.WaitGroup
		var joinErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = reg.RemoveParticipant("conn-a")
		}()
		go func() {
			defer wg.Done()
			_, joinErr = reg.JoinRoom("r1", "Bob", "conn-b")
		}()
		wg.Wait()

		snap, ok := reg.Lookup("r1")
		if joinErr == nil {
			require.True(t, ok, "round %d: joined room vanished", round)
			assert.Equal(t, []string{"Bob"}, names(snap))
			assertRoomInvariants(t, snap)
		} else {
			require.ErrorIs(t, joinErr, poll.ErrRoomNotFound)
			assert.False(t, ok, "round %d: empty room left in registry", round)
			_, bound := reg.RoomOf("conn-b")
			assert.False(t, bound)
		}
	}
}

func TestRegistry_NotifyOrderPerRoom(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &recorder{}
	reg := poll.NewRegistry(clock, rec)
	coord := poll.NewCoordinator(reg, clock)
	_, err := reg.CreateRoom("r1", "host", "conn-host")
	require.NoError(t, err)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("user-%d", i)
			if _, err := reg.JoinRoom("r1", name, fmt.Sprintf("conn-%d", i)); err == nil {
				_, _ = coord.CastVote("r1", name, models.OptionCats)
			}
		}(i)
	}
	wg.Wait()

	// Notifications observed in order must show monotonically growing state
	prevMembers, prevVotes := 0, 0
	for _, c := range rec.all() {
		members, votes := len(c.Snapshot.Participants), c.Snapshot.Tally.Total()
		assert.GreaterOrEqual(t, members, prevMembers)
		assert.GreaterOrEqual(t, votes, prevVotes)
		prevMembers, prevVotes = members, votes
	}
	assert.Equal(t, n+1, prevMembers)
	assert.Equal(t, n, prevVotes)
}
