package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mcdev12/petpoll/go/internal/models"
	"github.com/mcdev12/petpoll/go/internal/poll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource map[string]*Connection

func (f fakeSource) Connection(id string) *Connection { return f[id] }

func newTestConnection(id string, buffer int) *Connection {
	return &Connection{ID: id, send: make(chan []byte, buffer)}
}

func drain(t *testing.T, c *Connection) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return out
			}
			var env Envelope
			require.NoError(t, json.Unmarshal(frame, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func eventsOf(envs []Envelope) []EventType {
	out := make([]EventType, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Event)
	}
	return out
}

func snapshotOf(code string, names ...string) models.Snapshot {
	s := models.Snapshot{Code: code}
	for _, n := range names {
		s.Participants = append(s.Participants, models.ParticipantView{ID: "conn-" + n, Name: n})
	}
	return s
}

func TestBroadcaster_JoinSequence(t *testing.T) {
	alice := newTestConnection("conn-alice", 16)
	bob := newTestConnection("conn-bob", 16)
	b := NewBroadcaster(fakeSource{alice.ID: alice, bob.ID: bob}, 16)

	b.handleChange(poll.Change{Kind: poll.ChangeRoomCreated, Code: "r1", ConnectionID: alice.ID, Name: "alice", Snapshot: snapshotOf("r1", "alice")})
	assert.Equal(t, []EventType{EventRoomCreated, EventUpdateUserList, EventUpdateVotes}, eventsOf(drain(t, alice)))

	b.handleChange(poll.Change{Kind: poll.ChangeParticipantJoined, Code: "r1", ConnectionID: bob.ID, Name: "bob", Snapshot: snapshotOf("r1", "alice", "bob")})

	bobEvents := drain(t, bob)
	assert.Equal(t, []EventType{EventRoomJoined, EventNewUserAlert, EventUpdateUserList, EventUpdateVotes}, eventsOf(bobEvents))
	assert.JSONEq(t, `"r1"`, string(bobEvents[0].Data))
	assert.JSONEq(t, `"bob"`, string(bobEvents[1].Data))

	aliceEvents := drain(t, alice)
	assert.Equal(t, []EventType{EventNewUserAlert, EventUpdateUserList, EventUpdateVotes}, eventsOf(aliceEvents))

	var users []models.ParticipantView
	require.NoError(t, json.Unmarshal(aliceEvents[1].Data, &users))
	assert.Len(t, users, 2)
	assert.JSONEq(t, `{"cats":0,"dogs":0}`, string(aliceEvents[2].Data))

	assert.Equal(t, "r1", bob.RoomCode())
}

func TestBroadcaster_SubscriptionLifecycle(t *testing.T) {
	alice := newTestConnection("conn-alice", 16)
	bob := newTestConnection("conn-bob", 16)
	b := NewBroadcaster(fakeSource{alice.ID: alice, bob.ID: bob}, 16)

	b.handleChange(poll.Change{Kind: poll.ChangeRoomCreated, Code: "r1", ConnectionID: alice.ID, Snapshot: snapshotOf("r1", "alice")})
	b.handleChange(poll.Change{Kind: poll.ChangeParticipantJoined, Code: "r1", ConnectionID: bob.ID, Snapshot: snapshotOf("r1", "alice", "bob")})
	drain(t, alice)
	drain(t, bob)

	sub, ok := b.Subscription(bob.ID)
	require.True(t, ok)
	assert.Equal(t, "r1", sub.Code)

	b.handleChange(poll.Change{Kind: poll.ChangeParticipantLeft, Code: "r1", ConnectionID: alice.ID, Snapshot: snapshotOf("r1", "bob")})

	_, ok = b.Subscription(alice.ID)
	assert.False(t, ok)
	assert.Empty(t, alice.RoomCode())
	assert.Empty(t, drain(t, alice), "a leaver gets nothing further")

	bobEvents := drain(t, bob)
	assert.Equal(t, []EventType{EventUserLeftAlert, EventUpdateUserList, EventUpdateVotes}, eventsOf(bobEvents))
	assert.JSONEq(t, `"A user has left"`, string(bobEvents[0].Data))

	b.handleChange(poll.Change{Kind: poll.ChangeRoomClosed, Code: "r1", ConnectionID: bob.ID})

	channels, subs := b.Stats()
	assert.Zero(t, channels)
	assert.Zero(t, subs)
	assert.Empty(t, drain(t, bob))
	assert.Empty(t, bob.RoomCode())
}

func TestBroadcaster_SkipsVanishedConnection(t *testing.T) {
	b := NewBroadcaster(fakeSource{}, 16)

	b.handleChange(poll.Change{Kind: poll.ChangeRoomCreated, Code: "r1", ConnectionID: "gone", Snapshot: snapshotOf("r1", "ghost")})

	channels, subs := b.Stats()
	assert.Zero(t, channels)
	assert.Zero(t, subs)
}

func TestBroadcaster_ClosesSlowConnection(t *testing.T) {
	slow := newTestConnection("conn-slow", 1)
	b := NewBroadcaster(fakeSource{slow.ID: slow}, 16)

	// roomCreated fills the buffer; the snapshot overflows it
	b.handleChange(poll.Change{Kind: poll.ChangeRoomCreated, Code: "r1", ConnectionID: slow.ID, Snapshot: snapshotOf("r1", "slow")})

	assert.True(t, slow.Closed())
	assert.False(t, slow.Enqueue([]byte("late")))
}

func TestBroadcaster_RepliesKeepQueueOrder(t *testing.T) {
	alice := newTestConnection("conn-alice", 16)
	b := NewBroadcaster(fakeSource{alice.ID: alice}, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Start(ctx)

	b.Notify(poll.Change{Kind: poll.ChangeRoomCreated, Code: "r1", ConnectionID: alice.ID, Snapshot: snapshotOf("r1", "alice")})
	b.Reply(alice.ID, EventError, "You are already in a room.")
	b.Reply("conn-gone", EventError, "nobody listening")

	require.Eventually(t, func() bool { return len(alice.send) == 4 }, 2*time.Second, 5*time.Millisecond)

	got := drain(t, alice)
	assert.Equal(t, []EventType{EventRoomCreated, EventUpdateUserList, EventUpdateVotes, EventError}, eventsOf(got))
	assert.JSONEq(t, `"You are already in a room."`, string(got[3].Data))
}

func TestBroadcaster_NotifyAfterStop(t *testing.T) {
	b := NewBroadcaster(fakeSource{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(done)
	}()
	cancel()
	<-done

	finished := make(chan struct{})
	go func() {
		b.Notify(poll.Change{Kind: poll.ChangeVoteCast, Code: "r1"})
		b.Notify(poll.Change{Kind: poll.ChangeVoteCast, Code: "r1"})
		b.Reply("conn-alice", EventError, "late")
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue blocked after the broadcaster stopped")
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000/"})

	withOrigin := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, check(withOrigin("")), "non-browser clients send no origin")
	assert.True(t, check(withOrigin("http://localhost:3000")))
	assert.False(t, check(withOrigin("http://evil.test")))
	assert.True(t, originChecker([]string{"*"})(withOrigin("http://anything.test")))
}
