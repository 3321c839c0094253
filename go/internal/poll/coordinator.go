package poll

import (
	"strings"
	"time"

	"github.com/mcdev12/petpoll/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Coordinator validates and applies votes against rooms in a Registry
type Coordinator struct {
	registry *Registry
	clock    Clock
	window   time.Duration
}

// NewCoordinator creates a vote coordinator. A nil clock means the
// registry's clock, so join instants and vote checks share a time source
func NewCoordinator(registry *Registry, clock Clock) *Coordinator {
	if clock == nil {
		clock = registry.clock
	}
	return &Coordinator{
		registry: registry,
		clock:    clock,
		window:   models.VotingWindow,
	}
}

// CastVote records name's vote for option, evaluated at the current time
func (c *Coordinator) CastVote(code, name string, option models.Option) (models.Snapshot, error) {
	return c.CastVoteAt(code, name, option, c.clock.Now())
}

// CastVoteAt records a vote as of now. Checks run in a fixed order and the
// first failure wins; nothing is changed unless every check passes
func (c *Coordinator) CastVoteAt(code, name string, option models.Option, now time.Time) (models.Snapshot, error) {
	code, name = strings.TrimSpace(code), strings.TrimSpace(name)

	var snap models.Snapshot
	err := c.registry.withRoom(code, func(r *room) error {
		if !option.Valid() {
			return ErrInvalidOption
		}
		p := r.findByName(name)
		if p == nil {
			return ErrParticipantNotRecognized
		}
		if !p.CanVoteAt(now, c.window) {
			return ErrDeadlineExpired
		}
		if p.HasVoted {
			return ErrAlreadyVoted
		}

		p.HasVoted = true
		p.Choice = option
		r.tally.Add(option)

		snap = r.snapshot()
		c.registry.notifier.Notify(Change{
			Kind:         ChangeVoteCast,
			Code:         r.code,
			ConnectionID: p.ConnectionID,
			Name:         p.Name,
			Option:       option,
			Snapshot:     snap,
			At:           now,
		})
		return nil
	})
	if err != nil {
		log.Debug().
			Err(err).
			Str("room_code", code).
			Str("user_name", name).
			Str("option", string(option)).
			Msg("vote rejected")
		return models.Snapshot{}, err
	}

	log.Debug().
		Str("room_code", code).
		Str("user_name", name).
		Str("option", string(option)).
		Int("cats", snap.Tally.Cats).
		Int("dogs", snap.Tally.Dogs).
		Msg("vote counted")

	return snap, nil
}
