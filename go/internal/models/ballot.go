package models

import "time"

// Option is a ballot choice
type Option string

const (
	OptionCats Option = "cats"
	OptionDogs Option = "dogs"
)

// VotingWindow is how long after joining a participant may still vote
const VotingWindow = 60 * time.Second

// Options returns the fixed ballot in display order
func Options() []Option {
	return []Option{OptionCats, OptionDogs}
}

// Valid reports whether o is on the ballot
func (o Option) Valid() bool {
	for _, opt := range Options() {
		if o == opt {
			return true
		}
	}
	return false
}

// Tally holds the vote count per option
type Tally struct {
	Cats int `json:"cats"`
	Dogs int `json:"dogs"`
}

// Add counts one vote for o. Unknown options are ignored
func (t *Tally) Add(o Option) {
	switch o {
	case OptionCats:
		t.Cats++
	case OptionDogs:
		t.Dogs++
	}
}

// Remove withdraws one vote for o, never going below zero
func (t *Tally) Remove(o Option) {
	switch o {
	case OptionCats:
		if t.Cats > 0 {
			t.Cats--
		}
	case OptionDogs:
		if t.Dogs > 0 {
			t.Dogs--
		}
	}
}

// Total returns the number of votes counted
func (t Tally) Total() int {
	return t.Cats + t.Dogs
}
