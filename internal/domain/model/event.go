// Package model contains the league entities shared by the calculators, the
// reconciler and the persistence adapters.
package model

// Status is the lifecycle status of a Grand Prix.
type Status string

// Grand Prix statuses. There is no transition from played back to planned.
const (
	StatusPlanned Status = "planned"
	StatusPlayed  Status = "played"
)

// RoundsPerEvent is the number of rounds every participant plays in one GP.
const RoundsPerEvent = 5

// GrandPrix is one scheduled or played league event.
// Planned events carry no rounds.
type GrandPrix struct {
	ID     string `json:"id" msgpack:"id"`
	Date   Date   `json:"date" msgpack:"date"`
	Status Status `json:"status" msgpack:"status"`
	Rounds Rounds `json:"rounds,omitempty" msgpack:"rounds,omitempty"`
}

// Played reports whether the event has results.
func (g GrandPrix) Played() bool { return g.Status == StatusPlayed }

// Planned reports whether the event is still waiting for results.
func (g GrandPrix) Planned() bool { return g.Status == StatusPlanned }

// Clone returns a deep copy.
func (g GrandPrix) Clone() GrandPrix {
	g.Rounds = g.Rounds.Clone()
	return g
}

// Validate checks the invariants of a stored event.
func (g GrandPrix) Validate() error {
	if g.ID == "" {
		return ErrMissingID
	}
	if _, err := ParseDate(string(g.Date)); err != nil {
		return err
	}
	switch g.Status {
	case StatusPlanned:
		if len(g.Rounds) > 0 {
			return ErrPlannedWithRounds
		}
	case StatusPlayed:
		return g.Rounds.Validate()
	default:
		return ErrInvalidStatus
	}
	return nil
}
