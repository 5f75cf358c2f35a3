// Package form projects finishing positions into recent-form tokens and
// chart-ready time series.
package form

import (
	"github.com/okian/klapi/internal/domain/model"
)

// Window is the number of most recent events shown as form.
const Window = 3

// Entry is one recent-form token linked to the event it came from.
type Entry struct {
	EventID  string `json:"eventId"`
	Position int    `json:"position"`
}

// Recent returns the last Window positions paired with their event ids,
// oldest first. When the slices differ in length they are aligned on the
// newest end and the unmatched head is ignored.
func Recent(positions []int, eventIDs []string) []Entry {
	n := min(len(positions), len(eventIDs), Window)
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = Entry{
			EventID:  eventIDs[len(eventIDs)-n+i],
			Position: positions[len(positions)-n+i],
		}
	}
	return out
}

// History returns a player's placings across played events (ascending by
// date) together with the ids of the events they were taken from. Events the
// player did not take part in are skipped.
func History(playerID string, played []model.GrandPrix) ([]int, []string) {
	var (
		positions []int
		ids       []string
	)
	for _, g := range played {
		if pos, ok := g.Rounds.PositionOf(playerID); ok {
			positions = append(positions, pos)
			ids = append(ids, g.ID)
		}
	}
	return positions, ids
}
