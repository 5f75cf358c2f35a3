// Package stats derives per-player performance metrics from played events.
package stats

import (
	"math"

	"github.com/okian/klapi/internal/domain/model"
)

// Position is a player's placing in one event.
type Position struct {
	EventID  string     `json:"eventId"`
	Date     model.Date `json:"date"`
	Sum      int        `json:"sum"`
	Position int        `json:"position"`
}

// Stats are the derived metrics of one player.
type Stats struct {
	PlayerID    string     `json:"playerId"`
	Events      int        `json:"events"`
	AvgPerRound float64    `json:"avgPerRound"`
	AvgPerEvent float64    `json:"avgPerEvent"`
	Best        *int       `json:"best"`
	Worst       *int       `json:"worst"`
	MaxSpread   int        `json:"maxSpread"`
	Positions   []Position `json:"positions"`
	Wins        int        `json:"wins"`
	AvgPosition *float64   `json:"avgPosition"`
	BestRound   int        `json:"bestRound"`
}

// PositionValues returns the placings in chronological order.
func (s Stats) PositionValues() []int {
	out := make([]int, len(s.Positions))
	for i, p := range s.Positions {
		out[i] = p.Position
	}
	return out
}

// EventIDs returns the ids of the events behind Positions.
func (s Stats) EventIDs() []string {
	out := make([]string, len(s.Positions))
	for i, p := range s.Positions {
		out[i] = p.EventID
	}
	return out
}

// ForPlayer computes the player's metrics over played events sorted
// ascending by date. Events without an entry for the player are ignored.
func ForPlayer(playerID string, played []model.GrandPrix) Stats {
	st := Stats{PlayerID: playerID, Positions: []Position{}}

	var (
		rounds   int
		eventSum int
		roundObs [model.RoundsPerEvent]int
		roundTot [model.RoundsPerEvent]int
		posTotal int
		best     int
		worst    int
	)

	for _, g := range played {
		scores, ok := g.Rounds.Get(playerID)
		if !ok {
			continue
		}
		sum := scores.Sum()
		if st.Events == 0 {
			best, worst = sum, sum
		} else {
			best = min(best, sum)
			worst = max(worst, sum)
		}
		st.Events++
		eventSum += sum
		rounds += len(scores)
		st.MaxSpread = max(st.MaxSpread, scores.Spread())

		for i, v := range scores {
			if i < model.RoundsPerEvent {
				roundObs[i]++
				roundTot[i] += v
			}
		}

		pos, _ := g.Rounds.PositionOf(playerID)
		st.Positions = append(st.Positions, Position{EventID: g.ID, Date: g.Date, Sum: sum, Position: pos})
		posTotal += pos
		if pos == 1 {
			st.Wins++
		}
	}

	if rounds > 0 {
		st.AvgPerRound = float64(eventSum) / float64(rounds)
	}
	if st.Events > 0 {
		st.AvgPerEvent = float64(eventSum) / float64(st.Events)
		st.Best, st.Worst = &best, &worst
		avg := float64(posTotal) / float64(len(st.Positions))
		st.AvgPosition = &avg
	}

	// Unobserved rounds get +Inf so they only win when nothing was observed,
	// in which case the first round is reported.
	bestMean := math.Inf(1)
	for i := 0; i < model.RoundsPerEvent; i++ {
		mean := math.Inf(1)
		if roundObs[i] > 0 {
			mean = float64(roundTot[i]) / float64(roundObs[i])
		}
		if mean < bestMean {
			bestMean, st.BestRound = mean, i
		}
	}
	return st
}
