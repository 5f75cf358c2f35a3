package form

import (
	"github.com/okian/klapi/internal/domain/model"
)

// Point is one chart record: a calendar date and a value per player id.
type Point struct {
	Date   model.Date     `json:"date"`
	Values map[string]int `json:"values"`
}

// ScoreSeries returns every roster player's per-event sum for each played
// event. Players without an entry contribute 0.
func ScoreSeries(roster []model.Player, played []model.GrandPrix) []Point {
	out := make([]Point, 0, len(played))
	for _, g := range played {
		p := Point{Date: g.Date, Values: make(map[string]int, len(roster))}
		for _, pl := range roster {
			p.Values[pl.ID] = g.Rounds.Sum(pl.ID)
		}
		out = append(out, p)
	}
	return out
}

// RankSeries returns every roster player's placing for each played event.
// Players without an entry are omitted from that event's point.
func RankSeries(roster []model.Player, played []model.GrandPrix) []Point {
	out := make([]Point, 0, len(played))
	for _, g := range played {
		placings := g.Rounds.Placings()
		byID := make(map[string]int, len(placings))
		for _, pl := range placings {
			byID[pl.PlayerID] = pl.Position
		}
		p := Point{Date: g.Date, Values: make(map[string]int, len(roster))}
		for _, pl := range roster {
			if pos, ok := byID[pl.ID]; ok {
				p.Values[pl.ID] = pos
			}
		}
		out = append(out, p)
	}
	return out
}

// Bar is one participant's total in a single event.
type Bar struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Sum      int    `json:"sum"`
}

// LastEventBars returns the per-participant sums of the most recent played
// event in rounds order. Participants no longer on the roster are labelled
// with their id.
func LastEventBars(roster []model.Player, played []model.GrandPrix) []Bar {
	if len(played) == 0 {
		return nil
	}
	last := played[len(played)-1]
	names := make(map[string]string, len(roster))
	for _, p := range roster {
		names[p.ID] = p.Name
	}
	out := make([]Bar, 0, len(last.Rounds))
	for _, e := range last.Rounds {
		name, ok := names[e.PlayerID]
		if !ok {
			name = e.PlayerID
		}
		out = append(out, Bar{PlayerID: e.PlayerID, Name: name, Sum: e.Scores.Sum()})
	}
	return out
}
