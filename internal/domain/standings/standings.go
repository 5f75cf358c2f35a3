// Package standings builds the league table. Lower totals rank higher.
package standings

import (
	"sort"

	"github.com/okian/klapi/internal/domain/form"
	"github.com/okian/klapi/internal/domain/model"
)

// Row is one line of the league table.
type Row struct {
	Player model.Player `json:"player"`
	Total  int          `json:"total"`
	Wins   int          `json:"wins"`
	Gap    int          `json:"gap"`
	Form   []form.Entry `json:"form"`
}

// Calculate ranks every roster player over the played events, which must be
// sorted ascending by date.
//
// A player without an entry in an event contributes 0 to their total. A win is
// credited to every participant whose sum equals the event minimum, so ties
// share the win. Rows with equal totals keep roster order; there is no other
// tie-break. Gap is measured against the first row.
func Calculate(roster []model.Player, played []model.GrandPrix) []Row {
	minima := make([]int, len(played))
	hasMin := make([]bool, len(played))
	for i, g := range played {
		minima[i], hasMin[i] = g.Rounds.MinSum()
	}

	rows := make([]Row, 0, len(roster))
	for _, p := range roster {
		row := Row{Player: p}
		for i, g := range played {
			scores, ok := g.Rounds.Get(p.ID)
			row.Total += scores.Sum()
			if ok && hasMin[i] && scores.Sum() == minima[i] {
				row.Wins++
			}
		}
		row.Form = form.Recent(form.History(p.ID, played))
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Total < rows[j].Total })

	if len(rows) > 0 {
		leader := rows[0].Total
		for i := range rows {
			rows[i].Gap = rows[i].Total - leader
		}
	}
	return rows
}

// Leader returns the first row, false for an empty roster.
func Leader(rows []Row) (Row, bool) {
	if len(rows) == 0 {
		return Row{}, false
	}
	return rows[0], true
}
