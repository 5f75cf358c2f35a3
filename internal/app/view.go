package service

import (
	"time"

	"github.com/okian/klapi/internal/domain/form"
	"github.com/okian/klapi/internal/domain/model"
	"github.com/okian/klapi/internal/domain/standings"
	"github.com/okian/klapi/internal/domain/stats"
)

// View is everything derived from one confirmed state. A View is never
// modified after it is built; readers may share it freely.
type View struct {
	State       model.State
	Played      []model.GrandPrix
	Planned     []model.GrandPrix
	Standings   []standings.Row
	ScoreSeries []form.Point
	RankSeries  []form.Point
	LastBars    []form.Bar
	Stats       map[string]stats.Stats
	Revisions   map[model.Collection]uint64
	ComputedAt  time.Time
}

// buildView runs every calculator over state.
func buildView(state model.State, revs map[model.Collection]uint64, now time.Time) *View {
	played := state.Played()
	v := &View{
		State:       state,
		Played:      played,
		Planned:     state.Planned(),
		Standings:   standings.Calculate(state.Players, played),
		ScoreSeries: form.ScoreSeries(state.Players, played),
		RankSeries:  form.RankSeries(state.Players, played),
		LastBars:    form.LastEventBars(state.Players, played),
		Stats:       make(map[string]stats.Stats, len(state.Players)),
		Revisions:   make(map[model.Collection]uint64, len(revs)),
		ComputedAt:  now,
	}
	for _, p := range state.Players {
		v.Stats[p.ID] = stats.ForPlayer(p.ID, played)
	}
	for c, r := range revs {
		v.Revisions[c] = r
	}
	return v
}
