package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/okian/klapi/internal/domain/calendar"
	"github.com/okian/klapi/internal/domain/form"
	"github.com/okian/klapi/internal/domain/model"
	"github.com/okian/klapi/internal/domain/standings"
	"github.com/okian/klapi/internal/domain/stats"
)

const homePosts = 3

// HomePage is the landing summary.
type HomePage struct {
	Today     model.Date       `json:"today"`
	Leader    *standings.Row   `json:"leader,omitempty"`
	Standings []standings.Row  `json:"standings"`
	Next      *model.GrandPrix `json:"next,omitempty"`
	DaysUntil *int             `json:"daysUntil,omitempty"`
	Last      *model.GrandPrix `json:"last,omitempty"`
	LastBars  []form.Bar       `json:"lastBars"`
	Posts     []model.Post     `json:"posts"`
}

// PlayerPage is one player's profile with derived stats.
type PlayerPage struct {
	Player model.Player  `json:"player"`
	Rank   int           `json:"rank"`
	Row    standings.Row `json:"standing"`
	Stats  stats.Stats   `json:"stats"`
	Form   []form.Entry  `json:"form"`
}

// EventLine is one roster player's result in an event. Played is false for a
// zero-filled line.
type EventLine struct {
	PlayerID string       `json:"playerId"`
	Name     string       `json:"name"`
	Scores   model.Scores `json:"scores"`
	Sum      int          `json:"sum"`
	Position int          `json:"position"`
	Played   bool         `json:"played"`
}

// EventPage is one event with its results table.
type EventPage struct {
	Event model.GrandPrix `json:"event"`
	Lines []EventLine     `json:"lines"`
}

// Home builds the landing summary.
func (s *Service) Home() HomePage {
	v := s.View()
	now := s.now()
	page := HomePage{
		Today:     calendar.Today(now),
		Standings: v.Standings,
		LastBars:  v.LastBars,
		Posts:     v.State.Feed(),
	}
	if len(page.Posts) > homePosts {
		page.Posts = page.Posts[:homePosts]
	}
	if row, ok := standings.Leader(v.Standings); ok {
		page.Leader = &row
	}
	if next, ok := calendar.NextPlanned(v.Planned); ok {
		page.Next = &next
		if days, err := calendar.DaysUntil(next.Date, now); err == nil {
			page.DaysUntil = &days
		}
	}
	if n := len(v.Played); n > 0 {
		last := v.Played[n-1]
		page.Last = &last
	}
	return page
}

// Standings returns the league table.
func (s *Service) Standings() []standings.Row {
	return s.View().Standings
}

// Players returns the roster in roster order.
func (s *Service) Players() []model.Player {
	return s.View().State.Players
}

// Player returns a roster player's page.
func (s *Service) Player(id string) (PlayerPage, error) {
	v := s.View()
	p, ok := v.State.FindPlayer(id)
	if !ok {
		return PlayerPage{}, fmt.Errorf("player %s: %w", id, ErrNotFound)
	}
	page := PlayerPage{Player: p, Stats: v.Stats[id]}
	for i, row := range v.Standings {
		if row.Player.ID == id {
			page.Rank, page.Row = i+1, row
			break
		}
	}
	page.Form = form.Recent(page.Stats.PositionValues(), page.Stats.EventIDs())
	return page, nil
}

// Events returns every event sorted by date, planned and played alike.
func (s *Service) Events() []model.GrandPrix {
	out := append([]model.GrandPrix(nil), s.View().State.Events...)
	model.SortEvents(out)
	return out
}

// Event returns an event page. Every roster player gets a line in roster
// order, zero-filled when absent from the event, then lines are stable-sorted
// by sum. Participants no longer on the roster are not listed.
func (s *Service) Event(id string) (EventPage, error) {
	v := s.View()
	g, ok := v.State.FindEvent(id)
	if !ok {
		return EventPage{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	page := EventPage{Event: g, Lines: make([]EventLine, 0, len(v.State.Players))}
	for _, p := range v.State.Players {
		line := EventLine{PlayerID: p.ID, Name: p.Name}
		scores, played := g.Rounds.Get(p.ID)
		line.Played = played
		line.Scores = make(model.Scores, model.RoundsPerEvent)
		if played {
			line.Scores = append(model.Scores(nil), scores...)
		}
		line.Sum = line.Scores.Sum()
		page.Lines = append(page.Lines, line)
	}
	sort.SliceStable(page.Lines, func(i, j int) bool { return page.Lines[i].Sum < page.Lines[j].Sum })
	for i := range page.Lines {
		page.Lines[i].Position = i + 1
	}
	return page, nil
}

// Calendar returns the month grid with events.
func (s *Service) Calendar(year int, month time.Month) []calendar.Cell {
	return calendar.Month(year, month, s.View().State.Events)
}

// Series returns the chart series.
func (s *Service) Series() (scores, ranks []form.Point) {
	v := s.View()
	return v.ScoreSeries, v.RankSeries
}

// Posts returns the bulletin newest first.
func (s *Service) Posts() []model.Post {
	return s.View().State.Feed()
}

// Post returns one post.
func (s *Service) Post(id string) (model.Post, error) {
	p, ok := s.View().State.FindPost(id)
	if !ok {
		return model.Post{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// Logs returns up to limit audit entries, newest first; entries with equal
// timestamps come latest-appended first. limit <= 0 returns all.
func (s *Service) Logs(limit int) []model.LogEntry {
	src := s.View().State.Logs
	logs := make([]model.LogEntry, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		logs = append(logs, src[i])
	}
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].Timestamp.After(logs[j].Timestamp) })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs
}
