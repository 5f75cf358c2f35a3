// Package calendar holds the wall-clock date helpers of the league: today's
// date, countdowns, month grids and admin date input.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/okian/klapi/internal/domain/model"
)

// ErrUnrecognizedDate is returned when admin input is neither a calendar date
// nor a recognizable relative expression.
var ErrUnrecognizedDate = errors.New("unrecognized date")

const day = 24 * time.Hour

// Today returns the calendar date of now in now's location.
func Today(now time.Time) model.Date {
	return model.DateOf(now)
}

// DaysUntil returns the number of calendar days from now's local day to date.
// Past dates are negative.
func DaysUntil(date model.Date, now time.Time) (int, error) {
	target, err := date.In(time.UTC)
	if err != nil {
		return 0, err
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(target.Sub(today) / day), nil
}

// NextPlanned returns the earliest planned event by date.
func NextPlanned(events []model.GrandPrix) (model.GrandPrix, bool) {
	var (
		next  model.GrandPrix
		found bool
	)
	for _, g := range events {
		if !g.Planned() {
			continue
		}
		if !found || g.Date < next.Date {
			next, found = g, true
		}
	}
	return next, found
}

// Cell is one slot of a month grid. Leading blanks have Day 0.
type Cell struct {
	Day   int              `json:"day"`
	Date  model.Date       `json:"date,omitempty"`
	Event *model.GrandPrix `json:"event,omitempty"`
}

// Month lays out a Monday-first grid for the month. Each day carries the
// first event, in collection order, dated that day.
func Month(year int, month time.Month, events []model.GrandPrix) []Cell {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	lead := (int(first.Weekday()) + 6) % 7
	days := first.AddDate(0, 1, -1).Day()

	byDate := make(map[model.Date]model.GrandPrix, len(events))
	for _, g := range events {
		if _, taken := byDate[g.Date]; !taken {
			byDate[g.Date] = g
		}
	}

	cells := make([]Cell, lead, lead+days)
	for d := 1; d <= days; d++ {
		date := model.DateOf(time.Date(year, month, d, 0, 0, 0, 0, time.UTC))
		cell := Cell{Day: d, Date: date}
		if g, ok := byDate[date]; ok {
			cell.Event = &g
		}
		cells = append(cells, cell)
	}
	return cells
}

// ParseMonth parses YYYY-MM, defaulting to now's month when empty.
func ParseMonth(s string, now time.Time) (int, time.Month, error) {
	if strings.TrimSpace(s) == "" {
		return now.Year(), now.Month(), nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: month %q", ErrUnrecognizedDate, s)
	}
	return t.Year(), t.Month(), nil
}

// Parser turns admin input into a calendar date relative to the local clock.
type Parser struct {
	w *when.Parser
}

// NewParser returns a parser for YYYY-MM-DD and English relative dates such
// as "tomorrow" or "next saturday".
func NewParser() *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{w: w}
}

// Parse resolves input against now. Relative expressions are evaluated in
// now's location, so the result is the local calendar day.
func (p *Parser) Parse(input string, now time.Time) (model.Date, error) {
	input = strings.TrimSpace(input)
	if d, err := model.ParseDate(input); err == nil {
		return d, nil
	}
	r, err := p.w.Parse(strings.ToLower(input), now)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrUnrecognizedDate, input, err)
	}
	if r == nil {
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedDate, input)
	}
	return model.DateOf(r.Time.In(now.Location())), nil
}
