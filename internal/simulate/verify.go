package simulate

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/go-cmp/cmp"

	"github.com/okian/klapi/internal/domain/model"
	"github.com/okian/klapi/internal/domain/standings"
)

// ErrMismatch is returned when the published standings break an invariant.
var ErrMismatch = errors.New("standings mismatch")

// Source is what Verify reads from the server.
type Source interface {
	Players(ctx context.Context) ([]model.Player, error)
	Events(ctx context.Context) ([]model.GrandPrix, error)
	Standings(ctx context.Context) ([]standings.Row, error)
}

// Verify fetches the roster, events and standings and checks the standings
// against a local recompute over the same data. It returns the number of rows
// checked.
func Verify(ctx context.Context, src Source) (int, error) {
	players, err := src.Players(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch players: %w", err)
	}
	events, err := src.Events(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch events: %w", err)
	}
	rows, err := src.Standings(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch standings: %w", err)
	}

	played := make([]model.GrandPrix, 0, len(events))
	for _, g := range events {
		if g.Played() {
			played = append(played, g)
		}
	}
	model.SortEvents(played)

	if err := CheckRows(players, played, rows); err != nil {
		return len(rows), err
	}
	return len(rows), nil
}

type rowKey struct {
	ID    string
	Total int
	Wins  int
	Gap   int
}

func keys(rows []standings.Row) []rowKey {
	out := make([]rowKey, len(rows))
	for i, r := range rows {
		out[i] = rowKey{ID: r.Player.ID, Total: r.Total, Wins: r.Wins, Gap: r.Gap}
	}
	return out
}

// CheckRows validates rows for roster over played.
func CheckRows(roster []model.Player, played []model.GrandPrix, rows []standings.Row) error {
	var errs []error
	if len(rows) != len(roster) {
		errs = append(errs, fmt.Errorf("%w: %d rows for %d players", ErrMismatch, len(rows), len(roster)))
	}

	if !sort.SliceIsSorted(rows, func(i, j int) bool { return rows[i].Total < rows[j].Total }) {
		errs = append(errs, fmt.Errorf("%w: rows are not ordered by total", ErrMismatch))
	}

	want := 0
	for _, p := range roster {
		for _, g := range played {
			want += g.Rounds.Sum(p.ID)
		}
	}
	got := 0
	for _, r := range rows {
		got += r.Total
	}
	if got != want {
		errs = append(errs, fmt.Errorf("%w: totals add up to %d, rounds to %d", ErrMismatch, got, want))
	}

	if len(rows) > 0 {
		lowest := rows[0].Total
		for _, r := range rows {
			if (r.Gap == 0) != (r.Total == lowest) {
				errs = append(errs, fmt.Errorf("%w: %s has gap %d at total %d", ErrMismatch, r.Player.ID, r.Gap, r.Total))
			}
		}
	}

	if diff := cmp.Diff(keys(standings.Calculate(roster, played)), keys(rows)); diff != "" {
		errs = append(errs, fmt.Errorf("%w: local recompute differs (-local +server):\n%s", ErrMismatch, diff))
	}
	return errors.Join(errs...)
}
