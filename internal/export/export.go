// Package export writes the league to an xlsx workbook.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okian/klapi/internal/domain/model"
	"github.com/okian/klapi/internal/domain/standings"
)

// Sheet names, in workbook order.
const (
	SheetStandings = "Standings"
	SheetEvents    = "Events"
	SheetScores    = "Scores"
)

// League is the data a workbook is built from.
type League struct {
	Players   []model.Player
	Events    []model.GrandPrix
	Standings []standings.Row
}

// Workbook builds the three-sheet workbook. Events are written in the order
// given; scores list one row per participant in finishing order.
func Workbook(l League) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetStandings); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetEvents, SheetScores} {
		if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create style: %w", err)
	}

	names := make(map[string]string, len(l.Players))
	for _, p := range l.Players {
		names[p.ID] = p.Name
	}
	nameOf := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return id
	}

	sheets := map[string][][]any{
		SheetStandings: standingsRows(l.Standings),
		SheetEvents:    eventRows(l.Events, nameOf),
		SheetScores:    scoreRows(l.Events, nameOf),
	}
	for _, sheet := range []string{SheetStandings, SheetEvents, SheetScores} {
		if err := writeRows(f, sheet, sheets[sheet], bold); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

// Write builds the workbook and streams it to w.
func Write(w io.Writer, l League) error {
	f, err := Workbook(l)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, axis, &rows[i]); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func standingsRows(rows []standings.Row) [][]any {
	out := [][]any{{"Rank", "Player", "Total", "Wins", "Gap", "Form"}}
	for i, r := range rows {
		form := make([]string, 0, len(r.Form))
		for _, e := range r.Form {
			form = append(form, fmt.Sprint(e.Position))
		}
		out = append(out, []any{i + 1, r.Player.Name, r.Total, r.Wins, r.Gap, strings.Join(form, " ")})
	}
	return out
}

func eventRows(events []model.GrandPrix, nameOf func(string) string) [][]any {
	out := [][]any{{"Date", "Status", "Participants", "Winners", "Winning sum"}}
	for _, g := range events {
		row := []any{g.Date.String(), string(g.Status), len(g.Rounds), "", ""}
		if low, ok := g.Rounds.MinSum(); ok {
			var winners []string
			for _, pl := range g.Rounds.Placings() {
				if pl.Sum == low {
					winners = append(winners, nameOf(pl.PlayerID))
				}
			}
			row[3], row[4] = strings.Join(winners, ", "), low
		}
		out = append(out, row)
	}
	return out
}

func scoreRows(events []model.GrandPrix, nameOf func(string) string) [][]any {
	header := []any{"Date", "Player", "Position"}
	for i := 1; i <= model.RoundsPerEvent; i++ {
		header = append(header, fmt.Sprintf("R%d", i))
	}
	header = append(header, "Sum")

	out := [][]any{header}
	for _, g := range events {
		if !g.Played() {
			continue
		}
		for _, pl := range g.Rounds.Placings() {
			scores, _ := g.Rounds.Get(pl.PlayerID)
			row := []any{g.Date.String(), nameOf(pl.PlayerID), pl.Position}
			for _, s := range scores {
				row = append(row, s)
			}
			for i := len(scores); i < model.RoundsPerEvent; i++ {
				row = append(row, "")
			}
			out = append(out, append(row, pl.Sum))
		}
	}
	return out
}
