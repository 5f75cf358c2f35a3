package simulate

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/okian/klapi/internal/domain/model"
)

const (
	// attendancePercent is the chance a player takes part in a given GP.
	attendancePercent = 80
	maxRoundScore     = 4
	daysBetweenEvents = 7
	maxNameAttempts   = 50
)

// GeneratedPlayer is a generated roster member.
type GeneratedPlayer struct {
	Name string
	Bio  string
}

// GeneratedEvent is a generated played GP.
type GeneratedEvent struct {
	Date   model.Date
	Rounds model.Rounds
}

// Season is a generated roster with its results.
type Season struct {
	Players []GeneratedPlayer
	Events  []GeneratedEvent
}

// Generate builds a season from cfg. Player names are unique by id, every GP
// has at least one participant and rounds are listed in shuffled order.
func Generate(cfg Config) (Season, error) {
	start, err := cfg.Start.In(time.UTC)
	if err != nil {
		return Season{}, fmt.Errorf("start date: %w", err)
	}
	f := gofakeit.New(cfg.Seed)

	var s Season
	seen := make(map[string]bool, cfg.Players)
	ids := make([]string, 0, cfg.Players)
	for len(s.Players) < cfg.Players {
		name := ""
		for attempt := 0; attempt < maxNameAttempts; attempt++ {
			candidate := f.FirstName() + " " + f.LastName()
			if !seen[model.PlayerID(candidate)] {
				name = candidate
				break
			}
		}
		if name == "" {
			return Season{}, fmt.Errorf("could not generate %d unique player names", cfg.Players)
		}
		seen[model.PlayerID(name)] = true
		ids = append(ids, model.PlayerID(name))
		s.Players = append(s.Players, GeneratedPlayer{Name: name, Bio: f.Sentence(f.Number(3, 8))})
	}

	for i := 0; i < cfg.Events && len(ids) > 0; i++ {
		order := append([]string(nil), ids...)
		f.ShuffleAnySlice(order)

		var rounds model.Rounds
		for _, id := range order {
			if f.Number(1, 100) > attendancePercent {
				continue
			}
			rounds = rounds.Set(id, scores(f))
		}
		if len(rounds) == 0 {
			rounds = rounds.Set(order[0], scores(f))
		}
		s.Events = append(s.Events, GeneratedEvent{
			Date:   model.DateOf(start.AddDate(0, 0, i*daysBetweenEvents)),
			Rounds: rounds,
		})
	}
	return s, nil
}

func scores(f *gofakeit.Faker) model.Scores {
	out := make(model.Scores, model.RoundsPerEvent)
	for i := range out {
		out[i] = f.Number(0, maxRoundScore)
	}
	return out
}
