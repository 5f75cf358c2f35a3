package model

import "time"

// SnapshotKey is the key the local snapshot is stored under.
const SnapshotKey = "klapi-league-state-v5"

// Seed returns the fixed initial league used when no valid snapshot exists.
// The single played GP is dated on now's local calendar day.
func Seed(now time.Time) State {
	return State{
		Players: []Player{
			{ID: "julia", Name: "Julia"},
			{ID: "oliwia", Name: "Oliwia"},
			{ID: "daniel", Name: "Daniel"},
			{ID: "celina", Name: "Celina"},
			{ID: "bartosz", Name: "Bartosz"},
		},
		Events: []GrandPrix{{
			ID:     "gp1",
			Date:   DateOf(now),
			Status: StatusPlayed,
			Rounds: Rounds{
				{PlayerID: "julia", Scores: Scores{1, 2, 1, 2, 2}},
				{PlayerID: "oliwia", Scores: Scores{2, 1, 2, 2, 3}},
				{PlayerID: "daniel", Scores: Scores{3, 3, 4, 1, 2}},
				{PlayerID: "celina", Scores: Scores{2, 2, 3, 3, 1}},
				{PlayerID: "bartosz", Scores: Scores{3, 3, 2, 2, 2}},
			},
		}},
		Posts: []Post{
			{
				ID: "p1", Title: "Season kick-off!", Author: "Bartek",
				Body:     "Kłapi League is live. The first GP is already behind us.",
				Date:     now.Add(-24 * time.Hour),
				Comments: []Comment{},
			},
			{
				ID: "p2", Title: "Rules", Author: "Oliwia",
				Body:     "5 rounds, lowest total wins. We play every week.",
				Date:     now.Add(-48 * time.Hour),
				Comments: []Comment{},
			},
			{
				ID: "p3", Title: "Next GP announcement", Author: "Bartek",
				Body:     "Join us on Saturday! We start at 19:00, usual place.",
				Date:     now.Add(-time.Hour),
				Comments: []Comment{},
			},
		},
		Logs: []LogEntry{{Timestamp: now, Kind: LogInit, Message: "League state initialized."}},
	}
}
