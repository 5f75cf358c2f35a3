package simulate

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/klapi/internal/adapters/http/api"
	"github.com/okian/klapi/internal/adapters/repository/snapshot"
	service "github.com/okian/klapi/internal/app"
	"github.com/okian/klapi/internal/domain/model"
	"github.com/okian/klapi/internal/domain/standings"
	"github.com/okian/klapi/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func fixedClock() time.Time { return time.Date(2024, 5, 1, 21, 0, 0, 0, time.UTC) }

func startServer(t *testing.T) (*httptest.Server, *service.Service) {
	t.Helper()
	blob, err := snapshot.NewFileBlob(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	svc := service.New(snapshot.New(blob, snapshot.WithClock(fixedClock)),
		service.WithClock(fixedClock), service.WithLocation(time.UTC))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h := api.NewServer(svc,
		api.WithAdmins(map[string]string{"Bartek": "1998"}),
		api.WithAdminRateLimit(10000, 10000),
	).Handler(context.Background())
	return httptest.NewServer(h), svc
}

func baseConfig() Config {
	return Config{
		User: "Bartek", Password: "1998",
		Players: 6, Events: 4, Workers: 3, Seed: 42,
		Start: "2024-05-08", Timeout: 5 * time.Second,
	}
}

func TestGenerate(t *testing.T) {
	Convey("Given a seeded configuration", t, func() {
		cfg := baseConfig()

		Convey("The same seed yields the same season", func() {
			a, err := Generate(cfg)
			So(err, ShouldBeNil)
			b, err := Generate(cfg)
			So(err, ShouldBeNil)
			So(a, ShouldResemble, b)
		})

		Convey("Players are unique and events are weekly and valid", func() {
			s, err := Generate(cfg)
			So(err, ShouldBeNil)
			So(len(s.Players), ShouldEqual, 6)
			ids := map[string]bool{}
			for _, p := range s.Players {
				ids[model.PlayerID(p.Name)] = true
			}
			So(len(ids), ShouldEqual, 6)

			So(len(s.Events), ShouldEqual, 4)
			So(s.Events[0].Date, ShouldEqual, model.Date("2024-05-08"))
			So(s.Events[3].Date, ShouldEqual, model.Date("2024-05-29"))
			for _, e := range s.Events {
				So(len(e.Rounds), ShouldBeGreaterThan, 0)
				So(e.Rounds.Validate(), ShouldBeNil)
				for _, entry := range e.Rounds {
					So(ids[entry.PlayerID], ShouldBeTrue)
				}
			}
		})

		Convey("An invalid start date is rejected", func() {
			cfg.Start = "next week"
			_, err := Generate(cfg)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestCheckRows(t *testing.T) {
	Convey("Given a roster and one played GP", t, func() {
		roster := []model.Player{{ID: "a"}, {ID: "b"}, {ID: "c"}}
		played := []model.GrandPrix{{ID: "g", Date: "2024-05-01", Status: model.StatusPlayed, Rounds: model.Rounds{
			{PlayerID: "a", Scores: model.Scores{1, 1, 1, 1, 1}},
			{PlayerID: "b", Scores: model.Scores{2, 2, 2, 2, 2}},
		}}}
		rows := standings.Calculate(roster, played)

		Convey("The local recompute passes", func() {
			So(CheckRows(roster, played, rows), ShouldBeNil)
		})

		Convey("A tampered total is reported", func() {
			rows[1].Total++
			err := CheckRows(roster, played, rows)
			So(errors.Is(err, ErrMismatch), ShouldBeTrue)
		})

		Convey("A missing row is reported", func() {
			So(errors.Is(CheckRows(roster, played, rows[:2]), ErrMismatch), ShouldBeTrue)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running server", t, func() {
		srv, svc := startServer(t)
		Reset(func() {
			srv.Close()
			_ = svc.Stop(context.Background())
		})
		cfg := baseConfig()
		cfg.BaseURL = srv.URL

		Convey("A simulated season is written and verified", func() {
			stats, err := Run(context.Background(), cfg)
			So(err, ShouldBeNil)
			So(stats.PlayersAdded, ShouldEqual, 6)
			So(stats.EventsRecorded, ShouldEqual, 4)
			So(stats.Failed, ShouldEqual, 0)
			So(stats.Checked, ShouldEqual, 11)
			So(len(svc.Players()), ShouldEqual, 11)
		})

		Convey("Running the same seed twice reports duplicates", func() {
			_, err := Run(context.Background(), cfg)
			So(err, ShouldBeNil)
			stats, err := Run(context.Background(), cfg)
			So(err, ShouldBeNil)
			So(stats.PlayersDuplicate, ShouldEqual, 6)
		})

		Convey("Wrong credentials count as failures", func() {
			cfg.Password = "nope"
			stats, err := Run(context.Background(), cfg)
			So(err, ShouldBeNil)
			So(stats.Failed, ShouldEqual, 10)
		})
	})

	Convey("Given no server", t, func() {
		cfg := baseConfig()
		cfg.BaseURL = "http://127.0.0.1:1"
		_, err := Run(context.Background(), cfg)
		So(err, ShouldNotBeNil)
	})
}
