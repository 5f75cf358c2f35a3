package model_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	model "github.com/okian/klapi/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRounds(t *testing.T) {
	Convey("Given rounds recorded in a specific order", t, func() {
		r := model.Rounds{}.
			Set("zed", model.Scores{1, 1, 1, 1, 1}).
			Set("amy", model.Scores{2, 2, 2, 2, 2})

		Convey("JSON keeps insertion order instead of sorting keys", func() {
			data, err := json.Marshal(r)
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"zed":[1,1,1,1,1],"amy":[2,2,2,2,2]}`)

			var back model.Rounds
			So(json.Unmarshal(data, &back), ShouldBeNil)
			So(cmp.Diff(r, back), ShouldBeEmpty)
		})

		Convey("Decoding preserves the document's key order", func() {
			var got model.Rounds
			So(json.Unmarshal([]byte(`{"b":[0,0,0,0,1],"a":[0,0,0,0,2],"b":[9,9,9,9,9]}`), &got), ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0].PlayerID, ShouldEqual, "b")
			So(got[0].Scores.Sum(), ShouldEqual, 45)
			So(got[1].PlayerID, ShouldEqual, "a")
		})

		Convey("Null decodes to no rounds", func() {
			var got model.Rounds
			So(json.Unmarshal([]byte(`null`), &got), ShouldBeNil)
			So(got, ShouldBeNil)
		})

		Convey("Missing players sum to zero", func() {
			So(r.Sum("amy"), ShouldEqual, 10)
			So(r.Sum("nobody"), ShouldEqual, 0)
			So(r.Has("nobody"), ShouldBeFalse)
		})

		Convey("Set replaces in place without aliasing the original", func() {
			r2 := r.Set("zed", model.Scores{0, 0, 0, 0, 0})
			So(r2[0].PlayerID, ShouldEqual, "zed")
			So(r2.Sum("zed"), ShouldEqual, 0)
			So(r.Sum("zed"), ShouldEqual, 5)
		})
	})

	Convey("Given results to validate", t, func() {
		So(model.Rounds{}.Validate(), ShouldEqual, model.ErrNoParticipants)
		So(errors.Is(model.Rounds{{PlayerID: "a", Scores: model.Scores{1, 2, 3}}}.Validate(), model.ErrInvalidScores), ShouldBeTrue)
		So(errors.Is(model.Rounds{{PlayerID: "a", Scores: model.Scores{1, 2, 3, -1, 0}}}.Validate(), model.ErrInvalidScores), ShouldBeTrue)
		So(model.Rounds{{PlayerID: "a", Scores: model.Scores{0, 0, 0, 0, 0}}}.Validate(), ShouldBeNil)
		So(model.Scores{3, 1, 4}.Spread(), ShouldEqual, 3)
		So(model.Scores{}.Spread(), ShouldEqual, 0)
	})
}

func TestDates(t *testing.T) {
	Convey("Given a late evening instant east of UTC", t, func() {
		warsaw := time.FixedZone("CEST", 2*60*60)
		evening := time.Date(2024, 5, 1, 23, 30, 0, 0, warsaw)

		Convey("The calendar date is the local day, not the UTC day", func() {
			So(model.DateOf(evening), ShouldEqual, model.Date("2024-05-01"))
			So(model.DateOf(evening.UTC()), ShouldEqual, model.Date("2024-05-01"))
			So(model.DateOf(time.Date(2024, 5, 2, 0, 30, 0, 0, warsaw)), ShouldEqual, model.Date("2024-05-02"))
		})
	})

	Convey("Given date strings", t, func() {
		d, err := model.ParseDate("2024-05-01")
		So(err, ShouldBeNil)
		So(d, ShouldEqual, model.Date("2024-05-01"))

		for _, bad := range []string{"2024-5-1", "2024-02-30", "01-05-2024", ""} {
			_, err := model.ParseDate(bad)
			So(errors.Is(err, model.ErrInvalidDate), ShouldBeTrue)
		}
	})
}

func TestPlayerID(t *testing.T) {
	Convey("Player ids are derived from names", t, func() {
		So(model.PlayerID("Julia"), ShouldEqual, "julia")
		So(model.PlayerID("Anna  Maria\tNowak"), ShouldEqual, "anna-maria-nowak")
	})
}

func TestEventValidation(t *testing.T) {
	Convey("Given events", t, func() {
		planned := model.GrandPrix{ID: "x", Date: "2024-05-01", Status: model.StatusPlanned}
		So(planned.Validate(), ShouldBeNil)

		planned.Rounds = model.Rounds{{PlayerID: "a", Scores: model.Scores{1, 1, 1, 1, 1}}}
		So(planned.Validate(), ShouldEqual, model.ErrPlannedWithRounds)

		So(model.GrandPrix{Date: "2024-05-01", Status: model.StatusPlanned}.Validate(), ShouldEqual, model.ErrMissingID)
		So(model.GrandPrix{ID: "x", Date: "2024-05-01", Status: "done"}.Validate(), ShouldEqual, model.ErrInvalidStatus)
	})
}

func TestState(t *testing.T) {
	Convey("Given a state with mixed events", t, func() {
		s := model.State{Events: []model.GrandPrix{
			{ID: "c", Date: "2024-06-01", Status: model.StatusPlayed},
			{ID: "p1", Date: "2024-05-15", Status: model.StatusPlanned},
			{ID: "a", Date: "2024-05-01", Status: model.StatusPlayed},
			{ID: "b", Date: "2024-05-01", Status: model.StatusPlayed},
			{ID: "p2", Date: "2024-05-15", Status: model.StatusPlanned},
		}}

		Convey("Played events are sorted by date, collection order on equal dates", func() {
			ids := []string{}
			for _, g := range s.Played() {
				ids = append(ids, g.ID)
			}
			So(ids, ShouldResemble, []string{"a", "b", "c"})
		})

		Convey("The planned lookup matches the exact date string and picks the first", func() {
			g, ok := s.PlannedOn("2024-05-15")
			So(ok, ShouldBeTrue)
			So(g.ID, ShouldEqual, "p1")

			_, ok = s.PlannedOn("2024-06-01")
			So(ok, ShouldBeFalse)
		})

		Convey("Clone does not share round storage", func() {
			s.Events[0].Rounds = model.Rounds{{PlayerID: "a", Scores: model.Scores{1, 1, 1, 1, 1}}}
			c := s.Clone()
			c.Events[0].Rounds[0].Scores[0] = 9
			So(s.Events[0].Rounds[0].Scores[0], ShouldEqual, 1)
		})
	})

	Convey("Given the seed", t, func() {
		now := time.Date(2024, 5, 1, 20, 0, 0, 0, time.Local)
		s := model.Seed(now)

		So(len(s.Players), ShouldEqual, 5)
		So(len(s.Events), ShouldEqual, 1)
		So(s.Events[0].Date, ShouldEqual, model.Date("2024-05-01"))
		So(s.Events[0].Validate(), ShouldBeNil)
		So(s.Events[0].Rounds.Sum("julia"), ShouldEqual, 8)
		So(len(s.Posts), ShouldEqual, 3)
		So(s.Feed()[0].ID, ShouldEqual, "p3")
		So(s.Logs[0].Kind, ShouldEqual, model.LogInit)
	})
}

func TestPlacings(t *testing.T) {
	Convey("Given an event with a tie", t, func() {
		r := model.Rounds{
			{PlayerID: "c", Scores: model.Scores{3, 3, 2, 2, 2}},
			{PlayerID: "a", Scores: model.Scores{2, 2, 2, 2, 2}},
			{PlayerID: "b", Scores: model.Scores{2, 2, 2, 2, 2}},
		}

		Convey("Placings sort ascending and keep rounds order among ties", func() {
			p := r.Placings()
			So(p, ShouldResemble, []model.Placing{
				{PlayerID: "a", Sum: 10, Position: 1},
				{PlayerID: "b", Sum: 10, Position: 2},
				{PlayerID: "c", Sum: 12, Position: 3},
			})
		})

		Convey("Lookups exclude non-participants", func() {
			pos, ok := r.PositionOf("b")
			So(ok, ShouldBeTrue)
			So(pos, ShouldEqual, 2)
			_, ok = r.PositionOf("zed")
			So(ok, ShouldBeFalse)

			lo, ok := r.MinSum()
			So(ok, ShouldBeTrue)
			So(lo, ShouldEqual, 10)
			_, ok = model.Rounds{}.MinSum()
			So(ok, ShouldBeFalse)
		})
	})
}
