package form_test

import (
	"testing"

	"github.com/okian/klapi/internal/domain/form"
	"github.com/okian/klapi/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRecent(t *testing.T) {
	Convey("Given a long position history", t, func() {
		got := form.Recent([]int{4, 1, 3, 2, 5}, []string{"g1", "g2", "g3", "g4", "g5"})

		Convey("Then the last three are returned oldest first", func() {
			So(got, ShouldResemble, []form.Entry{
				{EventID: "g3", Position: 3},
				{EventID: "g4", Position: 2},
				{EventID: "g5", Position: 5},
			})
		})
	})

	Convey("Given a short history", t, func() {
		So(form.Recent([]int{2}, []string{"g1"}), ShouldResemble, []form.Entry{{EventID: "g1", Position: 2}})
		So(form.Recent(nil, nil), ShouldBeEmpty)
	})

	Convey("Given misaligned inputs", t, func() {
		got := form.Recent([]int{1, 2}, []string{"g1", "g2", "g3"})

		Convey("Then both are aligned on the newest end", func() {
			So(got, ShouldResemble, []form.Entry{
				{EventID: "g2", Position: 1},
				{EventID: "g3", Position: 2},
			})
		})
	})
}

func TestHistory(t *testing.T) {
	Convey("Given events with and without the player", t, func() {
		played := []model.GrandPrix{
			{ID: "g1", Date: "2024-05-01", Status: model.StatusPlayed, Rounds: model.Rounds{
				{PlayerID: "a", Scores: model.Scores{1, 1, 1, 1, 1}},
				{PlayerID: "b", Scores: model.Scores{0, 0, 0, 0, 0}},
			}},
			{ID: "g2", Date: "2024-05-08", Status: model.StatusPlayed, Rounds: model.Rounds{
				{PlayerID: "b", Scores: model.Scores{1, 1, 1, 1, 1}},
			}},
		}

		positions, ids := form.History("a", played)
		So(positions, ShouldResemble, []int{2})
		So(ids, ShouldResemble, []string{"g1"})
	})
}

func TestSeries(t *testing.T) {
	roster := []model.Player{{ID: "a", Name: "Ann"}, {ID: "b", Name: "Bob"}, {ID: "c", Name: "Cid"}}
	played := []model.GrandPrix{
		{ID: "g1", Date: "2024-05-01", Status: model.StatusPlayed, Rounds: model.Rounds{
			{PlayerID: "b", Scores: model.Scores{2, 2, 2, 2, 2}},
			{PlayerID: "a", Scores: model.Scores{1, 1, 1, 1, 1}},
			{PlayerID: "x", Scores: model.Scores{0, 0, 0, 0, 0}},
		}},
		{ID: "g2", Date: "2024-05-08", Status: model.StatusPlayed, Rounds: model.Rounds{
			{PlayerID: "c", Scores: model.Scores{3, 3, 3, 3, 3}},
			{PlayerID: "a", Scores: model.Scores{1, 2, 1, 2, 1}},
		}},
	}

	Convey("Given a league with partial participation", t, func() {
		Convey("The score series zero-fills missing players", func() {
			s := form.ScoreSeries(roster, played)
			So(len(s), ShouldEqual, 2)
			So(s[0].Date, ShouldEqual, model.Date("2024-05-01"))
			So(s[0].Values, ShouldResemble, map[string]int{"a": 5, "b": 10, "c": 0})
			So(s[1].Values, ShouldResemble, map[string]int{"a": 7, "b": 0, "c": 15})
		})

		Convey("The rank series omits missing players and ranks among all participants", func() {
			s := form.RankSeries(roster, played)
			So(s[0].Values, ShouldResemble, map[string]int{"a": 2, "b": 3})
			So(s[1].Values, ShouldResemble, map[string]int{"a": 1, "c": 2})
		})

		Convey("The last event bars use names and fall back to ids", func() {
			bars := form.LastEventBars(roster, played[:1])
			So(bars, ShouldResemble, []form.Bar{
				{PlayerID: "b", Name: "Bob", Sum: 10},
				{PlayerID: "a", Name: "Ann", Sum: 5},
				{PlayerID: "x", Name: "x", Sum: 0},
			})
			So(form.LastEventBars(roster, nil), ShouldBeNil)
		})
	})
}
