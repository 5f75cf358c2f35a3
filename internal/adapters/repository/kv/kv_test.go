package kv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/okian/klapi/internal/adapters/repository"
	"github.com/okian/klapi/internal/domain/model"
	"github.com/okian/klapi/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func fakeBuckets() (map[model.Collection]jetstream.KeyValue, map[model.Collection]*fakeKeyValue) {
	kvs := make(map[model.Collection]jetstream.KeyValue)
	fakes := make(map[model.Collection]*fakeKeyValue)
	for _, c := range model.AllCollections {
		f := newFakeKeyValue(BucketName("test", c))
		kvs[c] = f
		fakes[c] = f
	}
	return kvs, fakes
}

type recorder struct {
	mu      sync.Mutex
	changes []repository.Change
}

func (r *recorder) add(c repository.Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recorder) last(col model.Collection) (repository.Change, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.changes) - 1; i >= 0; i-- {
		if _, ok := r.changes[i].Revisions[col]; ok {
			return r.changes[i], true
		}
	}
	return repository.Change{}, false
}

func TestStore(t *testing.T) {
	Convey("Given a store over fake buckets with existing players", t, func() {
		ctx := context.Background()
		kvs, fakes := fakeBuckets()
		for _, p := range []model.Player{{ID: "oliwia", Name: "Oliwia"}, {ID: "julia", Name: "Julia"}} {
			raw, _ := msgpack.Marshal(p)
			_, _ = fakes[model.CollectionPlayers].Put(ctx, encodeKey(p.ID), raw)
		}

		s, err := New(ctx, kvs, WithWriteTimeout(time.Second))
		So(err, ShouldBeNil)
		defer s.Close()

		Convey("Load returns the initial roster ordered by name", func() {
			c, err := s.Load(ctx)
			So(err, ShouldBeNil)
			So(len(c.State.Players), ShouldEqual, 2)
			So(c.State.Players[0].ID, ShouldEqual, "julia")
			So(c.Revisions[model.CollectionPlayers], ShouldEqual, 2)
			So(c.Collections(), ShouldResemble, model.AllCollections)
		})

		Convey("A write is visible to Load as soon as it returns", func() {
			g := model.GrandPrix{ID: "gp-1", Date: "2024-05-01", Status: model.StatusPlayed, Rounds: model.Rounds{
				{PlayerID: "zed", Scores: model.Scores{2, 2, 2, 2, 2}},
				{PlayerID: "amy", Scores: model.Scores{1, 1, 1, 1, 1}},
			}}
			So(s.SaveEvent(ctx, g), ShouldBeNil)

			c, err := s.Load(ctx)
			So(err, ShouldBeNil)
			So(len(c.State.Events), ShouldEqual, 1)
			So(c.State.Events[0].Rounds[0].PlayerID, ShouldEqual, "zed")
			So(c.State.Events[0].Rounds.Sum("amy"), ShouldEqual, 5)
		})

		Convey("A renamed player moves to its place in name order", func() {
			So(s.SavePlayer(ctx, model.Player{ID: "oliwia", Name: "Ala"}), ShouldBeNil)
			c, err := s.Load(ctx)
			So(err, ShouldBeNil)
			So(c.State.Players[0].ID, ShouldEqual, "oliwia")
			So(c.State.Players[1].ID, ShouldEqual, "julia")
		})

		Convey("Subscribers receive the full membership of the changed bucket", func() {
			var rec recorder
			cancel := s.Subscribe(rec.add)
			defer cancel()

			So(s.SavePlayer(ctx, model.Player{ID: "łukasz kowal", Name: "Łukasz Kowal"}), ShouldBeNil)

			change, ok := rec.last(model.CollectionPlayers)
			So(ok, ShouldBeTrue)
			So(len(change.State.Players), ShouldEqual, 3)
			So(change.Collections(), ShouldResemble, []model.Collection{model.CollectionPlayers})
		})

		Convey("Deletes remove the document and are idempotent", func() {
			So(s.DeletePlayer(ctx, "julia"), ShouldBeNil)
			So(s.DeletePlayer(ctx, "julia"), ShouldBeNil)
			c, _ := s.Load(ctx)
			So(len(c.State.Players), ShouldEqual, 1)
			So(c.State.Players[0].ID, ShouldEqual, "oliwia")
		})

		Convey("Logs come back in time order", func() {
			t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
			So(s.AppendLog(ctx, model.LogEntry{Timestamp: t0.Add(time.Minute), Kind: model.LogGPAdd}), ShouldBeNil)
			So(s.AppendLog(ctx, model.LogEntry{Timestamp: t0, Kind: model.LogPlanAdd}), ShouldBeNil)
			c, _ := s.Load(ctx)
			So(len(c.State.Logs), ShouldEqual, 2)
			So(c.State.Logs[0].Kind, ShouldEqual, model.LogPlanAdd)
		})

		Convey("Posts keep their comments", func() {
			p := model.Post{ID: "p1", Title: "Hi", Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
				Comments: []model.Comment{{Nick: "ann", Text: "yo"}}}
			So(s.SavePost(ctx, p), ShouldBeNil)
			c, _ := s.Load(ctx)
			So(c.State.Posts[0].Comments[0].Nick, ShouldEqual, "ann")
			So(s.DeletePost(ctx, "p1"), ShouldBeNil)
			So(s.DeleteEvent(ctx, "none"), ShouldBeNil)
		})

		Convey("Malformed documents are skipped", func() {
			_, _ = fakes[model.CollectionPlayers].Put(ctx, encodeKey("broken"), []byte{0xc1})
			c, err := s.Load(ctx)
			So(err, ShouldBeNil)
			So(len(c.State.Players), ShouldEqual, 2)
		})

		Convey("Write failures are surfaced", func() {
			fakes[model.CollectionEvents].failPut = true
			err := s.SaveEvent(ctx, model.GrandPrix{ID: "x", Date: "2024-05-01", Status: model.StatusPlanned})
			So(errors.Is(err, repository.ErrUnavailable), ShouldBeTrue)
		})
	})

	Convey("Given a missing bucket", t, func() {
		kvs, _ := fakeBuckets()
		delete(kvs, model.CollectionLogs)
		_, err := New(context.Background(), kvs)
		So(err, ShouldNotBeNil)
	})
}

func TestKeys(t *testing.T) {
	Convey("Ids round-trip through the restricted key alphabet", t, func() {
		for _, id := range []string{"julia", "anna-maria", "łukasz", "a b/c"} {
			key := encodeKey(id)
			So(key, ShouldNotContainSubstring, " ")
			So(key, ShouldNotContainSubstring, "/")
			back, err := decodeKey(key)
			So(err, ShouldBeNil)
			So(back, ShouldEqual, id)
		}
		So(BucketName("", model.CollectionEvents), ShouldEqual, "gps")
		So(BucketName("league", model.CollectionEvents), ShouldEqual, "league_gps")
	})
}

func TestLogKeys(t *testing.T) {
	Convey("Log keys are strictly increasing", t, func() {
		next := logKeyFunc()
		prev := next()
		for i := 0; i < 100; i++ {
			k := next()
			So(k > prev, ShouldBeTrue)
			prev = k
		}
	})
}
