package repository

import (
	"testing"

	"github.com/okian/klapi/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestChangeCollections(t *testing.T) {
	Convey("Collections follow the canonical order regardless of map order", t, func() {
		c := Change{Revisions: map[model.Collection]uint64{
			model.CollectionLogs:    3,
			model.CollectionPlayers: 1,
		}}
		So(c.Collections(), ShouldResemble, []model.Collection{model.CollectionPlayers, model.CollectionLogs})
	})
}

func TestSubscribers(t *testing.T) {
	Convey("Given two subscribers", t, func() {
		var subs Subscribers
		var a, b int
		cancelA := subs.Add(func(Change) { a++ })
		subs.Add(func(Change) { b++ })

		subs.Publish(Change{})
		So(a, ShouldEqual, 1)
		So(b, ShouldEqual, 1)

		Convey("A cancelled subscriber stops receiving", func() {
			cancelA()
			subs.Publish(Change{})
			So(a, ShouldEqual, 1)
			So(b, ShouldEqual, 2)
			So(subs.Len(), ShouldEqual, 1)
		})
	})
}
