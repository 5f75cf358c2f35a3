package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/klapi/internal/client"
	"github.com/okian/klapi/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClient(t *testing.T) {
	Convey("Given a server answering with fixed payloads", t, func() {
		var gotAuth string
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		mux.HandleFunc("/api/players", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[{"id":"julia","name":"Julia"}]`))
		})
		mux.HandleFunc("/api/admin/events/played", func(w http.ResponseWriter, r *http.Request) {
			user, _, _ := r.BasicAuth()
			gotAuth = user
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"g1","date":"2024-05-08","status":"played","rounds":{"julia":[1,1,1,1,1]}}`))
		})
		mux.HandleFunc("/api/players/ghost", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"not_found","message":"player ghost: not found"}`))
		})
		srv := httptest.NewServer(mux)
		Reset(srv.Close)

		c := client.New(srv.URL+"/", client.WithCredentials("Bartek", "1998"), client.WithTimeout(time.Second))
		ctx := context.Background()

		Convey("Reads decode the JSON body", func() {
			So(c.Health(ctx), ShouldBeNil)
			players, err := c.Players(ctx)
			So(err, ShouldBeNil)
			So(players, ShouldResemble, []model.Player{{ID: "julia", Name: "Julia"}})
		})

		Convey("Admin writes carry credentials", func() {
			g, err := c.RecordResults(ctx, "2024-05-08", model.Rounds{{PlayerID: "julia", Scores: model.Scores{1, 1, 1, 1, 1}}})
			So(err, ShouldBeNil)
			So(g.Rounds.Sum("julia"), ShouldEqual, 5)
			So(gotAuth, ShouldEqual, "Bartek")
		})

		Convey("Error answers become APIError", func() {
			_, err := c.Player(ctx, "ghost")
			var apiErr *client.APIError
			So(errors.As(err, &apiErr), ShouldBeTrue)
			So(apiErr.Status, ShouldEqual, http.StatusNotFound)
			So(apiErr.Code, ShouldEqual, "not_found")
			So(errors.Is(err, client.ErrUnexpectedStatus), ShouldBeTrue)
		})
	})
}
