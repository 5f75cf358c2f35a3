package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/klapi/internal/config"
	"github.com/okian/klapi/pkg/logger"
	"github.com/okian/klapi/pkg/metrics"
)

func init() {
	_ = logger.Init()
}

func setenv(key, value string) {
	_ = os.Setenv(key, value)
	convey.Reset(func() { _ = os.Unsetenv(key) })
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.New()
	cfg.SnapshotPath = t.TempDir()
	cfg.Admins = config.DefaultAdmins()
	cfg.Timezone = "UTC"
	return cfg
}

func TestStartLeague(t *testing.T) {
	convey.Convey("Given a snapshot configuration", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)

		convey.Convey("When the league is started", func() {
			svc, err := startLeague(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.Reset(func() { _ = svc.Stop(context.Background()) })

			convey.Convey("Then the seeded standings are served over HTTP", func() {
				srv := newHTTPServer(ctx, cfg, svc)
				convey.So(srv.Addr, convey.ShouldEqual, cfg.Addr)
				convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)

				w := httptest.NewRecorder()
				srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/standings", http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Body.String(), convey.ShouldContainSubstring, `"julia"`)
			})

			convey.Convey("Then the metrics updater stops with its context", func() {
				upd, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
				defer cancel()
				convey.So(func() { startServiceMetricsUpdater(upd, svc) }, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When the timezone is unknown", func() {
			cfg.Timezone = "Mars/Olympus"
			_, err := startLeague(ctx, cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the backend cannot be opened", func() {
			cfg.SnapshotDriver = "tape"
			_, err := startLeague(ctx, cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a configuration from the environment", t, func() {
		setenv("KLAPI_ADDR", "127.0.0.1:0")
		setenv("KLAPI_SNAPSHOT_PATH", t.TempDir())
		setenv("KLAPI_TIMEZONE", "UTC")

		convey.Convey("When the context is cancelled the server shuts down cleanly", func() {
			setenv("KLAPI_METRICS_NAMESPACE", "runtest")
			convey.Reset(func() { metrics.Init() })

			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			convey.So(run(ctx), convey.ShouldBeNil)

			families, err := metrics.GetRegistry().Gather()
			convey.So(err, convey.ShouldBeNil)
			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			convey.So(names, convey.ShouldContain, "runtest_league_roster_size")
		})

		convey.Convey("When the configuration is invalid run fails fast", func() {
			setenv("KLAPI_BACKEND", "carrier-pigeon")
			convey.So(run(context.Background()), convey.ShouldNotBeNil)
		})
	})
}
