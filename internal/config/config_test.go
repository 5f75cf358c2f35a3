package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/klapi/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Backend, convey.ShouldEqual, config.BackendSnapshot)
			convey.So(cfg.SnapshotDriver, convey.ShouldEqual, config.DriverFile)
			convey.So(cfg.Timezone, convey.ShouldEqual, "Europe/Warsaw")
			convey.So(cfg.WriteTimeout, convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.Admins, convey.ShouldBeNil)
		})

		convey.Convey("Then the default admins are the league founders", func() {
			convey.So(config.DefaultAdmins(), convey.ShouldResemble, map[string]string{"Bartek": "1998", "Oliwia": "2003"})
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New()
		cfg.Admins = config.DefaultAdmins()
		convey.So(cfg.Validate(), convey.ShouldBeNil)

		cases := map[string]func(*config.Config){
			"unknown backend":  func(c *config.Config) { c.Backend = "redis" },
			"unknown driver":   func(c *config.Config) { c.SnapshotDriver = "s3" },
			"empty path":       func(c *config.Config) { c.SnapshotPath = "" },
			"no admins":        func(c *config.Config) { c.Admins = nil },
			"bad timezone":     func(c *config.Config) { c.Timezone = "Mars/Olympus" },
			"zero queue":       func(c *config.Config) { c.QueueSize = 0 },
			"nats without url": func(c *config.Config) { c.Backend, c.NATSURL = config.BackendNATS, "" },
			"no namespace":     func(c *config.Config) { c.MetricsNamespace = "" },
			"unsorted buckets": func(c *config.Config) { c.MetricsBuckets = []float64{1, 0.5} },
		}
		for name, mutate := range cases {
			convey.Convey("Then "+name+" is rejected", func() {
				mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("Then the location resolves", func() {
			loc, err := cfg.Location()
			convey.So(err, convey.ShouldBeNil)
			convey.So(loc.String(), convey.ShouldEqual, "Europe/Warsaw")
		})
	})
}
