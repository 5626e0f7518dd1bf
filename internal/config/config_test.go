package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/innerscore/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*4)
			convey.So(cfg.ManifestPath, convey.ShouldEqual, "innersource.json")
			convey.So(cfg.TagKey, convey.ShouldEqual, "type")
			convey.So(cfg.TagValue, convey.ShouldEqual, "innersource")
			convey.So(cfg.OutputPath, convey.ShouldEqual, "repos.json")
			convey.So(cfg.HarvestInterval(), convey.ShouldEqual, time.Hour)
			convey.So(cfg.HostingTimeout(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.S3Enabled(), convey.ShouldBeFalse)
			convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "innerscore")
			convey.So(cfg.MetricsSubsystem, convey.ShouldEqual, "harvester")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given configs with invalid fields", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":         func(c *config.Config) { c.Addr = " " },
			"empty endpoint":     func(c *config.Config) { c.HostingEndpoint = "" },
			"empty tag key":      func(c *config.Config) { c.TagKey = "" },
			"empty manifest":     func(c *config.Config) { c.ManifestPath = "" },
			"no workers":         func(c *config.Config) { c.WorkerCount = 0 },
			"negative retries":   func(c *config.Config) { c.MaxRetries = -1 },
			"zero interval":      func(c *config.Config) { c.HarvestIntervalS = 0 },
			"s3 without bucket": func(c *config.Config) { c.S3Endpoint = "minio:9000" },
			"bad namespace":     func(c *config.Config) { c.MetricsNamespace = "inner-score" },
			"bad prefix":        func(c *config.Config) { c.MetricsPrefix = "1x" },
			"reserved label":    func(c *config.Config) { c.MetricsLabels = map[string]string{"__name": "x"} },
		}
		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			err := cfg.Validate()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			_ = name
		}
	})
}
