package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a custom registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then metrics are registered on it", func() {
				So(manager, ShouldNotBeNil)
				manager.reposListed.Add(3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithMetricPrefix("pfx"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.reposFailed.Inc()

			Convey("Then names and labels follow the options", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_pfx_repositories_failed_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When metrics are disabled", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithMetricsEnabled(false), WithPrometheusRegistry(registry))
			manager.reposFailed.Inc()

			Convey("Then nothing is registered on the given registry", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(families, ShouldBeEmpty)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording harvested repositories", func() {
			before := testutil.ToFloat64(globalManager.reposHarvested)
			RecordRepositoryHarvested(1044)
			RecordRepositoryHarvested(12)

			Convey("Then the counter grows", func() {
				So(testutil.ToFloat64(globalManager.reposHarvested), ShouldEqual, before+2)
			})
		})

		Convey("When recording skipped repositories", func() {
			before := testutil.ToFloat64(globalManager.reposSkipped.WithLabelValues("not_innersource"))
			RecordRepositorySkipped("not_innersource")

			Convey("Then the labelled counter grows", func() {
				So(testutil.ToFloat64(globalManager.reposSkipped.WithLabelValues("not_innersource")), ShouldEqual, before+1)
			})
		})

		Convey("When recording manifest cache lookups", func() {
			hits := testutil.ToFloat64(globalManager.manifestCacheLooks.WithLabelValues("hit"))
			misses := testutil.ToFloat64(globalManager.manifestCacheLooks.WithLabelValues("miss"))
			RecordManifestCache(true)
			RecordManifestCache(false)
			RecordManifestCache(false)

			Convey("Then hits and misses are split", func() {
				So(testutil.ToFloat64(globalManager.manifestCacheLooks.WithLabelValues("hit")), ShouldEqual, hits+1)
				So(testutil.ToFloat64(globalManager.manifestCacheLooks.WithLabelValues("miss")), ShouldEqual, misses+2)
			})
		})

		Convey("When updating the queue size", func() {
			UpdateQueueSize(5, 10)

			Convey("Then utilization is derived from capacity", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 5)
				So(testutil.ToFloat64(globalManager.queueUtilization), ShouldEqual, 0.5)
			})
		})

		Convey("When recording other metrics", func() {
			So(func() {
				RecordHarvestRun("success", 1200)
				RecordHarvestRun("failure", 30)
				UpdateCollectionSize(4)
				RecordRepositoriesListed(10)
				RecordRepositoryFailed()
				RecordSinkWrite("file", "success")
				RecordManifestLookup("missing")
				RecordHostingRequest("list_repositories", "200", 12)
				RecordHostingRetry()
				RecordBreakerRejection("hosting.local")
				UpdateQueueCapacity(10)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerActiveCount(4)
				RecordWorkerProcessingLatency(3)
				RecordWorkerError()
				RecordHTTPRequest("repos", "GET", "200")
				RecordHTTPRequestDuration("repos", "GET", "200", 2)
				RecordErrorByComponent("hosting", "timeout")
				RecordErrorByEndpoint("repos", "GET", "not_found")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("Then the registry exposes the namespaced metrics", func() {
			RecordRepositoriesListed(1)
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			found := false
			for _, f := range families {
				if strings.HasPrefix(f.GetName(), "innerscore_harvester_") {
					found = true
				}
			}
			So(found, ShouldBeTrue)
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given configured metric naming", t, func() {
		prevManager, prevRegistry := globalManager, customRegistry
		defer func() { globalManager, customRegistry = prevManager, prevRegistry }()

		Configure(
			WithNamespace("portal"),
			WithSubsystem("jobs"),
			WithMetricPrefix("inner"),
			WithCustomLabels(map[string]string{"env": "prod"}),
		)
		RecordRepositoryFailed()

		Convey("Then the exposed registry uses the new names and labels", func() {
			So(GetRegistry(), ShouldNotEqual, prevRegistry)
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)

			var found bool
			for _, f := range families {
				if f.GetName() == "portal_jobs_inner_repositories_failed_total" {
					found = true
					So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "prod")
				}
				So(strings.HasPrefix(f.GetName(), "innerscore_"), ShouldBeFalse)
			}
			So(found, ShouldBeTrue)
		})
	})
}
