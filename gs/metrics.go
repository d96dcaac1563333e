package gs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	pagesFetchedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gearsync",
		Subsystem: "sync",
		Name:      "activity_pages_fetched_total",
		Help:      "Activity listing pages requested from Strava.",
	})
	activitiesCachedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gearsync",
		Subsystem: "sync",
		Name:      "activities_cached_total",
		Help:      "New activities written to the cache.",
	})
	gearResolutionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gearsync",
		Subsystem: "sync",
		Name:      "gear_resolutions_total",
		Help:      "Gear resolutions by source and outcome.",
	}, []string{"source", "outcome"})
	lastRunGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gearsync",
		Subsystem: "sync",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the last completed sync cycle.",
	})
	latestActivityGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gearsync",
		Subsystem: "cache",
		Name:      "latest_activity_update_timestamp_seconds",
		Help:      "Highest updated_at among cached activities.",
	})
)

func init() {
	prometheus.MustRegister(
		pagesFetchedCounter,
		activitiesCachedCounter,
		gearResolutionsCounter,
		lastRunGauge,
		latestActivityGauge,
	)
}

func recordPageFetched() {
	pagesFetchedCounter.Inc()
}

func recordActivitiesCached(n int) {
	if n > 0 {
		activitiesCachedCounter.Add(float64(n))
	}
}

func recordGearResolution(source Source, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gearResolutionsCounter.WithLabelValues(source.String(), outcome).Inc()
}

func recordRunCompleted(ts, latestUpdate time.Time) {
	lastRunGauge.Set(float64(ts.Unix()))
	if !latestUpdate.IsZero() {
		latestActivityGauge.Set(float64(latestUpdate.Unix()))
	}
}

// WriteMetricsTextfile dumps every registered metric in the node_exporter
// textfile collector format.
func WriteMetricsTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
