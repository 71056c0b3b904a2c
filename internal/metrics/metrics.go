// Package metrics collects Prometheus counters for the background job
// subsystem.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector registers and records all autotube metrics.
type Collector struct {
	registry *prometheus.Registry

	jobsCompleted   *prometheus.CounterVec
	jobsFailed      *prometheus.CounterVec
	downloadRetries prometheus.Counter
	videosArchived  prometheus.Counter
	checksEmitted   prometheus.Counter
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autotube_jobs_completed_total",
			Help: "Background jobs completed successfully, by kind.",
		}, []string{"kind"}),
		jobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autotube_jobs_failed_total",
			Help: "Background jobs that failed, by kind.",
		}, []string{"kind"}),
		downloadRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autotube_download_retries_total",
			Help: "Download jobs resubmitted after a failed attempt.",
		}),
		videosArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autotube_videos_archived_total",
			Help: "Videos moved to their final location.",
		}),
		checksEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autotube_checks_emitted_total",
			Help: "Check jobs emitted by the trigger.",
		}),
	}

	c.registry.MustRegister(
		c.jobsCompleted,
		c.jobsFailed,
		c.downloadRetries,
		c.videosArchived,
		c.checksEmitted,
	)

	return c
}

func (c *Collector) RecordJobCompleted(kind string) {
	c.jobsCompleted.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordJobFailed(kind string) {
	c.jobsFailed.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordDownloadRetry() {
	c.downloadRetries.Inc()
}

func (c *Collector) RecordVideoArchived() {
	c.videosArchived.Inc()
}

func (c *Collector) RecordCheckEmitted() {
	c.checksEmitted.Inc()
}

// Handler exposes the collected metrics for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
