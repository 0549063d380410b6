// Package metrics exposes cache statistics and HTTP request counters to
// Prometheus.
package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MM25Zamanian/prismate/internal/cache"
)

const namespace = "prismate"

// StatsFunc reports the current statistics of named caches.
type StatsFunc func() map[string]cache.Stats

// CacheCollector turns cache.Stats into metrics labelled by cache name at
// scrape time.
type CacheCollector struct {
	stats     StatsFunc
	size      *prometheus.Desc
	maxSize   *prometheus.Desc
	hits      *prometheus.Desc
	misses    *prometheus.Desc
	evictions *prometheus.Desc
	expired   *prometheus.Desc
}

func NewCacheCollector(stats StatsFunc) *CacheCollector {
	labels := []string{"cache"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", name), help, labels, nil)
	}
	return &CacheCollector{
		stats:     stats,
		size:      desc("entries", "Entries currently held."),
		maxSize:   desc("max_entries", "Configured capacity, 0 when unbounded."),
		hits:      desc("hits_total", "Lookups served from the cache."),
		misses:    desc("misses_total", "Lookups that found no live entry."),
		evictions: desc("evictions_total", "Entries evicted to respect capacity."),
		expired:   desc("expired_total", "Entries dropped after their TTL."),
	}
}

func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.size
	ch <- c.maxSize
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.expired
}

func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	all := c.stats()
	names := make([]string, 0, len(all))
	for n := range all {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		s := all[name]
		maxSize := s.MaxSize
		if maxSize < 0 {
			maxSize = 0
		}
		ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(s.Size), name)
		ch <- prometheus.MustNewConstMetric(c.maxSize, prometheus.GaugeValue, float64(maxSize), name)
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), name)
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses), name)
		ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions), name)
		ch <- prometheus.MustNewConstMetric(c.expired, prometheus.CounterValue, float64(s.Expired), name)
	}
}

// HTTP holds request metrics for the transport.
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewHTTP() *HTTP {
	return &HTTP{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Handled HTTP requests.",
		}, []string{"method", "route", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// NewRegistry registers the process and Go collectors, the cache
// collector and h on a fresh registry.
func NewRegistry(stats StatsFunc, h *HTTP) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		NewCacheCollector(stats),
	)
	if h != nil {
		reg.MustRegister(h.Requests, h.Duration)
	}
	return reg
}
