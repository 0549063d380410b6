package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/MM25Zamanian/prismate/internal/cache"
)

func TestCacheCollector(t *testing.T) {
	stats := func() map[string]cache.Stats {
		return map[string]cache.Stats{
			"validators":  {Size: 2, MaxSize: 200, Hits: 5, Misses: 2},
			"definitions": {Size: 1, MaxSize: 200, Evictions: 1, Expired: 3},
		}
	}
	c := NewCacheCollector(stats)
	require.Equal(t, 12, testutil.CollectAndCount(c))

	expected := `
# HELP prismate_cache_hits_total Lookups served from the cache.
# TYPE prismate_cache_hits_total counter
prismate_cache_hits_total{cache="definitions"} 0
prismate_cache_hits_total{cache="validators"} 5
# HELP prismate_cache_expired_total Entries dropped after their TTL.
# TYPE prismate_cache_expired_total counter
prismate_cache_expired_total{cache="definitions"} 3
prismate_cache_expired_total{cache="validators"} 0
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"prismate_cache_hits_total", "prismate_cache_expired_total"))
}

func TestRegistryGathers(t *testing.T) {
	h := NewHTTP()
	reg := NewRegistry(func() map[string]cache.Stats { return nil }, h)
	h.Requests.WithLabelValues("GET", "/api/:model", "200").Inc()
	h.Duration.WithLabelValues("GET", "/api/:model").Observe(0.01)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["prismate_http_requests_total"])
	require.True(t, names["prismate_http_request_duration_seconds"])
	require.True(t, names["go_goroutines"])
	require.Equal(t, 1.0, testutil.ToFloat64(h.Requests.WithLabelValues("GET", "/api/:model", "200")))
}
