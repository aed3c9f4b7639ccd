package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("api.cache_hit", nil)
	r.IncrementCounter("api.cache_hit", nil)
	r.AddToCounter("api.cache_hit", 3, nil)

	assert.Equal(t, float64(5), r.Counter("api.cache_hit", nil))
	assert.Equal(t, float64(0), r.Counter("api.cache_miss", nil))
}

func TestRegistry_CountersWithLabels(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("api.request", map[string]string{"method": "GET"})
	r.IncrementCounter("api.request", map[string]string{"method": "POST"})

	assert.Equal(t, float64(1), r.Counter("api.request", map[string]string{"method": "GET"}))
	assert.Equal(t, float64(1), r.Counter("api.request", map[string]string{"method": "POST"}))
}

func TestRegistry_Gauges(t *testing.T) {
	r := NewRegistry()

	r.SetGauge("offline.queue_depth", 4, nil)
	r.SetGauge("offline.queue_depth", 2, nil)

	assert.Equal(t, float64(2), r.Gauge("offline.queue_depth", nil))
}

func TestRegistry_Timers(t *testing.T) {
	r := NewRegistry()

	r.RecordTimer("api.request_duration", 10*time.Millisecond, nil)
	r.RecordTimer("api.request_duration", 30*time.Millisecond, nil)

	snap := r.Timer("api.request_duration", nil)
	assert.Equal(t, int64(2), snap.Count)
	assert.Equal(t, 20*time.Millisecond, snap.Average)
	assert.Equal(t, 30*time.Millisecond, snap.Max)

	assert.Equal(t, TimerSnapshot{}, r.Timer("missing", nil))
}

func TestRegistry_Snapshot(t *testing.T) {
	r := NewRegistry()
	r.IncrementCounter("a", nil)
	r.SetGauge("b", 7, nil)

	counters, gauges := r.Snapshot()
	assert.Equal(t, float64(1), counters["a"])
	assert.Equal(t, float64(7), gauges["b"])
}
