package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Registry is an in-process metrics registry for the client: cache
// hits, queued mutations, refresh attempts, replay results. It is not
// an exporter; callers snapshot it for diagnostics.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]float64
	gauges   map[string]float64
	timers   map[string]*timer
}

type timer struct {
	count int64
	sum   time.Duration
	max   time.Duration
}

// TimerSnapshot is an aggregate view of one timer.
type TimerSnapshot struct {
	Count   int64         `json:"count"`
	Average time.Duration `json:"average"`
	Max     time.Duration `json:"max"`
}

func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]float64),
		gauges:   make(map[string]float64),
		timers:   make(map[string]*timer),
	}
}

// IncrementCounter increments a counter metric by one.
func (r *Registry) IncrementCounter(name string, labels map[string]string) {
	r.AddToCounter(name, 1, labels)
}

func (r *Registry) AddToCounter(name string, value float64, labels map[string]string) {
	key := metricKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[key] += value
}

func (r *Registry) SetGauge(name string, value float64, labels map[string]string) {
	key := metricKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[key] = value
}

func (r *Registry) RecordTimer(name string, d time.Duration, labels map[string]string) {
	key := metricKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.timers[key]
	if !ok {
		t = &timer{}
		r.timers[key] = t
	}
	t.count++
	t.sum += d
	if d > t.max {
		t.max = d
	}
}

// Counter returns the current value of a counter (0 when unset).
func (r *Registry) Counter(name string, labels map[string]string) float64 {
	key := metricKey(name, labels)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[key]
}

// Gauge returns the current value of a gauge (0 when unset).
func (r *Registry) Gauge(name string, labels map[string]string) float64 {
	key := metricKey(name, labels)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gauges[key]
}

// Timer returns the snapshot of a timer; zero snapshot when unset.
func (r *Registry) Timer(name string, labels map[string]string) TimerSnapshot {
	key := metricKey(name, labels)
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.timers[key]
	if !ok || t.count == 0 {
		return TimerSnapshot{}
	}
	return TimerSnapshot{
		Count:   t.count,
		Average: t.sum / time.Duration(t.count),
		Max:     t.max,
	}
}

// Snapshot returns copies of all counters and gauges.
func (r *Registry) Snapshot() (counters, gauges map[string]float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counters = make(map[string]float64, len(r.counters))
	for k, v := range r.counters {
		counters[k] = v
	}
	gauges = make(map[string]float64, len(r.gauges))
	for k, v := range r.gauges {
		gauges[k] = v
	}
	return counters, gauges
}

func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range keys {
		sb.WriteByte('{')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(labels[k])
		sb.WriteByte('}')
	}
	return sb.String()
}
