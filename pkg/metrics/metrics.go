package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// window bounds how many observations are kept per series.
const window = 100

type sizeObservation struct {
	value     float64
	timestamp time.Time
}

// MetricsCollector keeps in-process counters plus rolling latency and size
// windows. It is safe for concurrent use.
type MetricsCollector struct {
	counters  map[string]map[string]int64
	latencies map[string][]time.Duration
	sizes     map[string][]sizeObservation
	mutex     sync.RWMutex
}

// Snapshot is the JSON shape served at /metrics.
type Snapshot struct {
	Counters  map[string]map[string]int64    `json:"counters"`
	Latencies map[string]map[string]float64 `json:"latencies"`
	Sizes     map[string]map[string]float64 `json:"sizes"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:  make(map[string]map[string]int64),
		latencies: make(map[string][]time.Duration),
		sizes:     make(map[string][]sizeObservation),
	}
}

// labelKey renders labels as "k1=v1,k2=v2" in key order so the same label set
// always lands in the same series.
func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return "default"
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	return b.String()
}

func (mc *MetricsCollector) IncrementCounter(name string, labels map[string]string) {
	mc.AddCounter(name, labels, 1)
}

func (mc *MetricsCollector) AddCounter(name string, labels map[string]string, delta int64) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if _, exists := mc.counters[name]; !exists {
		mc.counters[name] = make(map[string]int64)
	}
	mc.counters[name][labelKey(labels)] += delta
}

// SetCounter overwrites a series; used for gauge-like values such as audit counts.
func (mc *MetricsCollector) SetCounter(name string, labels map[string]string, value int64) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if _, exists := mc.counters[name]; !exists {
		mc.counters[name] = make(map[string]int64)
	}
	mc.counters[name][labelKey(labels)] = value
}

func (mc *MetricsCollector) ObserveLatency(name string, duration time.Duration) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	mc.latencies[name] = append(mc.latencies[name], duration)
	if len(mc.latencies[name]) > window {
		mc.latencies[name] = mc.latencies[name][len(mc.latencies[name])-window:]
	}
}

// Since records the time elapsed from start; handy with defer.
func (mc *MetricsCollector) Since(name string, start time.Time) {
	mc.ObserveLatency(name, time.Since(start))
}

func (mc *MetricsCollector) ObserveSize(name string, size float64) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	mc.sizes[name] = append(mc.sizes[name], sizeObservation{
		value:     size,
		timestamp: time.Now(),
	})
	if len(mc.sizes[name]) > window {
		mc.sizes[name] = mc.sizes[name][len(mc.sizes[name])-window:]
	}
}

func (mc *MetricsCollector) GetCounters() map[string]map[string]int64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	counters := make(map[string]map[string]int64, len(mc.counters))
	for name, series := range mc.counters {
		counters[name] = make(map[string]int64, len(series))
		for label, value := range series {
			counters[name][label] = value
		}
	}
	return counters
}

// Counter returns a single series value, zero when absent.
func (mc *MetricsCollector) Counter(name string, labels map[string]string) int64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	return mc.counters[name][labelKey(labels)]
}

func (mc *MetricsCollector) GetLatencies() map[string]map[string]float64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	result := make(map[string]map[string]float64)
	for name, durations := range mc.latencies {
		if len(durations) == 0 {
			continue
		}
		var sum, max time.Duration
		for _, d := range durations {
			sum += d
			if d > max {
				max = d
			}
		}
		result[name] = map[string]float64{
			"avg_ms": float64(sum) / float64(len(durations)) / float64(time.Millisecond),
			"max_ms": float64(max) / float64(time.Millisecond),
			"count":  float64(len(durations)),
		}
	}
	return result
}

func (mc *MetricsCollector) GetSizes() map[string]map[string]float64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	result := make(map[string]map[string]float64)
	for name, observations := range mc.sizes {
		if len(observations) == 0 {
			continue
		}
		var sum, max float64
		for _, obs := range observations {
			sum += obs.value
			if obs.value > max {
				max = obs.value
			}
		}
		result[name] = map[string]float64{
			"avg_bytes": sum / float64(len(observations)),
			"max_bytes": max,
		}
	}
	return result
}

func (mc *MetricsCollector) Snapshot() Snapshot {
	return Snapshot{
		Counters:  mc.GetCounters(),
		Latencies: mc.GetLatencies(),
		Sizes:     mc.GetSizes(),
	}
}
