// Package metrics provides lightweight in-process operational metrics:
// named counters, gauges and latency histograms with a snapshot API.
//
// Export formatting (Prometheus etc.) is out of scope; integrations read
// Snapshot and translate.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// histogram bucket upper bounds double per bucket, starting at 1µs.
// The last bucket is unbounded.
const numBuckets = 24

// Collector accumulates named counters, gauges and histograms.
// All methods are safe for concurrent use; hot paths are lock-free after
// the first touch of a name.
type Collector struct {
	counters   sync.Map // string -> *atomic.Int64
	gauges     sync.Map // string -> *atomic.Uint64 (float64 bits)
	histograms sync.Map // string -> *histogram
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Inc increments the named counter by one.
func (c *Collector) Inc(name string) {
	c.Add(name, 1)
}

// Add increments the named counter by delta.
func (c *Collector) Add(name string, delta int64) {
	if c == nil {
		return
	}
	v, ok := c.counters.Load(name)
	if !ok {
		v, _ = c.counters.LoadOrStore(name, new(atomic.Int64))
	}
	v.(*atomic.Int64).Add(delta)
}

// SetGauge sets the named gauge to value.
func (c *Collector) SetGauge(name string, value float64) {
	if c == nil {
		return
	}
	v, ok := c.gauges.Load(name)
	if !ok {
		v, _ = c.gauges.LoadOrStore(name, new(atomic.Uint64))
	}
	v.(*atomic.Uint64).Store(math.Float64bits(value))
}

// Observe records a duration into the named histogram.
func (c *Collector) Observe(name string, d time.Duration) {
	if c == nil {
		return
	}
	v, ok := c.histograms.Load(name)
	if !ok {
		v, _ = c.histograms.LoadOrStore(name, &histogram{})
	}
	v.(*histogram).observe(d)
}

// Timer starts a timer for the named histogram. The returned function stops
// the timer and records the elapsed duration.
//
//	defer c.Timer("search_latency")()
func (c *Collector) Timer(name string) func() {
	start := time.Now()
	return func() {
		c.Observe(name, time.Since(start))
	}
}

// Snapshot returns a point-in-time copy of all metrics.
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		Counters:   make(map[string]int64),
		Gauges:     make(map[string]float64),
		Histograms: make(map[string]HistogramSnapshot),
	}
	if c == nil {
		return s
	}

	c.counters.Range(func(k, v any) bool {
		s.Counters[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	c.gauges.Range(func(k, v any) bool {
		s.Gauges[k.(string)] = math.Float64frombits(v.(*atomic.Uint64).Load())
		return true
	})
	c.histograms.Range(func(k, v any) bool {
		s.Histograms[k.(string)] = v.(*histogram).snapshot()
		return true
	})

	return s
}

// Snapshot is a point-in-time copy of collected metrics.
type Snapshot struct {
	Counters   map[string]int64
	Gauges     map[string]float64
	Histograms map[string]HistogramSnapshot
}

// HistogramSnapshot summarizes one latency histogram.
type HistogramSnapshot struct {
	Count   int64
	SumNano int64
	// Buckets holds observation counts; bucket i covers durations up to
	// 1µs << i, the last bucket is unbounded.
	Buckets [numBuckets]int64
}

// Mean returns the average observed duration.
func (h HistogramSnapshot) Mean() time.Duration {
	if h.Count == 0 {
		return 0
	}
	return time.Duration(h.SumNano / h.Count)
}

type histogram struct {
	count   atomic.Int64
	sumNano atomic.Int64
	buckets [numBuckets]atomic.Int64
}

func (h *histogram) observe(d time.Duration) {
	h.count.Add(1)
	h.sumNano.Add(d.Nanoseconds())
	h.buckets[bucketFor(d)].Add(1)
}

func (h *histogram) snapshot() HistogramSnapshot {
	s := HistogramSnapshot{
		Count:   h.count.Load(),
		SumNano: h.sumNano.Load(),
	}
	for i := range h.buckets {
		s.Buckets[i] = h.buckets[i].Load()
	}
	return s
}

func bucketFor(d time.Duration) int {
	us := d.Microseconds()
	for i := 0; i < numBuckets-1; i++ {
		if us <= 1<<i {
			return i
		}
	}
	return numBuckets - 1
}
