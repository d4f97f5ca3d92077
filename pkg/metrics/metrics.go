// Prometheus-style metric primitives
//
// Counters, gauges and histograms keyed by label sets, rendered in the
// Prometheus text exposition format. Series are written in label order so
// the output is stable between scrapes.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"bentcrank-plotter/pkg/pool"
)

// MetricType represents the type of metric
type MetricType int

const (
	TypeCounter MetricType = iota
	TypeGauge
	TypeHistogram
)

func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// Labels represents metric labels as key-value pairs
type Labels map[string]string

// Key returns a canonical key for the label set.
func (l Labels) Key() string {
	keys := l.sortedKeys()
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(l[k])
	}
	return sb.String()
}

// String returns labels in Prometheus format
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range l.sortedKeys() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteString(`="`)
		sb.WriteString(escapeLabel(l[k]))
		sb.WriteByte('"')
	}
	sb.WriteByte('}')
	return sb.String()
}

// With returns a copy of l with key set to value.
func (l Labels) With(key, value string) Labels {
	out := l.clone()
	out[key] = value
	return out
}

func (l Labels) clone() Labels {
	out := make(Labels, len(l)+1)
	for k, v := range l {
		out[k] = v
	}
	return out
}

func (l Labels) sortedKeys() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.ReplaceAll(s, "\n", `\n`)
}

func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Metric is the interface for all metric types
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	Write(b *pool.ByteBuffer)
}

// family holds the series of one metric, keyed by label set.
type family[V any] struct {
	name string
	help string

	mu     sync.RWMutex
	series map[string]*V
	labels map[string]Labels
}

func (f *family[V]) setup(name, help string) {
	f.name, f.help = name, help
	f.series = make(map[string]*V)
	f.labels = make(map[string]Labels)
}

func (f *family[V]) Name() string { return f.name }
func (f *family[V]) Help() string { return f.help }

// get returns the series for labels, creating it with create when missing.
func (f *family[V]) get(labels Labels, create func() *V) *V {
	key := labels.Key()
	f.mu.RLock()
	v, ok := f.series[key]
	f.mu.RUnlock()
	if ok {
		return v
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.series[key]; ok {
		return v
	}
	v = create()
	f.series[key] = v
	f.labels[key] = labels.clone()
	return v
}

func (f *family[V]) lookup(labels Labels) (*V, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.series[labels.Key()]
	return v, ok
}

// each visits the series in label key order.
func (f *family[V]) each(fn func(labels Labels, v *V)) {
	f.mu.RLock()
	keys := make([]string, 0, len(f.series))
	for k := range f.series {
		keys = append(keys, k)
	}
	f.mu.RUnlock()
	sort.Strings(keys)

	for _, k := range keys {
		f.mu.RLock()
		v, labels := f.series[k], f.labels[k]
		f.mu.RUnlock()
		fn(labels, v)
	}
}

func (f *family[V]) writeHeader(b *pool.ByteBuffer, typ MetricType) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, typ)
}

func writeSample(b *pool.ByteBuffer, name string, labels Labels, value string) {
	b.WriteString(name)
	b.WriteString(labels.String())
	b.WriteByte(' ')
	b.WriteString(value)
	b.WriteByte('\n')
}

// Counter is a monotonically increasing metric
type Counter struct {
	family[atomic.Uint64]
}

// NewCounter creates a new counter metric
func NewCounter(name, help string) *Counter {
	c := &Counter{}
	c.setup(name, help)
	return c
}

func (c *Counter) Type() MetricType { return TypeCounter }

// Inc increments the counter by 1
func (c *Counter) Inc(labels Labels) {
	c.Add(labels, 1)
}

// Add increments the counter by delta.
func (c *Counter) Add(labels Labels, delta uint64) {
	c.get(labels, func() *atomic.Uint64 { return new(atomic.Uint64) }).Add(delta)
}

// Get returns the current counter value for labels
func (c *Counter) Get(labels Labels) uint64 {
	if v, ok := c.lookup(labels); ok {
		return v.Load()
	}
	return 0
}

func (c *Counter) Write(b *pool.ByteBuffer) {
	c.writeHeader(b, TypeCounter)
	c.each(func(labels Labels, v *atomic.Uint64) {
		writeSample(b, c.name, labels, strconv.FormatUint(v.Load(), 10))
	})
}

// Gauge is a metric that can go up and down
type Gauge struct {
	family[gaugeValue]
}

type gaugeValue struct {
	mu    sync.Mutex
	value float64
}

// NewGauge creates a new gauge metric
func NewGauge(name, help string) *Gauge {
	g := &Gauge{}
	g.setup(name, help)
	return g
}

func (g *Gauge) Type() MetricType { return TypeGauge }

// Set sets the gauge to the given value
func (g *Gauge) Set(labels Labels, value float64) {
	gv := g.get(labels, func() *gaugeValue { return new(gaugeValue) })
	gv.mu.Lock()
	gv.value = value
	gv.mu.Unlock()
}

// Add adds delta to the gauge.
func (g *Gauge) Add(labels Labels, delta float64) {
	gv := g.get(labels, func() *gaugeValue { return new(gaugeValue) })
	gv.mu.Lock()
	gv.value += delta
	gv.mu.Unlock()
}

// Get returns the current gauge value for labels
func (g *Gauge) Get(labels Labels) float64 {
	gv, ok := g.lookup(labels)
	if !ok {
		return 0
	}
	gv.mu.Lock()
	defer gv.mu.Unlock()
	return gv.value
}

func (g *Gauge) Write(b *pool.ByteBuffer) {
	g.writeHeader(b, TypeGauge)
	g.each(func(labels Labels, gv *gaugeValue) {
		gv.mu.Lock()
		v := gv.value
		gv.mu.Unlock()
		writeSample(b, g.name, labels, formatFloat(v))
	})
}

// Histogram tracks the distribution of observations
type Histogram struct {
	family[histogramValue]
	bounds []float64
}

type histogramValue struct {
	mu     sync.Mutex
	count  uint64
	sum    float64
	counts []uint64 // per bucket, not cumulative
}

// NewHistogram creates a histogram with the given upper bounds.
func NewHistogram(name, help string, buckets []float64) *Histogram {
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	h := &Histogram{bounds: sorted}
	h.setup(name, help)
	return h
}

// DefaultBuckets returns default histogram buckets for latency metrics
func DefaultBuckets() []float64 {
	return []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
}

// ExponentialBuckets creates count buckets starting at start with factor multiplier
func ExponentialBuckets(start, factor float64, count int) []float64 {
	buckets := make([]float64, count)
	for i := range buckets {
		buckets[i] = start
		start *= factor
	}
	return buckets
}

func (h *Histogram) Type() MetricType { return TypeHistogram }

// Observe records a value in the histogram
func (h *Histogram) Observe(labels Labels, value float64) {
	hv := h.get(labels, func() *histogramValue {
		return &histogramValue{counts: make([]uint64, len(h.bounds))}
	})
	hv.mu.Lock()
	defer hv.mu.Unlock()
	hv.count++
	hv.sum += value
	if i := sort.SearchFloat64s(h.bounds, value); i < len(h.bounds) {
		hv.counts[i]++
	}
}

// HistogramSnapshot contains a point-in-time snapshot of histogram values.
// Buckets holds cumulative counts keyed by upper bound.
type HistogramSnapshot struct {
	Count   uint64
	Sum     float64
	Buckets map[float64]uint64
}

// GetSnapshot returns a snapshot of histogram values for the given labels
func (h *Histogram) GetSnapshot(labels Labels) HistogramSnapshot {
	snap := HistogramSnapshot{Buckets: make(map[float64]uint64, len(h.bounds))}
	hv, ok := h.lookup(labels)
	if !ok {
		return snap
	}
	hv.mu.Lock()
	defer hv.mu.Unlock()
	snap.Count, snap.Sum = hv.count, hv.sum
	var cumulative uint64
	for i, bound := range h.bounds {
		cumulative += hv.counts[i]
		snap.Buckets[bound] = cumulative
	}
	return snap
}

func (h *Histogram) Write(b *pool.ByteBuffer) {
	h.writeHeader(b, TypeHistogram)
	h.each(func(labels Labels, _ *histogramValue) {
		snap := h.GetSnapshot(labels)
		for _, bound := range h.bounds {
			writeSample(b, h.name+"_bucket", labels.With("le", formatFloat(bound)),
				strconv.FormatUint(snap.Buckets[bound], 10))
		}
		count := strconv.FormatUint(snap.Count, 10)
		writeSample(b, h.name+"_bucket", labels.With("le", "+Inf"), count)
		writeSample(b, h.name+"_sum", labels, formatFloat(snap.Sum))
		writeSample(b, h.name+"_count", labels, count)
	})
}

// Registry holds all registered metrics
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
	order   []string
}

// NewRegistry creates a new metrics registry
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// Register adds a metric to the registry
func (r *Registry) Register(metric Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := metric.Name()
	if _, exists := r.metrics[name]; exists {
		return fmt.Errorf("metric %q already registered", name)
	}
	r.metrics[name] = metric
	r.order = append(r.order, name)
	return nil
}

// MustRegister adds a metric and panics on error
func (r *Registry) MustRegister(metrics ...Metric) {
	for _, m := range metrics {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

// Get returns a metric by name
func (r *Registry) Get(name string) Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics[name]
}

// Gather renders all metrics in registration order.
func (r *Registry) Gather() string {
	b := pool.GetByteBuffer()
	defer pool.PutByteBuffer(b)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		r.metrics[name].Write(b)
	}
	return b.String()
}
