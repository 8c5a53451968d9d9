// Package metrics implements the counters, gauges and histograms mathapp
// exposes, together with a Registry that keeps registration order and
// renders the Prometheus text exposition format.
//
// Each metric is a family of series keyed by label values. Series are
// created on first use and rendered in the order they were first observed.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	dto "github.com/prometheus/client_model/go"
	"google.golang.org/protobuf/proto"
)

// ErrLabelCardinality is returned when the number of label values does not
// match the label names a metric was declared with.
var ErrLabelCardinality = errors.New("inconsistent label cardinality")

// Opts configures a counter or gauge.
type Opts struct {
	Name string
	Help string
}

// Metric is a named family of series that a Registry can hold.
type Metric interface {
	Name() string
	Help() string
	LabelNames() []string
	collect() *dto.MetricFamily
}

type series[T any] struct {
	labelValues []string
	value       T
}

type family[T any] struct {
	name       string
	help       string
	labelNames []string
	newSeries  func() T

	mu     sync.RWMutex
	index  map[string]*series[T]
	series []*series[T]
}

func newFamily[T any](name, help string, labelNames []string, newSeries func() T) *family[T] {
	f := &family[T]{
		name:       name,
		help:       help,
		labelNames: slices.Clone(labelNames),
		newSeries:  newSeries,
		index:      make(map[string]*series[T]),
	}
	// An unlabelled metric has exactly one series and always renders it.
	if len(labelNames) == 0 {
		_, _ = f.get(nil)
	}
	return f
}

func (f *family[T]) Name() string { return f.name }

func (f *family[T]) Help() string { return f.help }

func (f *family[T]) LabelNames() []string { return slices.Clone(f.labelNames) }

func (f *family[T]) get(labelValues []string) (T, error) {
	if len(labelValues) != len(f.labelNames) {
		var zero T
		return zero, fmt.Errorf("%w: %s has %d label names, got %d values",
			ErrLabelCardinality, f.name, len(f.labelNames), len(labelValues))
	}
	key := seriesKey(labelValues)

	f.mu.RLock()
	s, ok := f.index[key]
	f.mu.RUnlock()
	if ok {
		return s.value, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.index[key]; ok {
		return s.value, nil
	}
	s = &series[T]{labelValues: slices.Clone(labelValues), value: f.newSeries()}
	f.index[key] = s
	f.series = append(f.series, s)
	return s.value, nil
}

func (f *family[T]) snapshot() []*series[T] {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.series)
}

func (f *family[T]) collectWith(typ dto.MetricType, fill func(*dto.Metric, T)) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: proto.String(f.name),
		Help: proto.String(f.help),
		Type: typ.Enum(),
	}
	for _, s := range f.snapshot() {
		m := &dto.Metric{}
		for i, name := range f.labelNames {
			m.Label = append(m.Label, &dto.LabelPair{
				Name:  proto.String(name),
				Value: proto.String(s.labelValues[i]),
			})
		}
		fill(m, s.value)
		mf.Metric = append(mf.Metric, m)
	}
	return mf
}

// seriesKey length-prefixes every value so no two distinct value lists
// share a key.
func seriesKey(values []string) string {
	var b strings.Builder
	for _, v := range values {
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}
	return b.String()
}

// atomicFloat is a float64 stored as its bit pattern so reads never see a
// partially written value.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) add(delta float64) {
	for {
		old := f.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if f.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (f *atomicFloat) store(v float64) { f.bits.Store(math.Float64bits(v)) }

func (f *atomicFloat) load() float64 { return math.Float64frombits(f.bits.Load()) }

// Counter is a single monotonically increasing series.
type Counter struct {
	v atomicFloat
}

// Inc adds 1.
func (c *Counter) Inc() { c.v.add(1) }

// Add adds delta, which must not be negative.
func (c *Counter) Add(delta float64) {
	if delta < 0 {
		panic(errors.New("counter cannot decrease in value"))
	}
	c.v.add(delta)
}

// Value returns the current count.
func (c *Counter) Value() float64 { return c.v.load() }

// CounterVec is a counter family partitioned by label values.
type CounterVec struct {
	*family[*Counter]
}

// NewCounterVec creates a counter family with the given label names.
func NewCounterVec(opts Opts, labelNames []string) *CounterVec {
	return &CounterVec{newFamily(opts.Name, opts.Help, labelNames, func() *Counter { return &Counter{} })}
}

// NewCounter creates an unlabelled counter. Its only series is
// WithLabelValues().
func NewCounter(opts Opts) *CounterVec { return NewCounterVec(opts, nil) }

// GetMetricWithLabelValues returns the series for the label values, creating
// it on first use.
func (v *CounterVec) GetMetricWithLabelValues(lvs ...string) (*Counter, error) {
	return v.get(lvs)
}

// WithLabelValues is GetMetricWithLabelValues but panics on a cardinality
// mismatch.
func (v *CounterVec) WithLabelValues(lvs ...string) *Counter {
	c, err := v.get(lvs)
	if err != nil {
		panic(err)
	}
	return c
}

func (v *CounterVec) collect() *dto.MetricFamily {
	return v.collectWith(dto.MetricType_COUNTER, func(m *dto.Metric, c *Counter) {
		m.Counter = &dto.Counter{Value: proto.Float64(c.Value())}
	})
}

// Gauge is a single series that can go up and down.
type Gauge struct {
	v atomicFloat
}

// Inc adds 1.
func (g *Gauge) Inc() { g.v.add(1) }

// Dec subtracts 1 using the same atomic add as Inc.
func (g *Gauge) Dec() { g.v.add(-1) }

// Add adds delta, which may be negative.
func (g *Gauge) Add(delta float64) { g.v.add(delta) }

// Set replaces the value.
func (g *Gauge) Set(v float64) { g.v.store(v) }

// Value returns the current value.
func (g *Gauge) Value() float64 { return g.v.load() }

// GaugeVec is a gauge family partitioned by label values.
type GaugeVec struct {
	*family[*Gauge]
}

// NewGaugeVec creates a gauge family with the given label names.
func NewGaugeVec(opts Opts, labelNames []string) *GaugeVec {
	return &GaugeVec{newFamily(opts.Name, opts.Help, labelNames, func() *Gauge { return &Gauge{} })}
}

// NewGauge creates an unlabelled gauge.
func NewGauge(opts Opts) *GaugeVec { return NewGaugeVec(opts, nil) }

func (v *GaugeVec) GetMetricWithLabelValues(lvs ...string) (*Gauge, error) {
	return v.get(lvs)
}

func (v *GaugeVec) WithLabelValues(lvs ...string) *Gauge {
	g, err := v.get(lvs)
	if err != nil {
		panic(err)
	}
	return g
}

func (v *GaugeVec) collect() *dto.MetricFamily {
	return v.collectWith(dto.MetricType_GAUGE, func(m *dto.Metric, g *Gauge) {
		m.Gauge = &dto.Gauge{Value: proto.Float64(g.Value())}
	})
}
