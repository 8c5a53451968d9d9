package metrics

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/protobuf/proto"
)

// HistogramOpts configures a histogram. Buckets are inclusive upper bounds
// in strictly ascending order; the +Inf bucket is implicit. Empty Buckets
// means prometheus.DefBuckets.
type HistogramOpts struct {
	Name    string
	Help    string
	Buckets []float64
}

// Histogram is a single series counting observations into fixed buckets.
// Buckets, sum and count are updated together so a snapshot is always
// self-consistent.
type Histogram struct {
	upperBounds []float64

	mu     sync.Mutex
	counts []uint64
	sum    float64
	count  uint64
}

func newHistogram(upperBounds []float64) *Histogram {
	return &Histogram{upperBounds: upperBounds, counts: make([]uint64, len(upperBounds))}
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	i := sort.SearchFloat64s(h.upperBounds, v)
	h.mu.Lock()
	if i < len(h.counts) {
		h.counts[i]++
	}
	h.sum += v
	h.count++
	h.mu.Unlock()
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum returns the sum of all observations.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

func (h *Histogram) write(m *dto.Metric) {
	h.mu.Lock()
	counts := slices.Clone(h.counts)
	sum, count := h.sum, h.count
	h.mu.Unlock()

	hist := &dto.Histogram{
		SampleCount: proto.Uint64(count),
		SampleSum:   proto.Float64(sum),
	}
	var cumulative uint64
	for i, upper := range h.upperBounds {
		cumulative += counts[i]
		hist.Bucket = append(hist.Bucket, &dto.Bucket{
			CumulativeCount: proto.Uint64(cumulative),
			UpperBound:      proto.Float64(upper),
		})
	}
	m.Histogram = hist
}

// HistogramVec is a histogram family partitioned by label values.
type HistogramVec struct {
	*family[*Histogram]
}

// NewHistogramVec creates a histogram family with the given label names.
// It panics if the buckets are not strictly ascending.
func NewHistogramVec(opts HistogramOpts, labelNames []string) *HistogramVec {
	bounds := opts.Buckets
	if len(bounds) == 0 {
		bounds = prometheus.DefBuckets
	}
	bounds = slices.Clone(bounds)
	if n := len(bounds); math.IsInf(bounds[n-1], +1) {
		bounds = bounds[:n-1]
	}
	for i := 1; i < len(bounds); i++ {
		if bounds[i] <= bounds[i-1] {
			panic(fmt.Errorf("histogram %s: buckets must be in strictly ascending order, got %v", opts.Name, opts.Buckets))
		}
	}
	return &HistogramVec{newFamily(opts.Name, opts.Help, labelNames, func() *Histogram { return newHistogram(bounds) })}
}

// NewHistogram creates an unlabelled histogram.
func NewHistogram(opts HistogramOpts) *HistogramVec { return NewHistogramVec(opts, nil) }

func (v *HistogramVec) GetMetricWithLabelValues(lvs ...string) (*Histogram, error) {
	return v.get(lvs)
}

func (v *HistogramVec) WithLabelValues(lvs ...string) *Histogram {
	h, err := v.get(lvs)
	if err != nil {
		panic(err)
	}
	return h
}

func (v *HistogramVec) collect() *dto.MetricFamily {
	return v.collectWith(dto.MetricType_HISTOGRAM, func(m *dto.Metric, h *Histogram) {
		h.write(m)
	})
}
