package metrics

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

var (
	metricNameRE = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
	labelNameRE  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// DuplicateNameError is returned by Register when a metric with the same
// name is already registered.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("metric %q is already registered", e.Name)
}

// Registry holds metrics in registration order and renders them. Extra
// gatherers (runtime collectors) are rendered after the registered metrics.
type Registry struct {
	mu        sync.RWMutex
	metrics   []Metric
	names     map[string]struct{}
	gatherers []prometheus.Gatherer
}

// Option configures a Registry.
type Option func(*Registry)

// WithGatherer appends the families of g to every render.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(r *Registry) { r.gatherers = append(r.gatherers, g) }
}

// WithRuntimeMetrics exposes the Go runtime and process collectors with
// every metric name prefixed by prefix.
func WithRuntimeMetrics(prefix string) Option {
	return func(r *Registry) {
		reg := prometheus.NewRegistry()
		prometheus.WrapRegistererWithPrefix(prefix, reg).MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		r.gatherers = append(r.gatherers, reg)
	}
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{names: make(map[string]struct{})}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds m. It returns a *DuplicateNameError if the name is taken.
func (r *Registry) Register(m Metric) error {
	if err := validate(m); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.names[m.Name()]; ok {
		return &DuplicateNameError{Name: m.Name()}
	}
	r.names[m.Name()] = struct{}{}
	r.metrics = append(r.metrics, m)
	return nil
}

// MustRegister registers every metric and panics on the first error.
func (r *Registry) MustRegister(ms ...Metric) {
	for _, m := range ms {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

func validate(m Metric) error {
	if !metricNameRE.MatchString(m.Name()) {
		return fmt.Errorf("invalid metric name %q", m.Name())
	}
	_, isHistogram := m.(*HistogramVec)
	for _, l := range m.LabelNames() {
		if !labelNameRE.MatchString(l) || strings.HasPrefix(l, "__") {
			return fmt.Errorf("metric %s: invalid label name %q", m.Name(), l)
		}
		if isHistogram && l == "le" {
			return fmt.Errorf("metric %s: label name %q is reserved for histograms", m.Name(), l)
		}
	}
	return nil
}

// families yields each metric family in render order: registered metrics
// first, then the families of every extra gatherer.
func (r *Registry) families() iter.Seq2[*dto.MetricFamily, error] {
	return func(yield func(*dto.MetricFamily, error) bool) {
		r.mu.RLock()
		ms := slices.Clone(r.metrics)
		gs := slices.Clone(r.gatherers)
		r.mu.RUnlock()

		for _, m := range ms {
			if !yield(m.collect(), nil) {
				return
			}
		}
		for _, g := range gs {
			mfs, err := g.Gather()
			if err != nil {
				yield(nil, fmt.Errorf("gather: %w", err))
				return
			}
			for _, mf := range mfs {
				if !yield(mf, nil) {
					return
				}
			}
		}
	}
}

// Gather implements prometheus.Gatherer.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	var out []*dto.MetricFamily
	for mf, err := range r.families() {
		if err != nil {
			return out, err
		}
		out = append(out, mf)
	}
	return out, nil
}

// Render yields the text exposition one line at a time, without the
// trailing newline. Iteration stops after the first error.
func (r *Registry) Render() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var buf bytes.Buffer
		for mf, err := range r.families() {
			if err != nil {
				yield("", err)
				return
			}
			buf.Reset()
			if len(mf.GetMetric()) == 0 {
				writeHeader(&buf, mf)
			} else if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
				yield("", fmt.Errorf("render %s: %w", mf.GetName(), err))
				return
			}
			for line := range strings.Lines(buf.String()) {
				if !yield(strings.TrimSuffix(line, "\n"), nil) {
					return
				}
			}
		}
	}
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

// writeHeader writes the HELP and TYPE lines of a family that has no series
// yet. expfmt refuses to encode such a family.
func writeHeader(buf *bytes.Buffer, mf *dto.MetricFamily) {
	if mf.Help != nil {
		fmt.Fprintf(buf, "# HELP %s %s\n", mf.GetName(), helpEscaper.Replace(mf.GetHelp()))
	}
	fmt.Fprintf(buf, "# TYPE %s %s\n", mf.GetName(), strings.ToLower(mf.GetType().String()))
}

// WriteTo writes the full exposition to w.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	var written int64
	for line, err := range r.Render() {
		if err != nil {
			return written, err
		}
		n, err := io.WriteString(w, line+"\n")
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// ContentType is the media type of the rendered exposition.
func (r *Registry) ContentType() string {
	return string(expfmt.NewFormat(expfmt.TypeTextPlain))
}
