package calc

import (
	"errors"
	"fmt"
	"time"

	"github.com/arun0009/mathapp/internal/metrics"
)

// Error kinds used as the error_type label of calculation_errors_total.
const (
	KindMissingParameters = "missing_parameters"
	KindInvalidNumber     = "invalid_number"
	KindCalculationError  = "calculation_error"
)

// ErrorKind maps an Execute error to its error_type label. Division by zero
// shares the generic calculation_error label with any other compute failure.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrMissingParameters):
		return KindMissingParameters
	case errors.Is(err, ErrInvalidNumber):
		return KindInvalidNumber
	default:
		return KindCalculationError
	}
}

// Result is a successful calculation. Duration covers the compute step only.
type Result struct {
	Op       Op
	Operands Operands
	Value    float64
	Duration time.Duration
}

// Metrics are the series an Executor reports to.
type Metrics struct {
	Calculations *metrics.CounterVec   // no labels
	Duration     *metrics.HistogramVec // operation
	Errors       *metrics.CounterVec   // error_type
}

// Executor validates inputs, runs an Op and records the outcome.
type Executor struct {
	calculations *metrics.Counter
	duration     *metrics.HistogramVec
	errors       *metrics.CounterVec
}

// NewExecutor returns an Executor reporting to m.
func NewExecutor(m Metrics) *Executor {
	return &Executor{
		calculations: m.Calculations.WithLabelValues(),
		duration:     m.Duration,
		errors:       m.Errors,
	}
}

// Execute parses num1 and num2 and applies op. On failure the error wraps
// ErrMissingParameters, ErrInvalidNumber or, for compute failures,
// ErrDivisionByZero or the recovered cause.
func (e *Executor) Execute(op Op, num1, num2 string) (Result, error) {
	operands, err := ParseOperands(num1, num2)
	if err != nil {
		e.errors.WithLabelValues(ErrorKind(err)).Inc()
		return Result{}, err
	}

	start := time.Now()
	value, err := compute(op, operands)
	elapsed := time.Since(start)
	if err != nil {
		e.errors.WithLabelValues(KindCalculationError).Inc()
		return Result{}, err
	}

	e.duration.WithLabelValues(string(op)).Observe(elapsed.Seconds())
	e.calculations.Inc()
	return Result{Op: op, Operands: operands, Value: value, Duration: elapsed}, nil
}

func compute(op Op, in Operands) (value float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", op, r)
		}
	}()
	return op.Apply(in.A, in.B)
}
