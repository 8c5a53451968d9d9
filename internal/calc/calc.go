// Package calc parses query operands and runs the four arithmetic
// operations, reporting each outcome to the calculation metrics.
package calc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrMissingParameters means num1 or num2 was absent or empty.
	ErrMissingParameters = errors.New("missing parameters")
	// ErrInvalidNumber means num1 or num2 is not a finite decimal number.
	ErrInvalidNumber = errors.New("invalid number")
	// ErrDivisionByZero means the divisor was +0 or -0.
	ErrDivisionByZero = errors.New("division by zero is not allowed")
)

// Op names one of the arithmetic operations. Its string value is the metric
// label and the route path.
type Op string

const (
	OpAdd Op = "add"
	OpSub Op = "sub"
	OpMul Op = "mul"
	OpDiv Op = "div"
)

// Ops lists every operation in route order.
var Ops = []Op{OpAdd, OpSub, OpMul, OpDiv}

// ParseOp returns the Op named s.
func ParseOp(s string) (Op, error) {
	for _, op := range Ops {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// Noun is the word used for the result in responses: sum, difference,
// product or quotient.
func (op Op) Noun() string {
	switch op {
	case OpAdd:
		return "sum"
	case OpSub:
		return "difference"
	case OpMul:
		return "product"
	case OpDiv:
		return "quotient"
	}
	return "result"
}

// Apply runs op on a and b.
func (op Op) Apply(a, b float64) (float64, error) {
	switch op {
	case OpAdd:
		return Add(a, b), nil
	case OpSub:
		return Sub(a, b), nil
	case OpMul:
		return Mul(a, b), nil
	case OpDiv:
		return Div(a, b)
	}
	return 0, fmt.Errorf("unknown operation %q", string(op))
}

func Add(a, b float64) float64 { return a + b }

func Sub(a, b float64) float64 { return a - b }

func Mul(a, b float64) float64 { return a * b }

// Div returns a / b. Both signed zeros are rejected.
func Div(a, b float64) (float64, error) {
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	return a / b, nil
}

// Operands are two validated, finite inputs.
type Operands struct {
	A, B float64
}

// ParseOperands validates the raw num1 and num2 query values. Presence is
// checked for both before either is parsed, so a missing value always wins
// over an invalid one.
func ParseOperands(num1, num2 string) (Operands, error) {
	if num1 == "" || num2 == "" {
		return Operands{}, ErrMissingParameters
	}
	a, err := parseNumber(num1)
	if err != nil {
		return Operands{}, err
	}
	b, err := parseNumber(num2)
	if err != nil {
		return Operands{}, err
	}
	return Operands{A: a, B: b}, nil
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	// strconv also accepts hexadecimal floats and digit separators.
	unsigned := strings.TrimLeft(s, "+-")
	if strings.HasPrefix(unsigned, "0x") || strings.HasPrefix(unsigned, "0X") || strings.Contains(s, "_") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return v, nil
}

// FormatNumber renders v as the shortest decimal that round-trips, switching
// to exponent notation outside [1e-6, 1e21). Both zeros render as "0".
func FormatNumber(v float64) string {
	switch {
	case v == 0:
		return "0"
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	if abs := math.Abs(v); abs >= 1e21 || abs < 1e-6 {
		// strconv pads the exponent to two digits: 1e-07 becomes 1e-7.
		mantissa, exp, _ := strings.Cut(strconv.FormatFloat(v, 'e', -1, 64), "e")
		return mantissa + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0")
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
