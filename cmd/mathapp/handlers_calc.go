package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/arun0009/mathapp/internal/calc"
)

// Response bodies. Clients match on these exactly.
const (
	msgMissingParameters = "Please provide two numbers as query parameters: num1 and num2"
	msgInvalidNumber     = "Both query parameters must be valid numbers."
	msgInternalError     = "An error occurred while processing your request."
	msgMetricsError      = "Error collecting metrics"
	msgNotFound          = "Not Found"
)

// calcHandler serves GET /{op}?num1=..&num2=..
func (s *server) calcHandler(op calc.Op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("/%s endpoint called.", op)

		query := r.URL.Query()
		res, err := s.executor.Execute(op, query.Get("num1"), query.Get("num2"))
		if err != nil {
			status, body := calcErrorResponse(err)
			log.Printf("/%s failed: %v", op, err)
			writeText(w, status, body)
			return
		}

		body := resultMessage(res)
		writeText(w, http.StatusOK, body)
		log.Print(body)
	}
}

// calcErrorResponse maps an executor error to its status and body. Anything
// that is not an input problem is reported as a generic 500.
func calcErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, calc.ErrMissingParameters):
		return http.StatusBadRequest, msgMissingParameters
	case errors.Is(err, calc.ErrInvalidNumber):
		return http.StatusBadRequest, msgInvalidNumber
	default:
		return http.StatusInternalServerError, msgInternalError
	}
}

func resultMessage(res calc.Result) string {
	return fmt.Sprintf("The %s of %s and %s is %s",
		res.Op.Noun(),
		calc.FormatNumber(res.Operands.A),
		calc.FormatNumber(res.Operands.B),
		calc.FormatNumber(res.Value),
	)
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusNotFound, msgNotFound)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
