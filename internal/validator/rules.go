package validator

import (
	"fmt"
	"math"
	"time"
)

// MarksTolerance is the largest accepted gap between the marks sum and the total.
const MarksTolerance = 0.01

type MarksMismatchError struct {
	Expected float64
	Actual   float64
}

func (e *MarksMismatchError) Error() string {
	return fmt.Sprintf("total marks of questions (%.2f) must equal the test total marks (%.2f)", e.Actual, e.Expected)
}

// CheckMarksSum accepts the marks when |sum - total| < MarksTolerance.
// The difference is rounded to micro-units first so a gap of exactly 0.01
// is rejected regardless of float representation.
func CheckMarksSum(total float64, marks []float64) error {
	var sum float64
	for _, m := range marks {
		sum += m
	}
	diff := math.Round(math.Abs(sum-total)*1e6) / 1e6
	if diff < MarksTolerance {
		return nil
	}
	return &MarksMismatchError{Expected: total, Actual: math.Round(sum*1e6) / 1e6}
}

type WindowError struct {
	Field   string
	Message string
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CheckValidityWindow requires validTo >= validFrom and, for timed tests,
// a window at least as long as the duration.
func CheckValidityWindow(validFrom, validTo *time.Time, durationMinutes *int) error {
	if validFrom == nil || validTo == nil {
		return nil
	}
	if validTo.Before(*validFrom) {
		return &WindowError{Field: "validTo", Message: "must not be before validFrom"}
	}
	if durationMinutes != nil && *durationMinutes > 0 {
		window := validTo.Sub(*validFrom)
		if window < time.Duration(*durationMinutes)*time.Minute {
			return &WindowError{
				Field:   "validTo",
				Message: fmt.Sprintf("validity window must be at least the test duration (%d minutes)", *durationMinutes),
			}
		}
	}
	return nil
}

// CheckPassMarks requires 0 <= passMarks <= totalMarks when set.
func CheckPassMarks(passMarks *float64, totalMarks float64) error {
	if passMarks == nil {
		return nil
	}
	if *passMarks < 0 || *passMarks > totalMarks {
		return &WindowError{Field: "passMarks", Message: "must be between 0 and totalMarks"}
	}
	return nil
}

// ClampMarks bounds v to [0, max].
func ClampMarks(v, max float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
