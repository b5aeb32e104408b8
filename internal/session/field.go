package session

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field names an editable numeric field of a set.
type Field string

const (
	FieldReps   Field = "reps"
	FieldWeight Field = "weight"
)

const (
	MaxReps   = 9999
	MaxWeight = 999.9
)

// ErrInvalidField is wrapped by every error returned from ParseField.
var ErrInvalidField = errors.New("invalid field value")

// ParseField parses raw user input for field f.
//
// The returned pointer is nil when the input is blank and blank is allowed
// (weight only, meaning bodyweight). Reps must be a whole number in
// [1, MaxReps]; weight must be a positive number no greater than MaxWeight and
// is rounded to one decimal place.
func ParseField(f Field, raw string) (*float64, error) {
	s := strings.TrimSpace(raw)
	switch f {
	case FieldReps:
		if s == "" {
			return nil, fieldError(f, "is required")
		}
		if !isDigits(s, false) {
			return nil, fieldError(f, "must be a whole number")
		}
		n, err := strconv.Atoi(s)
		if err != nil || n > MaxReps {
			return nil, fieldError(f, fmt.Sprintf("must be at most %d", MaxReps))
		}
		if n <= 0 {
			return nil, fieldError(f, "must be greater than 0")
		}
		return floatPtr(float64(n)), nil

	case FieldWeight:
		if s == "" {
			return nil, nil
		}
		if !isDigits(s, true) {
			return nil, fieldError(f, "must be a number")
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fieldError(f, "must be a number")
		}
		if v <= 0 {
			return nil, fieldError(f, "must be greater than 0")
		}
		if v > MaxWeight {
			return nil, fieldError(f, fmt.Sprintf("must be at most %.1f", MaxWeight))
		}
		v = math.Round(v*10) / 10
		if v == 0 {
			return nil, fieldError(f, "must be greater than 0")
		}
		return &v, nil
	}
	return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidField, f)
}

// ValidField reports whether f is one of the editable fields.
func ValidField(f Field) bool {
	return f == FieldReps || f == FieldWeight
}

// FormatValue renders a model value the way it is shown in an input box.
func FormatValue(f Field, set *SetEntry) string {
	if set == nil {
		return ""
	}
	switch f {
	case FieldReps:
		if set.Reps != nil {
			return strconv.Itoa(*set.Reps)
		}
	case FieldWeight:
		if set.Weight != nil {
			return strconv.FormatFloat(*set.Weight, 'f', -1, 64)
		}
	}
	return ""
}

// isDigits accepts plain decimal notation only; ParseFloat alone would also
// accept exponents, hex floats and "Inf".
func isDigits(s string, allowDot bool) bool {
	dots := 0
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' && allowDot:
			dots++
			if dots > 1 {
				return false
			}
		default:
			return false
		}
	}
	return digits > 0
}

func fieldError(f Field, msg string) error {
	name := "Reps"
	if f == FieldWeight {
		name = "Weight"
	}
	return fmt.Errorf("%w: %s %s", ErrInvalidField, name, msg)
}

// FieldMessage strips the ErrInvalidField prefix for display.
func FieldMessage(err error) string {
	return strings.TrimPrefix(err.Error(), ErrInvalidField.Error()+": ")
}
