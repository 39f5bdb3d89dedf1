package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Frequency scale factors from wire units to Hz.
const (
	KHz = 1e3
	MHz = 1e6
)

// ErrInvalidFrequency is returned when a frequency field is not a finite positive number.
var ErrInvalidFrequency = errors.New("invalid frequency")

// ParseFrequency parses a decimal frequency expressed in the given unit and
// returns it in Hz. The value must be finite and strictly positive.
func ParseFrequency(s string, unit float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
	if !ValidFrequency(v) || !ValidFrequency(v*unit) {
		return 0, fmt.Errorf("%w: %q must be a finite value > 0", ErrInvalidFrequency, s)
	}
	return v * unit, nil
}

// ValidFrequency reports whether hz can be placed on the frequency axis.
// NaN and infinities are rejected along with zero and negative values.
func ValidFrequency(hz float64) bool {
	return hz > 0 && !math.IsInf(hz, 0)
}
