package output

import (
	"math"
	"strconv"
	"strings"
)

const floatPrecision = 1e6

// RoundFloat rounds f to 6 decimal places.
func RoundFloat(f float64) float64 {
	return math.Round(f*floatPrecision) / floatPrecision
}

// FormatFloat renders f rounded and without trailing zeros, so 0.5 prints
// as "0.5" and 2.0 as "2".
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(RoundFloat(f), 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
