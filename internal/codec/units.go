package codec

import (
	"fmt"
	"strconv"
	"time"
)

const kphPerKnot = 1.852

// KnotsFromKph convierte km/h a nudos.
func KnotsFromKph(v float64) float64 {
	return v / kphPerKnot
}

// KphFromKnots es la inversa de KnotsFromKph.
func KphFromKnots(v float64) float64 {
	return v * kphPerKnot
}

// ParseDigitTime reconstruye un timestamp UTC a partir de un campo de 12
// dígitos ASCII "YYMMDDhhmmss". El año se interpreta como 20YY.
func ParseDigitTime(s string) (time.Time, error) {
	if len(s) != 12 {
		return time.Time{}, fmt.Errorf("%w: digit time %q has %d chars", ErrMalformed, s, len(s))
	}
	var parts [6]int
	for i := range parts {
		v, err := strconv.Atoi(s[i*2 : i*2+2])
		if err != nil || v < 0 {
			return time.Time{}, fmt.Errorf("%w: digit time %q", ErrMalformed, s)
		}
		parts[i] = v
	}
	if parts[1] < 1 || parts[1] > 12 || parts[2] < 1 || parts[2] > 31 ||
		parts[3] > 23 || parts[4] > 59 || parts[5] > 60 {
		return time.Time{}, fmt.Errorf("%w: digit time %q out of range", ErrMalformed, s)
	}
	return time.Date(2000+parts[0], time.Month(parts[1]), parts[2],
		parts[3], parts[4], parts[5], 0, time.UTC), nil
}
