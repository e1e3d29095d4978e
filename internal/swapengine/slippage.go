package swapengine

import "math"

// SlippageForAttempt widens the base tolerance by step for every failed
// attempt: round(base * (1 + attempt*step)), capped at max. attempt is the
// zero-based count of failed attempts. The result never decreases as attempt
// grows, and a zero max means no cap.
func SlippageForAttempt(base uint16, attempt int, step float64, max uint16) uint16 {
	if attempt < 0 {
		attempt = 0
	}
	if step < 0 {
		step = 0
	}
	v := math.Round(float64(base) * (1 + float64(attempt)*step))
	limit := float64(math.MaxUint16)
	if max > 0 {
		limit = float64(max)
		if float64(base) > limit {
			// never tighten below what the caller asked for
			limit = float64(base)
		}
	}
	if v > limit {
		v = limit
	}
	return uint16(v)
}
