package arena

import (
	"fmt"
	"math"
	"strings"
)

// The ingress validator is a sanity bound, not a correctness check: it stops
// obviously invalid state from propagating but deliberately does not verify
// that growth is causally justified. Updates that fail validation are
// dropped silently and never surface an error to the client.

// validPosition reports whether a client-reported position is inside the
// bounded plane.
func validPosition(x, z float64) bool {
	if math.IsNaN(x) || math.IsNaN(z) {
		return false
	}
	return math.Abs(x) <= PlaneBound && math.Abs(z) <= PlaneBound
}

// validRadius reports whether a client-reported radius is a sane growth
// value.
func validRadius(r float64) bool {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return false
	}
	return r >= MinRadius && r <= MaxRadius
}

// SanitizeName trims a display name and caps it at MaxNameLen runes. The
// fallback is applied when nothing remains after trimming. Any remaining
// content is accepted as-is.
func SanitizeName(name string, joinOrder int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Sprintf("Player %d", joinOrder)
	}
	runes := []rune(name)
	if len(runes) > MaxNameLen {
		return string(runes[:MaxNameLen])
	}
	return name
}
