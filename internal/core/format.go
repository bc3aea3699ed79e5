package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatClock renders seconds as m:ss, or h:mm:ss past the hour.
func FormatClock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	h, m, s := total/3600, total/60%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ParseClock reads a position written as seconds ("90.5"), m:ss or h:mm:ss.
func ParseClock(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty position")
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	var total float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 || math.IsInf(v, 0) {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("invalid position %q: field out of range", s)
		}
		total = total*60 + v
	}
	return total, nil
}
