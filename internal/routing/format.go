package routing

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// FormatDistance renders meters as "850 m" below one kilometre and
// "12,3 km" above it.
func FormatDistance(meters float64) string {
	m := math.Round(meters)
	if m < 1000 {
		return fmt.Sprintf("%d m", int64(m))
	}
	return humanize.FormatFloat("#.###,#", meters/1000) + " km"
}

// FormatDuration renders seconds as "25 min" or "1 h 5 min"
func FormatDuration(secs float64) string {
	mins := int64(math.Round(secs / 60))
	if mins < 1 && secs > 0 {
		mins = 1
	}
	if mins < 60 {
		return fmt.Sprintf("%d min", mins)
	}
	h, m := mins/60, mins%60
	if m == 0 {
		return fmt.Sprintf("%d h", h)
	}
	return fmt.Sprintf("%d h %d min", h, m)
}
