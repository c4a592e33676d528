package solar

import (
	"regexp"
	"time"

	"github.com/nchanged/gridwatch/internal/prom"
)

var validSite = regexp.MustCompile(`^[a-zA-Z0-9_+-]+$`)

// ValidSiteName reports whether name is usable in a site route.
func ValidSiteName(name string) bool {
	return validSite.MatchString(name)
}

// expectedGap is the sampling interval for a period of the given length.
func expectedGap(days int) time.Duration {
	switch days {
	case 1:
		return time.Minute
	case 7:
		return 15 * time.Minute
	case 31:
		return 3 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// zeroOffset separates inserted zero points from their real neighbours.
const zeroOffset = 0.001

// FillGaps makes missing data explicit so a plotted line drops to zero
// instead of bridging outages. A gap counts when it is ten times the
// period's expected sampling interval. Timestamps are unix seconds.
func FillGaps(points []prom.Point, days int, now time.Time) []prom.Point {
	if len(points) == 0 {
		return points
	}
	if days < 1 {
		days = 1
	}
	bigGap := 10 * expectedGap(days).Seconds()
	nowSec := float64(now.UnixMilli()) / 1000
	startOfPeriod := nowSec - (float64(days)*86400 - bigGap/5)

	filled := make([]prom.Point, 0, len(points)+2)
	first := points[0]
	if first.T > startOfPeriod {
		filled = append(filled,
			prom.Point{T: startOfPeriod},
			prom.Point{T: first.T - zeroOffset},
		)
	}
	filled = append(filled, first)

	for i := 1; i < len(points); i++ {
		prev, curr := points[i-1], points[i]
		if curr.T-prev.T > bigGap {
			filled = append(filled,
				prom.Point{T: prev.T + zeroOffset},
				prom.Point{T: curr.T - zeroOffset},
			)
		}
		filled = append(filled, curr)
	}
	return filled
}
