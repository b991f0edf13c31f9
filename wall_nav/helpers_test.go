package wall_nav

import "time"

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

const cycle = 40 * time.Millisecond

func snap(l, fl, c, fr, r float64) SensorSnapshot {
	return SensorSnapshot{Left: l, FrontLeft: fl, Center: c, FrontRight: fr, Right: r}
}

var (
	clearAhead = snap(2000, 2000, 2000, 2000, 2000)
	sentinel   = snap(9999, 9999, 9999, 9999, 9999)
	critical   = snap(500, 500, 50, 500, 500)
)
