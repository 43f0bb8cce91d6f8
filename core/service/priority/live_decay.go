package priority

import "time"

// Default decay shape.
const (
	DefaultDecayHorizon = 60 * time.Second
	DefaultDecayFloor   = 0.25
)

// Decay is a linear falloff from 1 to Floor over Horizon, flat afterwards:
//
//	factor(age) = 1 - (1-Floor) * min(age/Horizon, 1)
//
// The factor is non-increasing in age and stays in [Floor, 1].
type Decay struct {
	Horizon time.Duration
	Floor   float64 // in (0, 1]
}

// DefaultDecay returns the 60s / 0.25 falloff.
func DefaultDecay() Decay {
	return Decay{Horizon: DefaultDecayHorizon, Floor: DefaultDecayFloor}
}

// Factor returns the multiplier for an entry of the given age. Negative
// ages (clock skew between producers) count as zero.
func (d Decay) Factor(age time.Duration) float64 {
	floor := d.Floor
	if floor <= 0 || floor > 1 {
		floor = DefaultDecayFloor
	}
	if age <= 0 || d.Horizon <= 0 {
		return 1
	}
	frac := float64(age) / float64(d.Horizon)
	if frac > 1 {
		frac = 1
	}
	return 1 - (1-floor)*frac
}

// Apply is the read-time priority of a stored base priority.
func (d Decay) Apply(base float64, enqueuedAt, now time.Time) float64 {
	return base * d.Factor(now.Sub(enqueuedAt))
}
