package transmit

import (
	"math"
	"time"
)

// Policy controls the delay between delivery attempts.
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter is the fraction (0..1) of the base delay added at random.
	Jitter float64
}

// DefaultPolicy returns 200ms doubling up to 5s with 10% jitter.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		Jitter:       0.1,
	}
}

// NoDelay retries immediately.
func NoDelay() Policy {
	return Policy{}
}

// Delay returns the wait before the attempt after the given failed attempt
// (1-indexed). r must be in [0, 1).
func (p Policy) Delay(attempt int, r float64) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	exp := math.Max(float64(attempt-1), 0)
	base := float64(p.InitialDelay) * math.Pow(mult, exp)
	total := base + base*p.Jitter*r
	if p.MaxDelay > 0 {
		total = math.Min(total, float64(p.MaxDelay))
	}
	return time.Duration(total)
}
