package connection

import (
	"math"
	"math/rand"
	"time"
)

// BackoffKind selects how the reconnect delay grows.
type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"
)

// Backoff configures the delay between reconnect attempts.
type Backoff struct {
	Kind         BackoffKind
	InitialDelay time.Duration

	// Multiplier applies to exponential backoff. Values below 1 are treated as 1.
	Multiplier float64

	// MaxDelay caps the delay. Zero means no cap.
	MaxDelay time.Duration

	// Jitter spreads each delay by ±20%.
	Jitter bool
}

// Delay returns the wait before reconnect attempt n (1-based).
// rng may be nil, in which case jitter is not applied.
func (b Backoff) Delay(attempt int, rng *rand.Rand) time.Duration {
	if b.InitialDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(b.InitialDelay)
	if b.Kind == BackoffExponential && attempt > 1 {
		m := b.Multiplier
		if m < 1 {
			m = 1
		}
		delay *= math.Pow(m, float64(attempt-1))
	}
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	if b.Jitter && rng != nil {
		delay += delay * 0.2 * (rng.Float64()*2 - 1)
	}
	// Uncapped growth saturates instead of wrapping negative.
	if delay >= math.MaxInt64 || math.IsNaN(delay) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}
