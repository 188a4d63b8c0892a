package core

import (
	"math/rand"
	"time"
)

const (
	defaultBackoffBase    = time.Minute
	defaultBackoffCap     = 60 * time.Minute
	defaultJitterFraction = 0.1
	defaultMinRetryDelay  = 30 * time.Second
)

// ExponentialBackoff doubles the base delay per attempt up to Cap, then
// applies a symmetric jitter of +/- Jitter around the capped value. The
// result never drops below MinDelay so jitter cannot produce an immediate
// re-fire.
type ExponentialBackoff struct {
	Base     time.Duration
	Cap      time.Duration
	Jitter   float64
	MinDelay time.Duration
	// Rand returns a value in [0, 1). Defaults to math/rand; tests inject a
	// fixed source for deterministic delays.
	Rand func() float64
}

func (p ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.Base
	if base <= 0 {
		base = defaultBackoffBase
	}
	maximum := p.Cap
	if maximum <= 0 {
		maximum = defaultBackoffCap
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			delay = maximum
			break
		}
	}
	if delay > maximum {
		delay = maximum
	}

	jitter := p.Jitter
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 0 {
		roll := p.roll()
		delay += time.Duration(float64(delay) * jitter * (roll - 0.5) * 2)
	}

	if minimum := p.minDelay(); delay < minimum {
		delay = minimum
	}
	return delay
}

func (p ExponentialBackoff) roll() float64 {
	if p.Rand != nil {
		return p.Rand()
	}
	return rand.Float64()
}

func (p ExponentialBackoff) minDelay() time.Duration {
	if p.MinDelay > 0 {
		return p.MinDelay
	}
	return defaultMinRetryDelay
}

var _ BackoffPolicy = ExponentialBackoff{}
