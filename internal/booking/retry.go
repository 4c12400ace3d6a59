package booking

import (
	"math/rand"
	"time"

	"classbot/internal/config"
)

// Policy bounds the transient-failure retry loop.
type Policy struct {
	// Max is the number of retries after the first try.
	Max int
	// Base is the first retry delay; it doubles per retry up to MaxDelay.
	Base     time.Duration
	MaxDelay time.Duration
	// Jitter is the symmetric random factor applied to each delay.
	Jitter float64
}

// DefaultPolicy matches the booking-window reality: windows open at a
// known instant and a few quick retries cover site hiccups, while long
// waits just let other bots take the seat.
var DefaultPolicy = Policy{
	Max:      3,
	Base:     2 * time.Second,
	MaxDelay: time.Minute,
	Jitter:   0.2,
}

// PolicyFromConfig merges cfg over DefaultPolicy. The duration strings
// have already passed config validation.
func PolicyFromConfig(cfg config.RetryConfig) Policy {
	p := DefaultPolicy
	if cfg.Max > 0 {
		p.Max = cfg.Max
	}
	if d, err := config.ParseDurationField("retry.base", cfg.Base); err == nil && d > 0 {
		p.Base = d
	}
	if d, err := config.ParseDurationField("retry.max_delay", cfg.MaxDelay); err == nil && d > 0 {
		p.MaxDelay = d
	}
	return p
}

// delay computes the backoff before the given retry (1-based):
// exponential from Base, capped at MaxDelay, with jitter so parallel
// bookers don't hammer the site in lockstep.
func (p Policy) delay(retry int, rng *rand.Rand) time.Duration {
	d := p.Base
	for i := 1; i < retry; i++ {
		d *= 2
		if d > p.MaxDelay {
			break
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 && rng != nil {
		r := (rng.Float64()*2 - 1) * p.Jitter
		d = time.Duration(float64(d) * (1 + r))
		if d < 0 {
			d = 0
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
