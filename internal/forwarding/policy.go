// Package forwarding relays cross-organization handoffs that are not ledger
// writes, with a bounded retry budget and a durable dead-letter fallback.
package forwarding

import "time"

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
)

// Backoff returns the wait before the attempt that follows attempt n (1-based).
type Backoff func(attempt int) time.Duration

func LinearBackoff(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base * time.Duration(attempt)
	}
}

type Policy struct {
	MaxAttempts int
	Backoff     Backoff
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Backoff: LinearBackoff(DefaultBaseDelay)}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = LinearBackoff(DefaultBaseDelay)
	}
	return p
}

// Delay is the wait after a failed attempt n. The final attempt has no delay.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt >= p.MaxAttempts {
		return 0
	}
	return p.Backoff(attempt)
}
