package domain

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes retry delays: exponential growth from Base, capped at Max
// (uncapped when Max is zero), with equal jitter (half fixed, half random) so consecutive delays never shrink
// while below the cap.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	// Rand returns a value in [0, n). Nil uses math/rand/v2.
	Rand func(n int64) int64
}

// Delay returns the wait before retry number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	ceiling := b.Base
	for i := 1; i < attempt; i++ {
		if (b.Max > 0 && ceiling >= b.Max) || ceiling > math.MaxInt64/2 {
			break
		}
		ceiling *= 2
	}
	if b.Max > 0 && ceiling > b.Max {
		ceiling = b.Max
	}
	if ceiling <= 0 {
		return 0
	}

	half := ceiling / 2
	random := b.Rand
	if random == nil {
		random = rand.Int64N
	}
	jitter := time.Duration(0)
	if spread := int64(ceiling - half); spread > 0 {
		jitter = time.Duration(random(spread + 1))
	}
	return half + jitter
}

// NextRetryAt returns when retry number attempt becomes due. The result is always
// later than previous so the retry schedule of an event strictly increases.
func (b Backoff) NextRetryAt(now, previous time.Time, attempt int) time.Time {
	next := now.Add(b.Delay(attempt))
	if !next.After(previous) {
		next = previous.Add(time.Millisecond)
	}
	return next
}
