package killsource

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Source with a token bucket. It never waits: when the
// bucket is empty the call is skipped with ErrRateLimited.
type RateLimited struct {
	next    Source
	limiter *rate.Limiter
}

// NewRateLimited allows perMinute calls per minute with a burst of the same
// size.
func NewRateLimited(next Source, perMinute int) *RateLimited {
	if perMinute < 1 {
		perMinute = 1
	}

	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

func (r *RateLimited) KillsSince(ctx context.Context, externalID string, cursor int64) (Delta, error) {
	if !r.limiter.Allow() {
		return Delta{}, ErrRateLimited
	}

	return r.next.KillsSince(ctx, externalID, cursor)
}
