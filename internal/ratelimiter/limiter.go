// Package ratelimiter throttles outbound calls to the push gateway.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// GatewayLimiter is a single token-bucket limiter shared across every
// concurrent gateway batch a dispatch worker submits. The push gateway's
// multicast API is the one throttled external resource in the system, so
// one bucket guards every caller.
type GatewayLimiter struct {
	limiter *rate.Limiter
}

// New creates a GatewayLimiter allowing ratePerSec SendMulticast calls per
// second. Burst equals the rate: no saved-up burst capacity beyond the
// configured steady-state maximum.
func New(ratePerSec int) *GatewayLimiter {
	r := rate.Limit(ratePerSec)
	return &GatewayLimiter{limiter: rate.NewLimiter(r, ratePerSec)}
}

// Wait blocks until the limiter grants a token, or ctx is cancelled.
// Called by the dispatch worker and the retry pipeline immediately before
// each SendMulticast call.
func (l *GatewayLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
