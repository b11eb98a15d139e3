package ratelimit

import (
	"context"
	"time"
)

// DefaultWindow is the admission window used when a policy omits one.
const DefaultWindow = time.Hour

// Policy describes a fixed-window admission policy.
type Policy struct {
	MaxPerWindow int           // Requests admitted per window; <= 0 disables limiting.
	Window       time.Duration // Window length measured from the first request.
}

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed     bool
	Count       int
	Remaining   int
	WindowStart time.Time
	Reset       time.Time
}

// Limiter provides rate limit checks for a requester identity.
type Limiter interface {
	Allow(ctx context.Context, identity int64, policy Policy, now time.Time) (Result, error)
}

func (p Policy) normalized() Policy {
	if p.Window <= 0 {
		p.Window = DefaultWindow
	}
	return p
}
