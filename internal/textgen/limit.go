package textgen

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limited paces calls to the wrapped service.
type Limited struct {
	next    Service
	limiter *rate.Limiter
}

// NewLimited allows at most perMinute calls per minute with a burst of one.
// perMinute <= 0 returns next unchanged.
func NewLimited(next Service, perMinute int) Service {
	if perMinute <= 0 {
		return next
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

// Generate waits for a token, then forwards the request.
func (l *Limited) Generate(ctx context.Context, req Request) (Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Response{}, err
	}
	return l.next.Generate(ctx, req)
}
