package domain

import (
	"context"
	"sync/atomic"
)

// APICallCounter accumulates upstream discovery calls for one job. Cached
// responses never increment it.
type APICallCounter struct {
	n atomic.Int64
}

func (c *APICallCounter) Add(n int) {
	if c != nil {
		c.n.Add(int64(n))
	}
}

func (c *APICallCounter) Count() int {
	if c == nil {
		return 0
	}
	return int(c.n.Load())
}

type apiCallCounterKey struct{}

// WithAPICallCounter attaches a fresh counter to ctx and returns it.
func WithAPICallCounter(ctx context.Context) (context.Context, *APICallCounter) {
	c := &APICallCounter{}
	return context.WithValue(ctx, apiCallCounterKey{}, c), c
}

// APICallCounterFrom returns the counter attached to ctx, or nil.
func APICallCounterFrom(ctx context.Context) *APICallCounter {
	c, _ := ctx.Value(apiCallCounterKey{}).(*APICallCounter)
	return c
}
