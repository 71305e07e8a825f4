package webflow

import "context"

type retryCtxKey struct{}

// RetryCounters attributes the transport's retries to one operation, such as
// the DOM reads and writes of a single page.
type RetryCounters struct {
	Total     int64
	Status429 int64
	Status5xx int64
	Net       int64
}

// WithRetryCounters attaches rc to ctx for the transport to update.
func WithRetryCounters(ctx context.Context, rc *RetryCounters) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, retryCtxKey{}, rc)
}

func getRetryCounters(ctx context.Context) *RetryCounters {
	if ctx == nil {
		return nil
	}
	rc, _ := ctx.Value(retryCtxKey{}).(*RetryCounters)
	return rc
}
