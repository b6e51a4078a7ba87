package requestctx

import (
	"context"
	"sync"
)

// Status records whether one inbound request was served from the local
// cache or needed a remote refill. It is created per request and passed
// through the context chain; sharing one Status across requests would
// leak state between them.
type Status struct {
	mu       sync.Mutex
	recorded bool
	hit      bool
}

// Mark records the cache outcome. The first call within a request wins;
// later calls are ignored.
func (s *Status) Mark(hit bool) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorded {
		return
	}
	s.recorded = true
	s.hit = hit
}

// MarkHit records that the request was served from the cache.
func (s *Status) MarkHit() { s.Mark(true) }

// MarkMiss records that the request required a remote fetch.
func (s *Status) MarkMiss() { s.Mark(false) }

// Hit reports the recorded outcome. recorded is false when the request
// never touched the cache.
func (s *Status) Hit() (hit, recorded bool) {
	if s == nil {
		return false, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hit, s.recorded
}

type statusContextKey struct{}

// WithStatus installs a fresh Status into the context, returning the
// derived context and the Status for later inspection.
func WithStatus(ctx context.Context) (context.Context, *Status) {
	if ctx == nil {
		ctx = context.Background()
	}
	status := &Status{}
	return context.WithValue(ctx, statusContextKey{}, status), status
}

// FromContext extracts the request's Status, if one was installed.
func FromContext(ctx context.Context) (*Status, bool) {
	if ctx == nil {
		return nil, false
	}
	status, ok := ctx.Value(statusContextKey{}).(*Status)
	return status, ok
}
