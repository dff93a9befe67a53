package queue

import (
	"context"
	"fmt"
	"sync"
)

// Handler executes jobs of one channel. Returning an error wrapped with
// Permanent fails the job without retry; any other error is retried with
// backoff until the attempt ceiling.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Handle(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// NewHandler decodes the job payload into T before calling fn. A payload
// that does not decode is a permanent failure.
func NewHandler[T any](fn func(ctx context.Context, payload T) error) Handler {
	return HandlerFunc(func(ctx context.Context, job Job) error {
		var p T
		if err := job.Decode(&p); err != nil {
			return Permanent(fmt.Errorf("decode %s payload: %w", job.Name, err))
		}
		return fn(ctx, p)
	})
}

// Router dispatches jobs to handlers by job name. It lets unrelated periodic
// tasks share one maintenance channel.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register binds name to h, replacing any previous handler.
func (r *Router) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// RegisterFunc binds name to a payload-less task.
func (r *Router) RegisterFunc(name string, fn func(ctx context.Context) error) {
	r.Register(name, HandlerFunc(func(ctx context.Context, _ Job) error {
		return fn(ctx)
	}))
}

func (r *Router) Handle(ctx context.Context, job Job) error {
	r.mu.RLock()
	h, ok := r.handlers[job.Name]
	r.mu.RUnlock()
	if !ok {
		return Permanent(fmt.Errorf("%w: %s", ErrHandlerNotFound, job.Name))
	}
	return h.Handle(ctx, job)
}
