package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Dispatcher owns one worker pool per channel so a slow channel cannot
// starve the others.
type Dispatcher struct {
	storage Storage
	cfg     Config
	logger  *slog.Logger

	mu      sync.RWMutex
	workers map[string]*Worker
	order   []string
}

// NewDispatcher creates a dispatcher whose workers follow cfg.
func NewDispatcher(storage Storage, cfg Config, log *slog.Logger) (*Dispatcher, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		storage: storage,
		cfg:     cfg,
		logger:  log,
		workers: make(map[string]*Worker),
	}, nil
}

// Handle registers the handler of channel. Extra options override cfg.
func (d *Dispatcher) Handle(channel string, h Handler, opts ...WorkerOption) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.workers[channel]; ok {
		return fmt.Errorf("channel %q already has a handler", channel)
	}

	all := append(workerOptionsFromConfig(d.cfg), WithWorkerLogger(d.logger))
	w, err := NewWorker(d.storage, channel, h, append(all, opts...)...)
	if err != nil {
		return err
	}
	d.workers[channel] = w
	d.order = append(d.order, channel)
	return nil
}

// Wake nudges the worker of channel. Unknown channels are ignored.
func (d *Dispatcher) Wake(channel string) {
	d.mu.RLock()
	w := d.workers[channel]
	d.mu.RUnlock()
	if w != nil {
		w.Wake()
	}
}

// Channels lists the registered channels in registration order.
func (d *Dispatcher) Channels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.order...)
}

// Run starts all workers and blocks until ctx is done and they drained.
func (d *Dispatcher) Run(ctx context.Context) func() error {
	return func() error {
		d.mu.RLock()
		workers := make([]*Worker, 0, len(d.order))
		for _, ch := range d.order {
			workers = append(workers, d.workers[ch])
		}
		d.mu.RUnlock()

		if len(workers) == 0 {
			return ErrNoHandler
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, w := range workers {
			g.Go(w.Run(gctx))
		}
		return g.Wait()
	}
}
