package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enqueuer creates jobs.
type Enqueuer struct {
	storage Storage
	cfg     Config
	notify  func(channel string)
	now     func() time.Time
}

// NewEnqueuer creates an Enqueuer with DefaultConfig unless WithConfig is given.
func NewEnqueuer(storage Storage, opts ...EnqueuerOption) (*Enqueuer, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	e := &Enqueuer{
		storage: storage,
		cfg:     DefaultConfig(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Enqueue adds a job to channel. The payload is stored as JSON so the job
// is independent of later changes to the source data.
func (e *Enqueuer) Enqueue(ctx context.Context, channel string, payload any, opts ...EnqueueOption) (JobHandle, error) {
	if channel == "" {
		return JobHandle{}, ErrChannelRequired
	}
	if payload == nil {
		return JobHandle{}, ErrPayloadNil
	}

	o := &enqueueOptions{
		tier:        TierNormal,
		maxAttempts: e.cfg.MaxAttempts,
	}
	for _, opt := range opts {
		opt(o)
	}
	if !o.tier.Valid() {
		return JobHandle{}, ErrInvalidTier
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return JobHandle{}, errors.Join(ErrPayloadMarshal, fmt.Errorf("payload of type %T: %w", payload, err))
	}

	now := e.now()
	name := o.name
	if name == "" {
		name = payloadName(payload)
	}

	job := &Job{
		ID:          uuid.New(),
		Channel:     channel,
		Name:        name,
		Tier:        o.tier,
		Payload:     data,
		MaxAttempts: max(o.maxAttempts, 1),
		ScheduledAt: e.scheduledAt(now, o),
		CreatedAt:   now,
	}
	if err := e.storage.Create(ctx, job); err != nil {
		return JobHandle{}, fmt.Errorf("create job %q on channel %q: %w", job.Name, channel, err)
	}
	if e.notify != nil {
		e.notify(channel)
	}

	return JobHandle{ID: job.ID, Channel: channel, ScheduledAt: job.ScheduledAt}, nil
}

// Cancel removes a job that has not started and whose scheduled time is
// still ahead. Started or due jobs return ErrJobNotCancellable.
func (e *Enqueuer) Cancel(ctx context.Context, id uuid.UUID) error {
	return e.storage.Cancel(ctx, id)
}

func (e *Enqueuer) scheduledAt(now time.Time, o *enqueueOptions) time.Time {
	switch {
	case o.scheduledAt != nil:
		return *o.scheduledAt
	case o.delay != nil:
		return now.Add(*o.delay)
	case o.batch:
		return now.Add(e.cfg.BatchDelay)
	default:
		return now.Add(e.cfg.DelayFor(o.tier))
	}
}

func payloadName(v any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", v), "*")
}
