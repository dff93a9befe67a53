package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Tier is a job priority tier. Higher tiers are claimed first.
type Tier int8

const (
	TierLow Tier = iota
	TierNormal
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierNormal:
		return "normal"
	case TierHigh:
		return "high"
	}
	return "unknown"
}

// Valid reports whether t is one of the three tiers.
func (t Tier) Valid() bool {
	return t >= TierLow && t <= TierHigh
}

// JobStatus is the state of a delivery job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is one unit of work on a channel.
type Job struct {
	ID          uuid.UUID       `json:"id"`
	Channel     string          `json:"channel"`
	Name        string          `json:"name"`
	Tier        Tier            `json:"tier"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      JobStatus       `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	LastError   string          `json:"last_error,omitempty"`
	Seq         int64           `json:"seq"`
	LockedUntil *time.Time      `json:"locked_until,omitempty"`
	LockedBy    string          `json:"locked_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

// Decode unmarshals the job payload into v.
func (j Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}

// JobHandle identifies an enqueued job.
type JobHandle struct {
	ID          uuid.UUID `json:"id"`
	Channel     string    `json:"channel"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// Stats are per-channel job counts. Completed and Failed are bounded by the
// retention limits.
type Stats struct {
	Queued    int `json:"queued"`
	Delayed   int `json:"delayed"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
