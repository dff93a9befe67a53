package dispatch

import (
	"time"

	"github.com/dmitrymomot/notifyhub/pkg/notification"
	"github.com/dmitrymomot/notifyhub/pkg/queue"
)

// Queue channel names, one worker pool each.
const (
	QueueRealtime = "realtime"
	QueuePush     = "push"
	QueueEmail    = "email"
)

// Outcome is what happened on one channel during Dispatch.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered" // sent to a live session
	OutcomeQueued    Outcome = "queued"    // delivery job enqueued
	OutcomeStored    Outcome = "stored"    // in-app only: kept in history, recipient offline
	OutcomeFailed    Outcome = "failed"
)

// Request describes a notification to create and deliver.
type Request struct {
	Recipient string
	Type      string
	Title     string
	Body      string
	Data      map[string]any
	// Channels to attempt; empty means notification.Channels.
	Channels []notification.Channel
	// Tier overrides the tier derived from the category.
	Tier *queue.Tier
}

// ChannelResult reports one allowed channel.
type ChannelResult struct {
	Channel notification.Channel `json:"channel"`
	Outcome Outcome              `json:"outcome"`
	JobID   string               `json:"job_id,omitempty"`
	Err     error                `json:"-"`
	Error   string               `json:"error,omitempty"`
}

// JobPayload is the denormalized notification copy carried by delivery jobs.
type JobPayload struct {
	NotificationID string                `json:"notification_id"`
	UserID         string                `json:"user_id"`
	Type           string                `json:"type"`
	Category       notification.Category `json:"category"`
	Title          string                `json:"title"`
	Body           string                `json:"body,omitempty"`
	Data           map[string]any        `json:"data,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

func payloadOf(n notification.Notification) JobPayload {
	return JobPayload{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Category:       n.Category,
		Title:          n.Title,
		Body:           n.Body,
		Data:           n.Data,
		CreatedAt:      n.CreatedAt,
	}
}

// Urgent reports whether the payload belongs to a category that bypasses
// quiet hours and is sent with high provider priority.
func (p JobPayload) Urgent() bool {
	return p.Category == notification.CategorySystem || p.Category == notification.CategorySecurity
}

// TierFor derives the queue tier of a category: system alerts go first,
// marketing goes last and is batched.
func TierFor(c notification.Category) queue.Tier {
	switch c {
	case notification.CategorySystem, notification.CategorySecurity:
		return queue.TierHigh
	case notification.CategoryMarketing:
		return queue.TierLow
	default:
		return queue.TierNormal
	}
}
