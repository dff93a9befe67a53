package notification

import (
	"maps"
	"strings"
	"time"
)

// Status is the lifecycle state of a notification.
type Status string

const (
	StatusUnread   Status = "unread"
	StatusRead     Status = "read"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
	StatusPurged   Status = "purged"
)

// Visible are the statuses returned by List when no status filter is given.
var Visible = []Status{StatusUnread, StatusRead, StatusArchived}

// Category is the coarse grouping the preference policy is keyed on.
type Category string

const (
	CategoryLikes     Category = "likes"
	CategoryComments  Category = "comments"
	CategoryFollows   Category = "follows"
	CategoryUploads   Category = "uploads"
	CategorySystem    Category = "system"
	CategoryMarketing Category = "marketing"

	// CategorySecurity is never produced by CategoryOf but may be configured
	// directly and is treated as urgent by the policy engine.
	CategorySecurity Category = "security"
)

// Categories lists the canonical categories in display order.
var Categories = []Category{
	CategoryLikes,
	CategoryComments,
	CategoryFollows,
	CategoryUploads,
	CategorySystem,
	CategoryMarketing,
}

var categoryAliases = map[string]Category{
	"like":        CategoryLikes,
	"likes":       CategoryLikes,
	"comment":     CategoryComments,
	"comments":    CategoryComments,
	"reply":       CategoryComments,
	"mention":     CategoryComments,
	"follow":      CategoryFollows,
	"follows":     CategoryFollows,
	"subscribe":   CategoryFollows,
	"upload":      CategoryUploads,
	"uploads":     CategoryUploads,
	"content":     CategoryUploads,
	"video":       CategoryUploads,
	"system":      CategorySystem,
	"security":    CategorySystem,
	"admin":       CategorySystem,
	"maintenance": CategorySystem,
	"marketing":   CategoryMarketing,
	"promotion":   CategoryMarketing,
	"newsletter":  CategoryMarketing,
}

// CategoryOf canonicalises a raw event type. Unmapped types pass through
// unchanged so new producers work before the mapping learns about them.
func CategoryOf(eventType string) Category {
	if c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(eventType))]; ok {
		return c
	}
	return Category(eventType)
}

// Channel is a delivery surface.
type Channel string

const (
	ChannelInApp Channel = "inApp"
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

// Channels is the default fan-out set.
var Channels = []Channel{ChannelInApp, ChannelPush, ChannelEmail}

// Real-time events emitted to a user's open sessions.
const (
	EventNew      = "notification:new"
	EventRead     = "notification:read"
	EventBulkRead = "notification:bulk_read"
)

// Notification is one event directed at a user.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Category  Category       `json:"category"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	Status    Status         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// IsUnread reports whether the owner has not seen the notification yet.
func (n Notification) IsUnread() bool {
	return n.Status == StatusUnread
}

func (n Notification) clone() Notification {
	c := n
	c.Data = maps.Clone(n.Data)
	if n.ReadAt != nil {
		t := *n.ReadAt
		c.ReadAt = &t
	}
	return c
}
