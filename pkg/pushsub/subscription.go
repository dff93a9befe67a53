package pushsub

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"
)

// FCMPrefix marks endpoints that carry a Firebase registration token instead
// of a Web Push URL.
const FCMPrefix = "fcm:"

// Reason records why a subscription was deactivated.
type Reason string

const (
	ReasonUserInitiated Reason = "user-initiated"
	ReasonExpired       Reason = "expired"
	ReasonCleanup       Reason = "cleanup"
)

// Keys are the client public key and auth secret of a Web Push subscription.
type Keys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

type Subscription struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Endpoint           string     `json:"endpoint"`
	Keys               Keys       `json:"keys"`
	DeviceInfo         string     `json:"device_info,omitempty"`
	Active             bool       `json:"active"`
	LastActiveAt       time.Time  `json:"last_active_at"`
	CreatedAt          time.Time  `json:"created_at"`
	DeactivatedAt      *time.Time `json:"deactivated_at,omitempty"`
	DeactivationReason Reason     `json:"deactivation_reason,omitempty"`
}

// IsFCM reports whether the endpoint is a Firebase registration token.
func (s Subscription) IsFCM() bool {
	return strings.HasPrefix(s.Endpoint, FCMPrefix)
}

// FCMToken strips FCMPrefix.
func (s Subscription) FCMToken() string {
	return strings.TrimPrefix(s.Endpoint, FCMPrefix)
}

// Payload is what a push message shows on the device.
type Payload struct {
	NotificationID string         `json:"notification_id,omitempty"`
	Type           string         `json:"type,omitempty"`
	Title          string         `json:"title"`
	Body           string         `json:"body,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	Urgent         bool           `json:"-"`
}

// Encode serializes the payload as sent to Web Push endpoints.
func (p Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// RegisterParams describes a subscription as reported by a client.
type RegisterParams struct {
	UserID     string
	Endpoint   string
	Keys       Keys
	DeviceInfo string
}

func (p RegisterParams) validate() error {
	if p.UserID == "" {
		return ErrMissingUserID
	}
	if p.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if strings.HasPrefix(p.Endpoint, FCMPrefix) {
		if strings.TrimPrefix(p.Endpoint, FCMPrefix) == "" {
			return ErrInvalidEndpoint
		}
		return nil
	}
	u, err := url.Parse(p.Endpoint)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return ErrInvalidEndpoint
	}
	if p.Keys.P256dh == "" || p.Keys.Auth == "" {
		return ErrMissingKeys
	}
	return nil
}
