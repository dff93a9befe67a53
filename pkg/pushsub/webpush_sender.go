package pushsub

import (
	"context"
	"errors"
	"io"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// maxWebPushPayload is the default 4096 byte record size minus the aes128gcm
// header, padding delimiter and tag.
const maxWebPushPayload = 3993

// WebPushSender delivers to Web Push endpoints with VAPID authentication.
type WebPushSender struct {
	publicKey  string
	privateKey string
	subject    string
	ttl        time.Duration
	client     webpush.HTTPClient
}

// WebPushOption configures a WebPushSender.
type WebPushOption func(*WebPushSender)

// WithHTTPClient overrides the client used to reach push services.
func WithHTTPClient(c webpush.HTTPClient) WebPushOption {
	return func(s *WebPushSender) {
		s.client = c
	}
}

// NewWebPushSender builds a sender from the VAPID keys in cfg.
func NewWebPushSender(cfg Config, opts ...WebPushOption) *WebPushSender {
	s := &WebPushSender{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subject:    cfg.VAPIDSubject,
		ttl:        cfg.TTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateVAPIDKeys returns a fresh key pair for deployments without
// configured keys. Browsers bind subscriptions to the public key, so
// subscriptions made against ephemeral keys stop working after a restart.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	return publicKey, privateKey, err
}

// PublicKey is the application server key clients subscribe with.
func (s *WebPushSender) PublicKey() string {
	return s.publicKey
}

func (s *WebPushSender) Send(ctx context.Context, sub Subscription, msg Message) error {
	if len(msg.Body) > maxWebPushPayload {
		return ErrPayloadTooLarge
	}

	urgency := webpush.UrgencyNormal
	if msg.Urgent {
		urgency = webpush.UrgencyHigh
	}

	resp, err := webpush.SendNotificationWithContext(ctx, msg.Body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             int(s.ttl.Seconds()),
		Urgency:         urgency,
	})
	if err != nil {
		return errors.Join(ErrTransient, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return classifyStatus(resp.StatusCode)
}
