package pushsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type fcmClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender delivers to Firebase registration tokens stored as "fcm:<token>"
// endpoints.
type FCMSender struct {
	client fcmClient
}

// NewFCMSender initializes Firebase from a service account file.
func NewFCMSender(ctx context.Context, credentialsFile string) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, errors.Join(ErrFirebaseInit, err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Join(ErrFirebaseInit, err)
	}
	return &FCMSender{client: client}, nil
}

func (s *FCMSender) Send(ctx context.Context, sub Subscription, msg Message) error {
	token := sub.FCMToken()
	if token == "" {
		return fmt.Errorf("%w: empty fcm token", ErrGone)
	}

	_, err := s.client.Send(ctx, fcmMessage(token, msg))
	switch {
	case err == nil:
		return nil
	case messaging.IsUnregistered(err), messaging.IsSenderIDMismatch(err), errorutils.IsInvalidArgument(err):
		return errors.Join(ErrGone, err)
	default:
		return errors.Join(ErrTransient, err)
	}
}

func fcmMessage(token string, msg Message) *messaging.Message {
	priority := "normal"
	apnsPriority := "5"
	if msg.Urgent {
		priority = "high"
		apnsPriority = "10"
	}

	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Payload.Title,
			Body:  msg.Payload.Body,
		},
		Data: fcmData(msg.Payload),
		Android: &messaging.AndroidConfig{
			Priority: priority,
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": apnsPriority},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
}

// fcmData flattens the payload into the string map FCM requires.
func fcmData(p Payload) map[string]string {
	data := make(map[string]string, len(p.Data)+2)
	for k, v := range p.Data {
		switch val := v.(type) {
		case string:
			data[k] = val
		case fmt.Stringer:
			data[k] = val.String()
		default:
			b, err := json.Marshal(v)
			if err != nil {
				continue
			}
			data[k] = string(b)
		}
	}
	if p.NotificationID != "" {
		data["notification_id"] = p.NotificationID
	}
	if p.Type != "" {
		data["type"] = p.Type
	}
	return data
}
