package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/notifyhub/pkg/email"
	"github.com/dmitrymomot/notifyhub/pkg/logger"
	"github.com/dmitrymomot/notifyhub/pkg/notification"
	"github.com/dmitrymomot/notifyhub/pkg/pushsub"
	"github.com/dmitrymomot/notifyhub/pkg/queue"
)

// PushSender delivers to all push subscriptions of a user.
type PushSender interface {
	Send(ctx context.Context, userID string, p pushsub.Payload) (pushsub.SendResult, error)
}

// PushHandler delivers push jobs. Transient failures on any subscription
// retry the job; when every subscription failed terminally the job fails
// without retry. A user without subscriptions completes the job.
func PushHandler(sender PushSender, log *slog.Logger) queue.Handler {
	if log == nil {
		log = slog.Default()
	}
	return queue.NewHandler(func(ctx context.Context, p JobPayload) error {
		res, err := sender.Send(ctx, p.UserID, pushsub.Payload{
			NotificationID: p.NotificationID,
			Type:           p.Type,
			Title:          p.Title,
			Body:           p.Body,
			Data:           p.Data,
			Urgent:         p.Urgent(),
		})
		if err != nil {
			return err
		}

		attrs := []slog.Attr{
			logger.NotificationID(p.NotificationID),
			logger.UserID(p.UserID),
			slog.Int("total", res.Total),
			slog.Int("successful", res.Successful),
		}
		switch {
		case res.Total == 0:
			log.LogAttrs(ctx, slog.LevelDebug, "no active push subscriptions", attrs...)
			return nil
		case res.Retryable():
			return fmt.Errorf("%w: %d of %d subscriptions failed", pushsub.ErrTransient, res.Total-res.Successful, res.Total)
		case !res.Success:
			return queue.Permanent(fmt.Errorf("%w: all %d subscriptions failed permanently", ErrPushFailed, res.Total))
		}
		log.LogAttrs(ctx, slog.LevelDebug, "push delivered", attrs...)
		return nil
	})
}

// EmailHandler renders and sends email jobs to the recipient's address.
// Bounces, missing recipients and invalid addresses are permanent.
func EmailHandler(sender email.EmailSender, recipients notification.Recipients, appURL string, log *slog.Logger) queue.Handler {
	if log == nil {
		log = slog.Default()
	}
	return queue.NewHandler(func(ctx context.Context, p JobPayload) error {
		r, err := recipients.Lookup(ctx, p.UserID)
		if errors.Is(err, notification.ErrRecipientNotFound) {
			return queue.Permanent(err)
		}
		if err != nil {
			return err
		}
		if r.Email == "" {
			return queue.Permanent(fmt.Errorf("%w: %s", ErrNoEmailAddress, p.UserID))
		}

		params, err := email.RenderNotification(ctx, r.Email, email.Content{
			NotificationID: p.NotificationID,
			Type:           p.Type,
			Category:       string(p.Category),
			Title:          p.Title,
			Body:           p.Body,
		}, appURL)
		if err != nil {
			return queue.Permanent(fmt.Errorf("render email: %w", err))
		}

		err = sender.SendEmail(ctx, params)
		switch {
		case err == nil:
			log.LogAttrs(ctx, slog.LevelDebug, "email delivered",
				logger.NotificationID(p.NotificationID),
				logger.UserID(p.UserID),
			)
			return nil
		case errors.Is(err, email.ErrBounced), errors.Is(err, email.ErrInvalidParams):
			log.LogAttrs(ctx, slog.LevelWarn, "email rejected permanently",
				logger.NotificationID(p.NotificationID),
				logger.UserID(p.UserID),
				logger.Error(err),
			)
			return queue.Permanent(err)
		default:
			return err
		}
	})
}

// RealtimeHandler retries in-app delivery of notifications whose recipient
// was offline at dispatch time.
func RealtimeHandler(p Presence) queue.Handler {
	return queue.NewHandler(func(ctx context.Context, payload JobPayload) error {
		n := notification.Notification{
			ID:        payload.NotificationID,
			UserID:    payload.UserID,
			Type:      payload.Type,
			Category:  payload.Category,
			Title:     payload.Title,
			Body:      payload.Body,
			Data:      payload.Data,
			Status:    notification.StatusUnread,
			CreatedAt: payload.CreatedAt,
			UpdatedAt: payload.CreatedAt,
		}
		if !p.SendToUser(ctx, payload.UserID, notification.EventNew, n) {
			return ErrRecipientOffline
		}
		return nil
	})
}

// ReadMarker is the part of the notification service live sessions use.
type ReadMarker interface {
	MarkRead(ctx context.Context, id, actor string) error
	MarkAllRead(ctx context.Context, actor string) (int, error)
}

// ClientActions serves client socket events with the notification service.
type ClientActions struct {
	notifications ReadMarker
}

func NewClientActions(n ReadMarker) *ClientActions {
	return &ClientActions{notifications: n}
}

func (a *ClientActions) MarkRead(ctx context.Context, userID, notificationID string) error {
	return a.notifications.MarkRead(ctx, notificationID, userID)
}

func (a *ClientActions) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return a.notifications.MarkAllRead(ctx, userID)
}
