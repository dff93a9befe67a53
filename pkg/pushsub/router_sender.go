package pushsub

import (
	"context"
	"fmt"
)

// RouterSender sends fcm: endpoints through FCM and everything else through
// Web Push. A nil sender makes its endpoints fail with
// ErrUnsupportedEndpoint.
type RouterSender struct {
	webPush Sender
	fcm     Sender
}

func NewRouterSender(webPush, fcm Sender) *RouterSender {
	return &RouterSender{webPush: webPush, fcm: fcm}
}

func (r *RouterSender) Send(ctx context.Context, sub Subscription, msg Message) error {
	next := r.webPush
	if sub.IsFCM() {
		next = r.fcm
	}
	if next == nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedEndpoint, sub.ID)
	}
	return next.Send(ctx, sub, msg)
}
