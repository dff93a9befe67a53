package pushsub

import (
	"context"
	"fmt"
	"net/http"
)

// Message is one push delivery: the display payload and its encoded form.
type Message struct {
	Payload Payload
	Body    []byte
	Urgent  bool
}

// NewMessage encodes p.
func NewMessage(p Payload) (Message, error) {
	body, err := p.Encode()
	if err != nil {
		return Message{}, err
	}
	return Message{Payload: p, Body: body, Urgent: p.Urgent}, nil
}

// Sender delivers one message to one subscription. Errors wrap ErrGone,
// ErrPayloadTooLarge or ErrUnsupportedEndpoint when terminal; any other
// error is treated as transient.
type Sender interface {
	Send(ctx context.Context, sub Subscription, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, sub Subscription, msg Message) error

func (f SenderFunc) Send(ctx context.Context, sub Subscription, msg Message) error {
	return f(ctx, sub, msg)
}

// classifyStatus maps a push service response status to a delivery error.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound, code == http.StatusGone:
		return fmt.Errorf("%w: status %d", ErrGone, code)
	case code == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: status %d", ErrPayloadTooLarge, code)
	default:
		return fmt.Errorf("%w: status %d", ErrTransient, code)
	}
}
