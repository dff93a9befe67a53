package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mrz1836/postmark"
)

// Postmark API error codes that mean the recipient cannot receive mail.
// https://postmarkapp.com/developer/api/overview#error-codes
const (
	postmarkInvalidEmail      = 300
	postmarkInactiveRecipient = 406
)

type postmarkClient struct {
	client *postmark.Client
	config Config
}

// PostmarkOption configures the Postmark client.
type PostmarkOption func(*postmark.Client)

// WithPostmarkEndpoint points the client at another API host, e.g. a test
// server.
func WithPostmarkEndpoint(baseURL string, hc *http.Client) PostmarkOption {
	return func(c *postmark.Client) {
		c.BaseURL = baseURL
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// NewPostmarkClient creates a Postmark-backed email sender.
func NewPostmarkClient(cfg Config, opts ...PostmarkOption) (EmailSender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SupportEmail) {
		return nil, fmt.Errorf("%w: SupportEmail must be a valid email address", ErrInvalidConfig)
	}

	client := postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken)
	for _, opt := range opts {
		opt(client)
	}
	return &postmarkClient{client: client, config: cfg}, nil
}

// SendEmail sends through Postmark's transactional API. Invalid or inactive
// recipients fail with ErrBounced, everything else with ErrTransient.
func (c *postmarkClient) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:       c.config.SenderEmail,
		ReplyTo:    c.config.SupportEmail,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, ErrTransient, err)
	}
	return classifyPostmark(resp.ErrorCode, resp.Message)
}

func classifyPostmark(code int64, message string) error {
	switch code {
	case 0:
		return nil
	case postmarkInvalidEmail, postmarkInactiveRecipient:
		return errors.Join(ErrFailedToSendEmail, ErrBounced,
			fmt.Errorf("postmark error: %d - %s", code, message))
	default:
		return errors.Join(ErrFailedToSendEmail, ErrTransient,
			fmt.Errorf("postmark error: %d - %s", code, message))
	}
}
