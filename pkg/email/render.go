package email

import (
	"context"
	"net/url"
	"strings"

	"github.com/dmitrymomot/notifyhub/pkg/email/templates"
)

// Content is the notification data an email is rendered from.
type Content struct {
	NotificationID string
	Type           string
	Category       string
	Title          string
	Body           string
}

// RenderNotification builds send parameters for one notification. appURL,
// when set, adds a link to the notification in the app.
func RenderNotification(ctx context.Context, to string, c Content, appURL string) (SendEmailParams, error) {
	props := templates.NotificationProps{
		Title:  c.Title,
		Body:   c.Body,
		Footer: "You received this email because notifications are enabled for your account.",
	}
	if appURL != "" && c.NotificationID != "" {
		props.ActionURL = strings.TrimRight(appURL, "/") + "/notifications/" + url.PathEscape(c.NotificationID)
	}

	html, err := templates.Render(ctx, templates.Notification(props))
	if err != nil {
		return SendEmailParams{}, err
	}

	tag := c.Category
	if tag == "" {
		tag = c.Type
	}
	return SendEmailParams{
		SendTo:   to,
		Subject:  c.Title,
		BodyHTML: html,
		Tag:      tag,
	}, nil
}
