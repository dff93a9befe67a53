package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// NotificationProps are the values shown in a notification email.
type NotificationProps struct {
	Title     string
	Body      string
	ActionURL string // optional "open" button target
	Footer    string
}

// Notification is a single-column layout with a title, body text and an
// optional call to action. All text is escaped.
func Notification(p NotificationProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		parts := []string{
			`<!DOCTYPE html><html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>`,
			templ.EscapeString(p.Title),
			`</title></head><body style="margin:0;padding:24px;background:#f4f4f5;font-family:Arial,Helvetica,sans-serif;color:#18181b">`,
			`<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="max-width:560px;margin:0 auto;background:#ffffff;border-radius:8px"><tr><td style="padding:32px">`,
			`<h1 style="margin:0 0 16px;font-size:20px">`, templ.EscapeString(p.Title), `</h1>`,
		}
		if p.Body != "" {
			parts = append(parts, `<p style="margin:0 0 24px;font-size:15px;line-height:22px">`, templ.EscapeString(p.Body), `</p>`)
		}
		if p.ActionURL != "" {
			parts = append(parts,
				`<a href="`, templ.EscapeString(string(templ.URL(p.ActionURL))),
				`" style="display:inline-block;padding:10px 20px;background:#2563eb;color:#ffffff;border-radius:6px;text-decoration:none">Open</a>`,
			)
		}
		parts = append(parts, `</td></tr></table>`)
		if p.Footer != "" {
			parts = append(parts, `<p style="max-width:560px;margin:16px auto 0;font-size:12px;color:#71717a;text-align:center">`, templ.EscapeString(p.Footer), `</p>`)
		}
		parts = append(parts, `</body></html>`)

		for _, s := range parts {
			if _, err := io.WriteString(w, s); err != nil {
				return err
			}
		}
		return nil
	})
}
