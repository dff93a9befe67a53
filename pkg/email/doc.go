// Package email delivers notification emails.
//
// EmailSender is implemented by the Postmark client for production and by
// DevSender, which writes each message to disk, for local development.
//
//	client, err := email.NewPostmarkClient(cfg)
//	if err != nil {
//	    return err
//	}
//	params, err := email.RenderNotification(ctx, "user@example.com", email.Content{
//	    NotificationID: n.ID,
//	    Title:          n.Title,
//	    Body:           n.Body,
//	}, cfg.AppURL)
//	if err != nil {
//	    return err
//	}
//	err = client.SendEmail(ctx, params)
//
// Delivery errors are classified for the caller's retry policy:
//   - ErrBounced: Postmark rejected the recipient as invalid (300) or inactive
//     (406). The message will never be delivered.
//   - ErrTransient: any other failure.
//
// Invalid parameters fail with ErrInvalidParams before any request is made.
package email
