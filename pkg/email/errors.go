package email

import "errors"

var (
	ErrFailedToSendEmail = errors.New("mailer.errors.failed_to_send_email")
	ErrInvalidConfig     = errors.New("mailer.errors.invalid_config")
	ErrInvalidParams     = errors.New("mailer.errors.invalid_params")

	// ErrBounced marks a recipient the provider will not deliver to. Retrying
	// cannot succeed.
	ErrBounced = errors.New("mailer.errors.recipient_bounced")
	// ErrTransient marks a failure worth retrying.
	ErrTransient = errors.New("mailer.errors.transient_failure")
)
