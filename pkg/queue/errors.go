package queue

import "errors"

var (
	ErrStorageNil        = errors.New("queue storage cannot be nil")
	ErrPayloadNil        = errors.New("payload cannot be nil")
	ErrPayloadMarshal    = errors.New("failed to marshal payload to JSON")
	ErrChannelRequired   = errors.New("channel is required")
	ErrInvalidTier       = errors.New("invalid priority tier")
	ErrJobNotFound       = errors.New("job not found")
	ErrJobNotCancellable = errors.New("job already started or due, cannot cancel")
	ErrNoJobToClaim      = errors.New("no job to claim")
	ErrLockLost          = errors.New("job lock is no longer held by this worker")
	ErrNoHandler         = errors.New("no handler registered for channel")
	ErrHandlerNotFound   = errors.New("no handler registered for job name")

	ErrTaskAlreadyRegistered  = errors.New("periodic task already registered")
	ErrSchedulerNotConfigured = errors.New("scheduler has no registered tasks")
	ErrInvalidSchedule        = errors.New("invalid schedule format")
)

// errLockExpired is the LastError of a job reclaimed from a worker whose lock ran out.
const errLockExpired = "lock expired"

// permanentError marks a failure that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the worker fails the job without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or anything it wraps, was marked Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
