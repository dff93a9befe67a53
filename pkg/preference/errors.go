package preference

import "errors"

var (
	// ErrNotFound is returned by stores when the user has no document.
	ErrNotFound = errors.New("preferences not found")

	// ErrPolicyEvaluation marks preference read failures. The engine logs it
	// and allows delivery.
	ErrPolicyEvaluation = errors.New("policy evaluation failed")

	ErrMissingUserID = errors.New("preferences user id is required")
	ErrStoreNil      = errors.New("preference store cannot be nil")
)
