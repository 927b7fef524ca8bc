package serving

import "errors"

var (
	// ErrVersionNotFound is the application-level failure for an explicit
	// version that is not AVAILABLE (or a model name that is not served).
	ErrVersionNotFound = errors.New("model version not found")

	// ErrTransport wraps network and protocol level faults, including
	// per-call deadline expiry. Distinct from application errors so callers
	// can apply their own retry policy.
	ErrTransport = errors.New("transport failure")
)
