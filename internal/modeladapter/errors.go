package modeladapter

import "errors"

// Kind identifies one of the fixed error taxonomy values every backend must
// map its own failures onto, so handlers can branch on a stable set of
// sentinels regardless of which provider backs the adapter.
type Kind string

const (
	// KindUnavailable covers transport errors to the model endpoint: refused
	// connections, timeouts, 5xx. Retried by the adapter's backoff policy.
	KindUnavailable Kind = "model_unavailable"
	// KindThrottled covers rate-limit responses. Retried with backoff.
	KindThrottled Kind = "model_throttled"
	// KindRejected covers provider policy refusals. Never retried.
	KindRejected Kind = "model_rejected"
	// KindInvalid covers malformed or wrong-shape responses. Never retried.
	KindInvalid Kind = "model_invalid"
)

// Error wraps a Kind with the underlying cause for logging, while letting
// callers branch via errors.Is against the package-level sentinels.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	// ErrModelUnavailable is the sentinel checked with errors.Is(err, ErrModelUnavailable).
	ErrModelUnavailable = &Error{Kind: KindUnavailable}
	ErrModelThrottled   = &Error{Kind: KindThrottled}
	ErrModelRejected    = &Error{Kind: KindRejected}
	ErrModelInvalid     = &Error{Kind: KindInvalid}
)

func newError(kind Kind, cause error) error {
	return &Error{Kind: kind, Cause: cause}
}

// Retryable reports whether the given error's Kind should be retried by the
// adapter's backoff policy (ModelUnavailable, ModelThrottled only).
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindUnavailable || e.Kind == KindThrottled
}
