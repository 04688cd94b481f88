package httpclient

import "errors"

// PropagationPolicy selects the error returned once retries are exhausted.
type PropagationPolicy int

const (
	// PropagateNone returns the RetryableError itself.
	PropagateNone PropagationPolicy = iota
	// PropagateUnwrap returns the error the RetryableError wraps, or the
	// RetryableError when it wraps nothing.
	PropagateUnwrap
	// PropagateRootCause returns the innermost cause of the chain.
	PropagateRootCause
)

func (p PropagationPolicy) String() string {
	switch p {
	case PropagateNone:
		return "NONE"
	case PropagateUnwrap:
		return "UNWRAP"
	case PropagateRootCause:
		return "ROOT_CAUSE"
	default:
		return "UNKNOWN"
	}
}

// propagate applies the policy to the error a Retryer gave up with. Only
// RetryableErrors are unwrapped; any other error, such as a cancelled
// wait, is returned as is.
func (p PropagationPolicy) propagate(err error) error {
	var retryable *RetryableError
	if !errors.As(err, &retryable) || retryable != err {
		return err
	}
	switch p {
	case PropagateUnwrap:
		if cause := errors.Unwrap(retryable); cause != nil {
			return cause
		}
	case PropagateRootCause:
		if cause := RootCause(retryable); cause != nil {
			return cause
		}
	}
	return err
}
