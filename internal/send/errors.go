package send

import "fmt"

// FailureClass tells the caller whether an outbound call may be retried.
type FailureClass int

const (
	// FailureRetryable covers network timeouts, connection resets,
	// HTTP 5xx and platform rate limiting.
	FailureRetryable FailureClass = iota
	// FailureFatal covers platform rejections (bad token, invalid
	// recipient, malformed payload); retrying cannot help.
	FailureFatal
)

func (c FailureClass) String() string {
	if c == FailureFatal {
		return "fatal"
	}
	return "retryable"
}

// Error is a classified send failure. A call yields either a Result or
// an *Error, never both.
type Error struct {
	Class      FailureClass
	StatusCode int    // HTTP status, 0 for transport failures
	Code       int64  // platform error code, 0 if absent
	Message    string // platform error message, empty if absent
	Attempts   int    // attempts actually made
	// Exhausted marks a retryable failure that ran out of attempts.
	Exhausted bool
	cause     error
}

func (e *Error) Error() string {
	switch {
	case e.cause != nil:
		return fmt.Sprintf("send: %s failure after %d attempt(s): %v", e.Class, e.Attempts, e.cause)
	case e.Message != "":
		return fmt.Sprintf("send: %s failure after %d attempt(s): status %d code %d: %s",
			e.Class, e.Attempts, e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("send: %s failure after %d attempt(s): status %d", e.Class, e.Attempts, e.StatusCode)
	}
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether the failure was classified retryable, even
// when attempts were exhausted.
func (e *Error) Retryable() bool {
	return e.Class == FailureRetryable
}
