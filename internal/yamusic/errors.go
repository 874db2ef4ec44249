package yamusic

import "fmt"

// RevisionConflictError means the write carried a stale revision. Retryable
// after a fresh fetch, bounded by attempt count.
type RevisionConflictError struct {
	Kind     string
	OwnerUID string
	Revision int
}

func (e *RevisionConflictError) Error() string {
	return fmt.Sprintf("revision %d rejected for playlist %s/%s", e.Revision, e.OwnerUID, e.Kind)
}

// ValidationRejectedError means the service's content policy rejected the
// submitted title or image. Never retried; Reason is relayed to the end user.
type ValidationRejectedError struct {
	Reason string
}

func (e *ValidationRejectedError) Error() string {
	return "rejected by content policy: " + e.Reason
}

// AuthInvalidError means the credential behind the session was rejected.
// The session must be evicted, not retried with the same credential.
type AuthInvalidError struct {
	Reason string
}

func (e *AuthInvalidError) Error() string {
	return "credential rejected: " + e.Reason
}

// NotFoundError means the remote resource does not exist.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// UnavailableError wraps timeouts, connection failures and 5xx responses.
// Retryable with backoff, bounded.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	return "service unavailable: " + e.Cause.Error()
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}
