package engine

import (
	"errors"

	"github.com/chorusbot/chorus/internal/yamusic"
)

// Kind classifies a mutation outcome. The zero value means success.
type Kind string

const (
	KindNone               Kind = ""
	KindNotFound           Kind = "not_found"
	KindPermissionDenied   Kind = "permission_denied"
	KindRevisionConflict   Kind = "revision_conflict"
	KindValidationRejected Kind = "validation_rejected"
	KindAuthInvalid        Kind = "auth_invalid"
	KindUnavailable        Kind = "unavailable"
	KindSilentNoOp         Kind = "silent_noop"
)

// Result is the outcome of one engine operation. The engine never returns
// Go errors for expected business outcomes; Message is relayed to the end
// user unmodified.
type Result struct {
	OK      bool
	Kind    Kind
	Message string
}

func succeeded() Result {
	return Result{OK: true}
}

func failed(kind Kind, message string) Result {
	return Result{Kind: kind, Message: message}
}

// classify maps a typed remote error onto the result taxonomy. The engine
// branches on error type only, never on message text.
func classify(err error) (Kind, string) {
	var (
		conflict    *yamusic.RevisionConflictError
		rejected    *yamusic.ValidationRejectedError
		authInvalid *yamusic.AuthInvalidError
		notFound    *yamusic.NotFoundError
		unavailable *yamusic.UnavailableError
	)

	switch {
	case errors.As(err, &conflict):
		return KindRevisionConflict, "playlist changed concurrently, try again"
	case errors.As(err, &rejected):
		return KindValidationRejected, rejected.Reason
	case errors.As(err, &authInvalid):
		return KindAuthInvalid, "the account credential was rejected, set it again"
	case errors.As(err, &notFound):
		return KindNotFound, err.Error()
	case errors.As(err, &unavailable):
		return KindUnavailable, "the music service is unavailable, try again later"
	default:
		return KindUnavailable, err.Error()
	}
}

func isConflict(err error) bool {
	var conflict *yamusic.RevisionConflictError
	return errors.As(err, &conflict)
}

func isUnavailable(err error) bool {
	var unavailable *yamusic.UnavailableError
	return errors.As(err, &unavailable)
}

func isAuthInvalid(err error) bool {
	var authInvalid *yamusic.AuthInvalidError
	return errors.As(err, &authInvalid)
}
