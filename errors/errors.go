package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPath       = errors.New("invalid path")
	ErrAPIError          = errors.New("api error")
	ErrIOError           = errors.New("io error")
	ErrUnsupported       = errors.New("unsupported")
	ErrRemoteUnavailable = errors.New("remote unavailable")
	ErrRemoteSchema      = errors.New("remote schema error")
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrSnapshotCorrupt   = errors.New("snapshot corrupt")
	ErrRestoreItemFailed = errors.New("restore item failed")
	ErrInvalidTarget     = errors.New("invalid restore target")
)

type wrapError struct {
	underlying error
	msg        string
	cause      error
}

var _ error = (*wrapError)(nil)

func NewAPIError(msg string, cause error) error {
	return &wrapError{
		underlying: ErrAPIError,
		msg:        msg,
		cause:      cause,
	}
}

func NewIOError(msg string, cause error) error {
	return &wrapError{
		underlying: ErrIOError,
		msg:        msg,
		cause:      cause,
	}
}

// NewRemoteUnavailable marks cause as a transport-level failure. Errors of this
// kind are the only ones the restore engine retries.
func NewRemoteUnavailable(msg string, cause error) error {
	return &wrapError{
		underlying: ErrRemoteUnavailable,
		msg:        msg,
		cause:      cause,
	}
}

func NewSnapshotNotFound(msg string, cause error) error {
	return &wrapError{
		underlying: ErrSnapshotNotFound,
		msg:        msg,
		cause:      cause,
	}
}

func NewSnapshotCorrupt(msg string, cause error) error {
	return &wrapError{
		underlying: ErrSnapshotCorrupt,
		msg:        msg,
		cause:      cause,
	}
}

func (err *wrapError) Error() string {
	if err == nil {
		return "(*wrapError)(nil)"
	}
	message := err.underlying.Error() + ": " + err.msg
	if err.cause != nil {
		message += ": " + err.cause.Error()
	}
	return message
}

func (err *wrapError) Unwrap() []error {
	if err.cause == nil {
		return []error{err.underlying}
	}
	return []error{err.underlying, err.cause}
}

// RemoteSchemaError is an explicit error payload returned by the form provider.
type RemoteSchemaError struct {
	Message string
}

var _ error = (*RemoteSchemaError)(nil)

func (err *RemoteSchemaError) Error() string {
	return ErrRemoteSchema.Error() + ": " + err.Message
}

func (err *RemoteSchemaError) Is(target error) bool {
	return target == ErrRemoteSchema
}

// RestoreItemError carries the index of an item that could not be restored and
// the last cause observed after retries were exhausted.
type RestoreItemError struct {
	Index int
	Cause error
}

var _ error = (*RestoreItemError)(nil)

func (err *RestoreItemError) Error() string {
	return fmt.Sprintf("%s: item %d: %v", ErrRestoreItemFailed, err.Index, err.Cause)
}

func (err *RestoreItemError) Unwrap() []error {
	if err.Cause == nil {
		return []error{ErrRestoreItemFailed}
	}
	return []error{ErrRestoreItemFailed, err.Cause}
}

// Is, As and Join re-export the standard helpers so callers importing this
// package under the name errors keep access to them.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func Join(errs ...error) error { return errors.Join(errs...) }

func New(text string) error { return errors.New(text) }
