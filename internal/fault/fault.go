package fault

import (
	"errors"
	"fmt"
)

// Kind labels a failure class that the controller reports to observers.
type Kind string

const (
	KindDevice        Kind = "device"
	KindEmptyCapture  Kind = "empty_capture"
	KindNetwork       Kind = "network"
	KindAuth          Kind = "auth"
	KindService       Kind = "service"
	KindCorruptLedger Kind = "corrupt_ledger"
	KindConfig        Kind = "config"
)

// Error pairs an underlying error with its taxonomy kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error from a message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

// Newf creates a classified error from a format string.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind to err. A nil err returns nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Classify returns the kind carried anywhere in err's chain. Errors that
// were never classified default to KindService, the catch-all for remote
// and internal failures.
func Classify(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindService
}
