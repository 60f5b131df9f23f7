// Package errdef classifies postbox failures so callers can report them
// without inspecting error strings.
package errdef

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation    Kind = "ValidationError"
	KindMalformedBody Kind = "MalformedBodyError"
	KindNetwork       Kind = "NetworkError"
	KindTimeout       Kind = "TimeoutError"
	KindProtocol      Kind = "ProtocolError"
	KindAuthorization Kind = "AuthorizationError"
	KindNotFound      Kind = "NotFoundError"
	KindConflict      Kind = "ConflictError"
	KindCanceled      Kind = "CanceledError"
	KindStorage       Kind = "StorageError"
	KindInternal      Kind = "InternalError"
)

// Execution reports whether the kind describes a failure of the outbound call itself.
func (k Kind) Execution() bool {
	switch k {
	case KindNetwork, KindTimeout, KindProtocol:
		return true
	}
	return false
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return e.Op
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches kind and op to err. A nil err stays nil.
func Wrap(kind Kind, err error, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in the chain,
// or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
