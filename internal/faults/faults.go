// Package faults classifies the errors the operation layer reports to callers.
package faults

import "errors"

type Kind uint8

const (
	// KindValidation is malformed or policy-violating input. Never retried.
	KindValidation Kind = iota + 1
	// KindConflict is a lost race on a slot. The caller is expected to
	// re-query availability and pick another slot.
	KindConflict
	// KindNotFound covers unknown handles and ownership mismatches that are
	// deliberately indistinguishable from nonexistence.
	KindNotFound
	// KindAccessDenied is a policy failure where the record's existence is
	// not being concealed.
	KindAccessDenied
	// KindStore is a persistence failure, fatal for the request.
	KindStore
)

type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "unknown fault"
}

func (e *Error) Unwrap() error { return e.Cause }

func Validation(msg string) error   { return &Error{Kind: KindValidation, Msg: msg} }
func Conflict(msg string) error     { return &Error{Kind: KindConflict, Msg: msg} }
func NotFound(msg string) error     { return &Error{Kind: KindNotFound, Msg: msg} }
func AccessDenied(msg string) error { return &Error{Kind: KindAccessDenied, Msg: msg} }

func Store(msg string, cause error) error {
	return &Error{Kind: KindStore, Msg: msg, Cause: cause}
}

// KindOf returns the classification of err, or 0 when err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

func IsKind(err error, k Kind) bool { return KindOf(err) == k }
