// Package errors defines the failure taxonomy shared by every native engine.
// Engines wrap one of the sentinel kinds with context and callers classify a
// failure with errors.Is or KindOf.
package errors

import stderrors "errors"

var (
	ErrUnauthorized      = stderrors.New("unauthorized")
	ErrNotFound          = stderrors.New("not found")
	ErrInvalidState      = stderrors.New("invalid state")
	ErrInvalidInput      = stderrors.New("invalid input")
	ErrInsufficientFunds = stderrors.New("insufficient funds")
	ErrAlreadyReleased   = stderrors.New("deposit already released")
	ErrOverflow          = stderrors.New("arithmetic overflow")
	ErrUnderflow         = stderrors.New("arithmetic underflow")
	ErrAlreadyExists     = stderrors.New("already exists")
	ErrPaused            = stderrors.New("module paused")
)

// Kind names a failure class independent of its message.
type Kind string

const (
	KindUnknown           Kind = ""
	KindUnauthorized      Kind = "Unauthorized"
	KindNotFound          Kind = "NotFound"
	KindInvalidState      Kind = "InvalidState"
	KindInvalidInput      Kind = "InvalidInput"
	KindInsufficientFunds Kind = "InsufficientFunds"
	KindAlreadyReleased   Kind = "AlreadyReleased"
	KindOverflow          Kind = "Overflow"
	KindUnderflow         Kind = "Underflow"
	KindAlreadyExists     Kind = "AlreadyExists"
	KindPaused            Kind = "Paused"
)

var kinds = []struct {
	sentinel error
	kind     Kind
}{
	// AlreadyReleased is checked ahead of InvalidState since release errors may
	// carry both.
	{ErrAlreadyReleased, KindAlreadyReleased},
	{ErrUnauthorized, KindUnauthorized},
	{ErrNotFound, KindNotFound},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrOverflow, KindOverflow},
	{ErrUnderflow, KindUnderflow},
	{ErrAlreadyExists, KindAlreadyExists},
	{ErrPaused, KindPaused},
	{ErrInvalidState, KindInvalidState},
	{ErrInvalidInput, KindInvalidInput},
}

// KindOf classifies err. Unclassified errors report KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, entry := range kinds {
		if stderrors.Is(err, entry.sentinel) {
			return entry.kind
		}
	}
	return KindUnknown
}
