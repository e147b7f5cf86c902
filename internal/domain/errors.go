package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound             ErrorKind = "not_found"
	KindInvalidInput         ErrorKind = "invalid_input"
	KindPastBooking          ErrorKind = "past_booking"
	KindOutsideBusinessHours ErrorKind = "outside_business_hours"
	KindSlotBlocked          ErrorKind = "slot_blocked"
	KindSlotTaken            ErrorKind = "slot_taken"
	KindForbidden            ErrorKind = "forbidden"
	KindInvalidState         ErrorKind = "invalid_state"
	KindTooLate              ErrorKind = "too_late"
	KindAlreadySettled       ErrorKind = "already_settled"
)

// Error is a classified failure surfaced to callers. Reason carries the
// agenda block reason for slot_blocked rejections.
type Error struct {
	Kind    ErrorKind
	Message string
	Reason  string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrSlotTaken)
// holds for every slot_taken failure regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrInvalidInput         = &Error{Kind: KindInvalidInput}
	ErrPastBooking          = &Error{Kind: KindPastBooking}
	ErrOutsideBusinessHours = &Error{Kind: KindOutsideBusinessHours}
	ErrSlotBlocked          = &Error{Kind: KindSlotBlocked}
	ErrSlotTaken            = &Error{Kind: KindSlotTaken}
	ErrForbidden            = &Error{Kind: KindForbidden}
	ErrInvalidState         = &Error{Kind: KindInvalidState}
	ErrTooLate              = &Error{Kind: KindTooLate}
	ErrAlreadySettled       = &Error{Kind: KindAlreadySettled}
)

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(what string) error {
	return newError(KindNotFound, "%s not found", what)
}

func InvalidInput(format string, args ...any) error {
	return newError(KindInvalidInput, format, args...)
}

func InvalidTimeFormat(value string) error {
	return newError(KindInvalidInput, "invalid time format: %q", value)
}

func Forbidden(format string, args ...any) error {
	return newError(KindForbidden, format, args...)
}

func InvalidState(format string, args ...any) error {
	return newError(KindInvalidState, format, args...)
}

func SlotBlocked(reason string) error {
	msg := "the requested slot is blocked"
	if reason != "" {
		msg += ": " + reason
	}
	return &Error{Kind: KindSlotBlocked, Message: msg, Reason: reason}
}

func SlotTaken() error {
	return newError(KindSlotTaken, "the staff member already has an appointment in that slot")
}

func TooLate(notice string) error {
	return newError(KindTooLate, "%s notice required", notice)
}

// KindOf returns the kind of the first *Error in err's chain, or "" when err is unclassified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ReasonOf returns the block reason attached to a slot_blocked error.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
