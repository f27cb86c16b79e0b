package errors

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnauthorized = errors.New("user is not authorized")
var ErrForbidden = errors.New("operation is forbidden for user")

// ErrPaymentMethodRequired is returned when an action needs a card on file
var ErrPaymentMethodRequired = errors.New("add a payment method to continue")

// Kind classifies failures for callers and transport mapping
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthorization
	KindConflict
	KindPrecondition
	KindPayment
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindPrecondition:
		return "precondition"
	case KindPayment:
		return "payment"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a classified failure. Message is safe to show to the user.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// Validation reports malformed input
func Validation(op, format string, args ...any) error {
	return newError(KindValidation, op, nil, format, args...)
}

// Authorization reports a caller that may not perform the action
func Authorization(op, format string, args ...any) error {
	return newError(KindAuthorization, op, ErrForbidden, format, args...)
}

// Conflict reports that the requested interval is taken
func Conflict(op string, err error, format string, args ...any) error {
	return newError(KindConflict, op, err, format, args...)
}

// Precondition reports an action attempted from the wrong status
func Precondition(op, format string, args ...any) error {
	return newError(KindPrecondition, op, nil, format, args...)
}

// Payment reports a gateway failure; message is actionable for the user
func Payment(op string, err error, format string, args ...any) error {
	return newError(KindPayment, op, err, format, args...)
}

// NotFound reports a missing booking or spot
func NotFound(op, format string, args ...any) error {
	return newError(KindNotFound, op, nil, format, args...)
}

// KindOf returns the kind of the first classified error in the chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the user-facing message of a classified error
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

func IsValidation(err error) bool    { return KindOf(err) == KindValidation }
func IsAuthorization(err error) bool { return KindOf(err) == KindAuthorization }
func IsConflict(err error) bool      { return KindOf(err) == KindConflict }
func IsPrecondition(err error) bool  { return KindOf(err) == KindPrecondition }
func IsPayment(err error) bool       { return KindOf(err) == KindPayment }
func IsNotFound(err error) bool      { return KindOf(err) == KindNotFound }

// ItemFailure is one failed sub-operation of a batch
type ItemFailure struct {
	ID  string
	Err error
}

// PartialBatchFailure reports that some items of a best-effort batch failed
type PartialBatchFailure struct {
	Total    int
	Failures []ItemFailure
}

func (e *PartialBatchFailure) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.ID)
	}
	return fmt.Sprintf("%d of %d items failed: %s", len(e.Failures), e.Total, strings.Join(ids, ", "))
}

// IsPartialBatchFailure reports whether err carries per-item batch failures
func IsPartialBatchFailure(err error) bool {
	var e *PartialBatchFailure
	return errors.As(err, &e)
}
