package escore

import (
	"errors"
	"fmt"
)

// CoreError is the base error type every escore error embeds. It carries
// the operation that failed and the underlying cause, mirroring the
// teacher's Op/Err embedding idiom.
type CoreError struct {
	Op  string
	Err error
}

func (e CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

func (e CoreError) Unwrap() error { return e.Err }

// TransientError represents a retryable failure: transport failures,
// HTTP 408, HTTP 5xx, or an interruption during I/O.
type TransientError struct {
	CoreError
}

// ConcurrencyViolationError is a distinct subtype of Transient raised when
// the store reports HTTP 409 (a precondition was violated).
type ConcurrencyViolationError struct {
	TransientError
	Subject string
}

// InterruptedError represents a thread/goroutine interruption at an I/O
// boundary (e.g. context cancellation during a blocking read).
type InterruptedError struct {
	TransientError
}

// NonTransientError represents a failure that must not be retried: HTTP 4xx
// (other than 408/409), non-2xx outside 4xx/5xx, marshalling failures,
// invalid local option usage, type resolution failures, or cache misuse.
type NonTransientError struct {
	CoreError
}

// MarshallingError wraps a JSON encode/decode failure.
type MarshallingError struct {
	NonTransientError
}

// InvalidUsageError is raised by local pre-flight option validation.
type InvalidUsageError struct {
	NonTransientError
	Field string
}

// TypeResolutionError is raised when a class cannot be mapped to/from a
// wire type string, or when the mapping is ambiguous.
type TypeResolutionError struct {
	NonTransientError
	TypeString string
}

// AmbiguousUpcasterError is raised when more than one upcaster in a chain
// claims the same event.
type AmbiguousUpcasterError struct {
	NonTransientError
	EventType string
}

// SubjectAlreadyExistsError is raised by a PRISTINE subject-condition check
// when events already exist for the subject.
type SubjectAlreadyExistsError struct {
	NonTransientError
	Subject string
}

// SubjectDoesNotExistError is raised by an EXISTS subject-condition check
// when no events exist for the subject.
type SubjectDoesNotExistError struct {
	NonTransientError
	Subject string
}

// Unwrap on each leaf type returns its embedded Transient/NonTransient
// parent rather than relying on the promoted CoreError.Unwrap, which would
// otherwise skip straight past the parent to the leaf cause and make
// errors.As(err, &transientOrNonTransient) fail to match. The parent's own
// (promoted) Unwrap still reaches the leaf cause for callers that keep
// unwrapping further.
func (e *ConcurrencyViolationError) Unwrap() error { return &e.TransientError }
func (e *InterruptedError) Unwrap() error          { return &e.TransientError }

func (e *MarshallingError) Unwrap() error          { return &e.NonTransientError }
func (e *InvalidUsageError) Unwrap() error         { return &e.NonTransientError }
func (e *TypeResolutionError) Unwrap() error       { return &e.NonTransientError }
func (e *AmbiguousUpcasterError) Unwrap() error    { return &e.NonTransientError }
func (e *SubjectAlreadyExistsError) Unwrap() error { return &e.NonTransientError }
func (e *SubjectDoesNotExistError) Unwrap() error  { return &e.NonTransientError }

func newTransient(op string, err error) *TransientError {
	return &TransientError{CoreError{Op: op, Err: err}}
}

func newNonTransient(op string, err error) *NonTransientError {
	return &NonTransientError{CoreError{Op: op, Err: err}}
}

func newConcurrencyViolation(op, subject string, err error) *ConcurrencyViolationError {
	return &ConcurrencyViolationError{TransientError{CoreError{Op: op, Err: err}}, subject}
}

func newInterrupted(op string, err error) *InterruptedError {
	return &InterruptedError{TransientError{CoreError{Op: op, Err: err}}}
}

func newMarshalling(op string, err error) *MarshallingError {
	return &MarshallingError{NonTransientError{CoreError{Op: op, Err: err}}}
}

func newInvalidUsage(op, field string, err error) *InvalidUsageError {
	return &InvalidUsageError{NonTransientError{CoreError{Op: op, Err: err}}, field}
}

func newTypeResolution(op, typeString string, err error) *TypeResolutionError {
	return &TypeResolutionError{NonTransientError{CoreError{Op: op, Err: err}}, typeString}
}

func newAmbiguousUpcaster(op, eventType string) *AmbiguousUpcasterError {
	return &AmbiguousUpcasterError{NonTransientError{CoreError{Op: op,
		Err: fmt.Errorf("more than one upcaster claims event type %q", eventType)}}, eventType}
}

func newSubjectAlreadyExists(op, subject string) *SubjectAlreadyExistsError {
	return &SubjectAlreadyExistsError{NonTransientError{CoreError{Op: op,
		Err: fmt.Errorf("subject %q already has events", subject)}}, subject}
}

func newSubjectDoesNotExist(op, subject string) *SubjectDoesNotExistError {
	return &SubjectDoesNotExistError{NonTransientError{CoreError{Op: op,
		Err: fmt.Errorf("subject %q has no events", subject)}}, subject}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var e *TransientError
	return errors.As(err, &e)
}

// IsConcurrencyViolation reports whether err is (or wraps) a
// ConcurrencyViolationError.
func IsConcurrencyViolation(err error) bool {
	var e *ConcurrencyViolationError
	return errors.As(err, &e)
}

// IsNonTransient reports whether err is (or wraps) a NonTransientError.
func IsNonTransient(err error) bool {
	var e *NonTransientError
	return errors.As(err, &e)
}

// IsInterrupted reports whether err is (or wraps) an InterruptedError.
func IsInterrupted(err error) bool {
	var e *InterruptedError
	return errors.As(err, &e)
}

// IsSubjectAlreadyExists reports whether err is a SubjectAlreadyExistsError.
func IsSubjectAlreadyExists(err error) bool {
	var e *SubjectAlreadyExistsError
	return errors.As(err, &e)
}

// IsSubjectDoesNotExist reports whether err is a SubjectDoesNotExistError.
func IsSubjectDoesNotExist(err error) bool {
	var e *SubjectDoesNotExistError
	return errors.As(err, &e)
}
