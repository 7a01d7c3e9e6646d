package writeverify

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors. Every failure returned by WriteAndVerify matches exactly
// one of them with errors.Is, or wraps the context error on cancellation.
var (
	ErrIDMismatch           = errors.New("writeverify: record id does not match key id")
	ErrInvalidRecord        = errors.New("writeverify: record cannot be encoded")
	ErrStoreUnavailable     = errors.New("writeverify: store unavailable")
	ErrVerificationNotFound = errors.New("writeverify: written record never became visible")
	ErrVerificationMismatch = errors.New("writeverify: read-back does not match written record")
)

// Kind classifies a WriteAndVerify failure.
type Kind string

const (
	KindNone                 Kind = ""
	KindIDMismatch           Kind = "id_mismatch"
	KindInvalidRecord        Kind = "invalid_record"
	KindStoreUnavailable     Kind = "store_unavailable"
	KindVerificationNotFound Kind = "verification_not_found"
	KindVerificationMismatch Kind = "verification_mismatch"
	KindCancelled            Kind = "cancelled"
	KindUnknown              Kind = "unknown"
)

// KindOf returns the failure kind of err, KindNone for nil.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrIDMismatch):
		return KindIDMismatch
	case errors.Is(err, ErrInvalidRecord):
		return KindInvalidRecord
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrVerificationNotFound):
		return KindVerificationNotFound
	case errors.Is(err, ErrVerificationMismatch):
		return KindVerificationMismatch
	default:
		return KindUnknown
	}
}

// IDMismatchError reports a record whose embedded ID differs from the key ID.
// No write is attempted.
type IDMismatchError struct {
	KeyID    string
	RecordID string
}

func (e *IDMismatchError) Error() string {
	if e.KeyID == "" {
		return "writeverify: record id does not match key id: key id is empty"
	}
	return fmt.Sprintf("writeverify: record id %q does not match key id %q", e.RecordID, e.KeyID)
}

func (e *IDMismatchError) Is(target error) bool { return target == ErrIDMismatch }

// StoreError reports that the single write attempt failed.
type StoreError struct {
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("writeverify: write %s: %v", e.Key, e.Err)
}

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }
func (e *StoreError) Unwrap() error        { return e.Err }

// NotFoundError reports that the key was still absent on the last read-back.
// Cause holds the transport error of the last read, if it failed.
type NotFoundError struct {
	Key      string
	Attempts int
	Cause    error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("writeverify: %s not visible after %d read attempts", e.Key, e.Attempts)
	if e.Cause != nil {
		msg += ": last read failed: " + e.Cause.Error()
	}
	return msg
}

func (e *NotFoundError) Is(target error) bool { return target == ErrVerificationNotFound }
func (e *NotFoundError) Unwrap() error        { return e.Cause }

// MismatchError reports that the last read-back held a different value.
type MismatchError struct {
	Key      string
	Attempts int
	Expected string
	Observed string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("writeverify: %s after %d read attempts: expected %q, observed %q",
		e.Key, e.Attempts, e.Expected, e.Observed)
}

func (e *MismatchError) Is(target error) bool { return target == ErrVerificationMismatch }
