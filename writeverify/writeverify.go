// Package writeverify persists a full record and confirms that the store
// serves it back before reporting success.
//
// The backing store is eventually consistent from the console's point of
// view, so a write is followed by up to Policy.Attempts reads, each preceded
// by a wait of BaseDelay*attempt. The read-back is compared with the written
// record by its distinguishing value (business name, customer name or
// email). The default policy waits 100, 200, 300, 400 and 500ms. Only
// customers without name or email accept any read-back; a business with an
// empty name must read back an empty name.
//
// Concurrent writers of the same key are not coordinated. A second writer
// landing during verification makes the first call report a mismatch even
// though the store is healthy.
package writeverify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/logging"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/records"
)

const (
	DefaultAttempts  = 5
	DefaultBaseDelay = 100 * time.Millisecond

	// maxObservedLen bounds raw read-backs quoted in mismatch errors.
	maxObservedLen = 256
)

// Policy is the read-back schedule.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
}

// DefaultPolicy returns 5 attempts at 100ms steps.
func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, BaseDelay: DefaultBaseDelay}
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	return p
}

// Delay returns the wait before the given 1-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}

// Budget returns the total wait when every attempt is used.
func (p Policy) Budget() time.Duration {
	var total time.Duration
	for i := 1; i <= p.Attempts; i++ {
		total += p.Delay(i)
	}
	return total
}

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Outcome describes one finished WriteAndVerify call.
type Outcome struct {
	Kind     string
	Key      string
	Attempts int
	Elapsed  time.Duration
	Err      error
}

// Result is "success" or the failure kind.
func (o Outcome) Result() string {
	if o.Err == nil {
		return "success"
	}
	return string(KindOf(o.Err))
}

// Options configures a Verifier. Zero values select defaults.
type Options struct {
	Policy   Policy
	Sleep    SleepFunc
	Observer func(Outcome)
	Logger   *logging.Logger
}

// Verifier runs write-verify for one record kind.
type Verifier[T records.Record] struct {
	store    kvstore.Store
	kind     records.Kind
	policy   Policy
	sleep    SleepFunc
	observer func(Outcome)
	log      *logging.Logger
}

// New creates a Verifier writing records of kind into store.
func New[T records.Record](store kvstore.Store, kind records.Kind, opts Options) *Verifier[T] {
	v := &Verifier[T]{
		store:    store,
		kind:     kind,
		policy:   opts.Policy.normalized(),
		sleep:    opts.Sleep,
		observer: opts.Observer,
		log:      opts.Logger,
	}
	if v.sleep == nil {
		v.sleep = sleepContext
	}
	if v.log == nil {
		v.log = logging.Default()
	}
	return v
}

// NewBusiness creates a Verifier for business records.
func NewBusiness(store kvstore.Store, opts Options) *Verifier[records.Business] {
	return New[records.Business](store, records.BusinessKind, opts)
}

// NewCustomer creates a Verifier for customer records.
func NewCustomer(store kvstore.Store, opts Options) *Verifier[records.Customer] {
	return New[records.Customer](store, records.CustomerKind, opts)
}

// Policy returns the effective schedule.
func (v *Verifier[T]) Policy() Policy {
	return v.policy
}

// Kind returns the record kind this verifier writes.
func (v *Verifier[T]) Kind() records.Kind {
	return v.kind
}

type readState int

const (
	stateMissing readState = iota
	stateMismatch
)

// WriteAndVerify stores rec under id's key and returns the record as read
// back from the store once it matches what was written.
func (v *Verifier[T]) WriteAndVerify(ctx context.Context, id string, rec T) (T, error) {
	start := time.Now()
	key := v.kind.Key(id)
	got, attempts, err := v.writeAndVerify(ctx, id, key, rec)
	v.finish(ctx, Outcome{
		Kind:     v.kind.Name,
		Key:      key,
		Attempts: attempts,
		Elapsed:  time.Since(start),
		Err:      err,
	})
	return got, err
}

func (v *Verifier[T]) writeAndVerify(ctx context.Context, id, key string, rec T) (T, int, error) {
	var zero T

	if id == "" || rec.RecordID() != id {
		return zero, 0, &IDMismatchError{KeyID: id, RecordID: rec.RecordID()}
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return zero, 0, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	if err := v.store.Set(ctx, key, string(payload)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, 0, fmt.Errorf("writeverify: write %s: %w", key, ctxErr)
		}
		return zero, 0, &StoreError{Key: key, Err: err}
	}

	expected := rec.Distinguisher()
	anyMatches := expected == "" && acceptsBlank(rec)

	var (
		state    readState
		observed string
		readErr  error
	)
	for attempt := 1; attempt <= v.policy.Attempts; attempt++ {
		if err := v.sleep(ctx, v.policy.Delay(attempt)); err != nil {
			return zero, attempt - 1, fmt.Errorf("writeverify: verify %s: cancelled after %d read attempts: %w", key, attempt-1, err)
		}

		raw, found, err := v.store.Get(ctx, key)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, attempt, fmt.Errorf("writeverify: verify %s: cancelled after %d read attempts: %w", key, attempt, ctxErr)
			}
			v.log.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
				"key":     key,
				"attempt": attempt,
			}).Debug("read-back failed")
			state, readErr = stateMissing, err
			continue
		}
		readErr = nil

		if !found {
			state = stateMissing
			continue
		}

		var got T
		if err := json.Unmarshal([]byte(raw), &got); err != nil {
			state, observed = stateMismatch, truncate(raw)
			continue
		}

		actual := got.Distinguisher()
		if anyMatches || actual == expected {
			return got, attempt, nil
		}
		state, observed = stateMismatch, actual
	}

	if state == stateMissing {
		return zero, v.policy.Attempts, &NotFoundError{Key: key, Attempts: v.policy.Attempts, Cause: readErr}
	}
	return zero, v.policy.Attempts, &MismatchError{
		Key:      key,
		Attempts: v.policy.Attempts,
		Expected: expected,
		Observed: observed,
	}
}

func (v *Verifier[T]) finish(ctx context.Context, o Outcome) {
	if v.observer != nil {
		v.observer(o)
	}

	entry := v.log.WithContext(ctx).WithFields(logrus.Fields{
		"kind":       o.Kind,
		"key":        o.Key,
		"attempts":   o.Attempts,
		"elapsed_ms": o.Elapsed.Milliseconds(),
		"result":     o.Result(),
	})
	if o.Err != nil {
		entry.WithError(o.Err).Warn("write-verify failed")
		return
	}
	entry.Info("write-verify succeeded")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func acceptsBlank(rec records.Record) bool {
	a, ok := rec.(records.BlankDistinguisherAccepter)
	return ok && a.AcceptsBlankDistinguisher()
}

// truncate cuts s to at most maxObservedLen bytes on a rune boundary.
func truncate(s string) string {
	if len(s) <= maxObservedLen {
		return s
	}
	n := maxObservedLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
