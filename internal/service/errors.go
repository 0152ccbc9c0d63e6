package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fittrainer/pro/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// --- Error Definitions ---
var (
	// not found
	ErrUserNotFound     = errors.New("user not found")
	ErrClientNotFound   = errors.New("client user not found")
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrPlanNotFound     = errors.New("training plan not found")
	ErrSessionNotFound  = errors.New("workout session not found")
	ErrInvoiceNotFound  = errors.New("invoice not found")

	// validation
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidDuration  = errors.New(`duration must look like "N weeks"`)

	// store
	ErrStoreUnavailable = errors.New("store unavailable, retry later")

	// access
	ErrClientNotRole         = errors.New("user found but is not a client")
	ErrClientAlreadyAssigned = errors.New("client is already assigned to another coach")
	ErrClientNotManaged      = errors.New("client is not managed by this coach")
	ErrExerciseAccessDenied  = errors.New("access denied to this exercise")
	ErrPlanAccessDenied      = errors.New("access denied to this training plan")
	ErrSessionAccessDenied   = errors.New("access denied to this workout session")
	ErrInvoiceAccessDenied   = errors.New("access denied to this invoice")
	ErrMediaKeyMismatch      = errors.New("object key was not issued for this upload")

	// lifecycle
	ErrInvalidTransition = errors.New("session status does not allow this change")
	ErrCompletionGate    = errors.New("every exercise must be completed before finishing the session")
	ErrSessionNotActive  = errors.New("workout session is not in progress")
	ErrExerciseNotInPlan = errors.New("exercise is not part of the session's plan")
	ErrFeedbackConflict  = errors.New("exercise feedback changed concurrently, retry")
	ErrInvoiceClosed     = errors.New("invoice is already paid or cancelled")
)

// CompletionGateError lists the plan exercises still lacking completed feedback.
type CompletionGateError struct {
	Missing []string
}

func (e *CompletionGateError) Error() string {
	return fmt.Sprintf("%s (%d missing)", ErrCompletionGate.Error(), len(e.Missing))
}

func (e *CompletionGateError) Is(target error) bool {
	return target == ErrCompletionGate
}

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Options carries the settings shared by every service.
type Options struct {
	StoreTimeout time.Duration
	Now          func() time.Time
	Metrics      *metrics.Manager
	// Location is used for users without a timezone of their own.
	Location *time.Location
}

const defaultStoreTimeout = 5 * time.Second

func (o Options) withDefaults() Options {
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = defaultStoreTimeout
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewTestManager()
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// base holds Options for the embedding service.
type base struct {
	opts Options
}

func newBase(opts Options) base {
	return base{opts: opts.withDefaults()}
}

func (b base) now() time.Time {
	return b.opts.Now()
}

// storeCtx bounds a store round trip.
func (b base) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.opts.StoreTimeout)
}

// storeFailure logs err and marks it retryable.
func storeFailure(op string, err error) error {
	log.WithError(err).WithField("op", op).Error("store call failed")
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStoreUnavailable, err))
}
