package course

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound            = errors.New("course not found")
	ErrChapterNotFound     = errors.New("chapter not found")
	ErrContentNotFound     = errors.New("chapter content not found")
	ErrChapterNotReady     = errors.New("chapter content has not been generated yet")
	ErrConcurrencyConflict = errors.New("course was modified concurrently; retry against fresh state")
)

// InvalidStateTransitionError is returned when a command is issued against a
// course that is not in the expected source state. Never a silent no-op, so
// duplicate client retries stay observable.
type InvalidStateTransitionError struct {
	Current   State
	Requested State
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.Current, e.Requested)
}

// RefinementLimitExceededError is returned when the refinement round bound is
// hit without an explicit override.
type RefinementLimitExceededError struct {
	Limit int
}

func (e *RefinementLimitExceededError) Error() string {
	return fmt.Sprintf("refinement limit of %d rounds exceeded; resubmit with override to continue", e.Limit)
}

// GenerationFailedError is returned once retries against the text-generation
// capability are exhausted. The course is left in FAILED with the reason stored.
type GenerationFailedError struct {
	Reason string
	Err    error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("generation failed: %s", e.Reason)
}

func (e *GenerationFailedError) Unwrap() error { return e.Err }
