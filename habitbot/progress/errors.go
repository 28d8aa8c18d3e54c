package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/ellavondegurechaff/habitbot/habitbot/database/repositories"
)

const (
	// ReasonReplayedAction marks a transport redelivery of an action already applied.
	ReasonReplayedAction = "replayed_action"
	// ReasonAlreadyCompletedToday marks a second completion of the same habit on the same day.
	ReasonAlreadyCompletedToday = "already_completed_today"
)

// ValidationError is a user-correctable input problem. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DuplicateActionError is an expected outcome, not a failure: the effect was
// already applied and nothing changed.
type DuplicateActionError struct {
	ActionID string
	Reason   string
}

func (e *DuplicateActionError) Error() string {
	if e.Reason == ReasonAlreadyCompletedToday {
		return "habit already completed today"
	}
	return fmt.Sprintf("action %s already processed", e.ActionID)
}

type NotFoundError struct {
	Entity string
	ID     interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

// InfrastructureError covers storage failures and timeouts. Retrying with the
// same action id is safe.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsDuplicate(err error) bool {
	var target *DuplicateActionError
	return errors.As(err, &target)
}

func IsAlreadyCompletedToday(err error) bool {
	var target *DuplicateActionError
	return errors.As(err, &target) && target.Reason == ReasonAlreadyCompletedToday
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsInfrastructure(err error) bool {
	var target *InfrastructureError
	return errors.As(err, &target)
}

// classify maps any error leaving the engine onto the taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsValidation(err) || IsDuplicate(err) || IsNotFound(err) || IsInfrastructure(err) {
		return err
	}

	var nfe *repositories.NotFoundError
	if errors.As(err, &nfe) {
		return &NotFoundError{Entity: nfe.Entity, ID: nfe.ID}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &InfrastructureError{Op: op + " timed out", Err: err}
	}
	return &InfrastructureError{Op: op, Err: err}
}
