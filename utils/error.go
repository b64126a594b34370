package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// Kinds matched with errors.Is by callers mapping failures to their transport.
var (
	ErrValidation            = errors.New("validation failed")
	ErrInsufficientAvailable = errors.New("insufficient available units")
	ErrConsistency           = errors.New("inventory consistency violated")
)

// ValidationError reports a cross-entity or input rule violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func NewFieldValidationError(field string, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InsufficientAvailableError is returned when a reclaim or an assignment needs more
// available serial units than the item has.
type InsufficientAvailableError struct {
	ItemId              int
	Requested           int
	CurrentlyAssigned   int
	AdditionalAvailable int
	TotalAvailable      int
	message             string
}

func (e *InsufficientAvailableError) Error() string { return e.message }

func (e *InsufficientAvailableError) Is(target error) bool { return target == ErrInsufficientAvailable }

// NewInsufficientReclaimError is raised when fewer than needed units are available to remove.
func NewInsufficientReclaimError(itemId int, needed int, available int) *InsufficientAvailableError {
	return &InsufficientAvailableError{
		ItemId:              itemId,
		Requested:           needed,
		AdditionalAvailable: available,
		TotalAvailable:      available,
		message:             fmt.Sprintf("cannot reduce quantity: only %d units are available to remove, %d needed", available, needed),
	}
}

// NewInsufficientAssignmentError is raised when an allocation asks for more units than are free.
func NewInsufficientAssignmentError(itemId int, requested int, assigned int, additionalAvailable int) *InsufficientAvailableError {
	total := additionalAvailable + assigned
	return &InsufficientAvailableError{
		ItemId:              itemId,
		Requested:           requested,
		CurrentlyAssigned:   assigned,
		AdditionalAvailable: additionalAvailable,
		TotalAvailable:      total,
		message: fmt.Sprintf("not enough available units. Requested: %d, Currently assigned: %d, Additional available: %d, Total available: %d",
			requested, assigned, additionalAvailable, total),
	}
}

// ConsistencyError means an internal invariant broke; it indicates a bug, never bad input.
type ConsistencyError struct {
	Entity   string
	Id       int
	Expected int
	Actual   int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s %d: expected %d bound units, found %d", e.Entity, e.Id, e.Expected, e.Actual)
}

func (e *ConsistencyError) Is(target error) bool { return target == ErrConsistency }
