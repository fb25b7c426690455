package engine

import "fmt"

// ValidationError rejects bad input before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError rejects an operation that would interleave with an in-flight
// one; existing state is untouched.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string {
	return e.Reason
}

// DepthExceededError refuses a breakdown that would exceed the project's
// configured maximum depth.
type DepthExceededError struct {
	TaskID string
	Depth  int
	Max    int
}

func (e DepthExceededError) Error() string {
	return fmt.Sprintf("task %s at depth %d; max breakdown depth is %d", e.TaskID, e.Depth, e.Max)
}

// IntegrityError flags corrupted stored state, such as a parent cycle.
type IntegrityError struct {
	Reason string
}

func (e IntegrityError) Error() string {
	return "integrity violation: " + e.Reason
}
