package types

import "unicode/utf8"

// TaskSpec describes a unit of work scheduled onto an agent's FIFO
// queue. Immutable once constructed — NewTaskSpec is the only way to
// build one, and it rejects anything that would violate the size
// bound before a single byte reaches the kernel.
type TaskSpec struct {
	description string
}

// NewTaskSpec validates desc and returns a TaskSpec, or an
// InvalidInputError if desc is empty, oversize, or not valid UTF-8.
func NewTaskSpec(desc string) (TaskSpec, error) {
	if err := validateBoundedUTF8("task description", desc, 1, MaxTaskDescriptionLen); err != nil {
		return TaskSpec{}, err
	}
	return TaskSpec{description: desc}, nil
}

// Description returns the task's description text.
func (t TaskSpec) Description() string { return t.description }

// validateBoundedUTF8 enforces minLen <= len(bytes) <= maxLen and
// well-formed UTF-8. Used by every bounded-string field in this
// package (task descriptions, agent names).
func validateBoundedUTF8(field, s string, minLen, maxLen int) error {
	n := len(s)
	if n < minLen {
		return invalidInput("%s must not be empty", field)
	}
	if n > maxLen {
		return invalidInput("%s exceeds maximum length of %d bytes (got %d)", field, maxLen, n)
	}
	if !utf8.ValidString(s) {
		return invalidInput("%s is not valid UTF-8", field)
	}
	return nil
}
