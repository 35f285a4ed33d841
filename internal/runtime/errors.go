package runtime

import "fmt"

// ErrorKind classifies a Runtime-level failure (spec.md §7
// "StorageFatal" plus the ordinary passthrough of KernelError).
type ErrorKind string

const (
	// StorageFatal means the drain task exhausted its retry budget;
	// the runtime is in an unrecoverable state and the embedding
	// process should terminate after flushing diagnostics.
	StorageFatal ErrorKind = "storage_fatal"
	// ShuttingDown is returned by Submit once Shutdown has begun.
	ShuttingDown ErrorKind = "shutting_down"
)

// Error is a Runtime-level error distinct from kernel.Error and
// auth.Error, which Submit passes through unwrapped.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("runtime: %s: %s", e.Kind, e.Reason)
}
