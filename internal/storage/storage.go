// Package storage defines the durable, totally-ordered event log
// contract (spec.md §4.5). Two reference backends implement it:
// internal/storage/memorystore (non-durable) and
// internal/storage/sqlitestore (embedded, persistent).
package storage

import (
	"context"
	"fmt"

	"github.com/toka-os/toka-core/internal/codec"
	"github.com/toka-os/toka-core/internal/types"
)

// Stored pairs a causal EventId with the event it identifies.
type Stored struct {
	ID    codec.EventID
	Event types.KernelEvent
}

// Storage is the append-only event log contract shared by every
// backend. Implementations must serialise concurrent Append calls
// (append is linear with respect to Tip) and must preserve append
// order for Range and Live.
type Storage interface {
	// Append assigns the next EventId in the causal chain and durably
	// records event. Concurrent callers are serialised internally.
	Append(ctx context.Context, event types.KernelEvent) (codec.EventID, error)

	// Get fetches a single event by id. Returns an *Error of kind
	// NotFound if absent.
	Get(ctx context.Context, id codec.EventID) (types.KernelEvent, error)

	// Tip returns the most recently appended EventId, or
	// (ZeroEventID, false) if the log is empty.
	Tip(ctx context.Context) (codec.EventID, bool, error)

	// Range yields up to limit events appended strictly after from,
	// in append order; a non-positive limit means no limit. Pass
	// codec.ZeroEventID to start from the beginning of the log.
	Range(ctx context.Context, from codec.EventID, limit int) ([]Stored, error)

	// Live streams events appended from the moment of subscription
	// onward. The returned channel is closed when ctx is cancelled or
	// Close is called.
	Live(ctx context.Context) (<-chan Stored, error)

	// Close releases backend resources. Idempotent.
	Close() error
}

// ErrorKind classifies a storage failure (spec.md §4.5, §7).
type ErrorKind string

const (
	Full     ErrorKind = "full"
	Backend  ErrorKind = "backend"
	NotFound ErrorKind = "not_found"
	Corrupt  ErrorKind = "corrupt"
)

// Error is the typed error every Storage implementation returns.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage: %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("storage: %s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewNotFoundError builds a NotFound error for the given id.
func NewNotFoundError(id codec.EventID) error {
	return &Error{Kind: NotFound, Reason: fmt.Sprintf("no event with id %s", id)}
}

// NewFullError builds a Full error.
func NewFullError(reason string) error {
	return &Error{Kind: Full, Reason: reason}
}

// NewBackendError wraps an underlying backend error.
func NewBackendError(reason string, err error) error {
	return &Error{Kind: Backend, Reason: reason, Err: err}
}

// NewCorruptError builds a Corrupt error, used on startup recovery
// when the order sequence has a gap or the hash chain does not verify.
func NewCorruptError(reason string) error {
	return &Error{Kind: Corrupt, Reason: reason}
}
