// Package types defines the pure data model of the kernel: entity
// identifiers, operations, messages, and the size-bounded validation
// routines every externally-originating structure must pass before it
// reaches the kernel. Nothing in this package performs I/O.
package types

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// EntityID is an opaque 128-bit identifier for an agent or the root.
// It is total-ordered (lexicographic over its 16 bytes) and immutable
// once minted. The zero value is the designated root identity.
type EntityID [16]byte

// RootEntityID is the implicit root identity, always a valid
// submission origin even though it is never explicitly spawned.
var RootEntityID = EntityID{}

// NewEntityID mints a fresh, random 128-bit identifier. Collisions
// within a single kernel's lifetime are astronomically unlikely; the
// kernel still checks and retries on the rare collision (see
// internal/kernel).
func NewEntityID() EntityID {
	return EntityID(uuid.New())
}

// String renders the canonical 8-4-4-4-12 hex form.
func (id EntityID) String() string {
	return uuid.UUID(id).String()
}

// ParseEntityID parses the textual form produced by String. It never
// accepts any other representation so that Claims.sub round-trips
// exactly.
func ParseEntityID(s string) (EntityID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return EntityID{}, fmt.Errorf("parse entity id %q: %w", s, err)
	}
	if u.String() != s {
		return EntityID{}, fmt.Errorf("parse entity id %q: not in canonical lowercase 8-4-4-4-12 form", s)
	}
	return EntityID(u), nil
}

// IsRoot reports whether id is the implicit root identity.
func (id EntityID) IsRoot() bool {
	return id == RootEntityID
}

// Compare gives the EntityID total order: -1, 0, or 1.
func (id EntityID) Compare(other EntityID) int {
	return bytes.Compare(id[:], other[:])
}
