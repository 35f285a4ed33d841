package types

import "strings"

// AgentSpec describes a sub-agent to be spawned under a parent.
// Name constraints: non-empty, UTF-8, bounded, and must not contain an
// embedded NUL.
type AgentSpec struct {
	Name   string
	Parent EntityID
}

// NewAgentSpec validates name and returns an AgentSpec.
func NewAgentSpec(name string, parent EntityID) (AgentSpec, error) {
	if err := validateBoundedUTF8("agent name", name, 1, MaxAgentNameLen); err != nil {
		return AgentSpec{}, err
	}
	if strings.ContainsRune(name, 0) {
		return AgentSpec{}, invalidInput("agent name must not contain a NUL byte")
	}
	return AgentSpec{Name: name, Parent: parent}, nil
}

// Validate re-checks an AgentSpec that was constructed by means other
// than NewAgentSpec (e.g. decoded off the wire).
func (a AgentSpec) Validate() error {
	if err := validateBoundedUTF8("agent name", a.Name, 1, MaxAgentNameLen); err != nil {
		return err
	}
	if strings.ContainsRune(a.Name, 0) {
		return invalidInput("agent name must not contain a NUL byte")
	}
	return nil
}
