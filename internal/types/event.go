package types

// EventKind tags a KernelEvent variant. The numeric values are the
// stable wire tags from spec.md §6 — internal/codec depends on these
// exact values for the canonical encoding.
type EventKind uint8

const (
	EventTaskScheduled  EventKind = 0x01
	EventAgentSpawned   EventKind = 0x02
	EventObservation    EventKind = 0x03
	EventAgentTerminate EventKind = 0x04 // reserved; never emitted by the core
)

// TerminationReason is carried by AgentTerminated, reserved for a
// future direct-termination opcode. The kernel never constructs this
// variant (see spec.md §4.4 "State machine").
type TerminationReason string

// KernelEvent is the tagged sum of events the kernel emits in
// response to a successfully processed operation. Exactly one of the
// typed fields is meaningful, selected by Kind. Immutable once
// constructed.
type KernelEvent struct {
	Kind      EventKind
	Timestamp int64 // unix seconds, monotonically non-decreasing within a kernel instance

	// EventTaskScheduled
	TaskAgent EntityID
	TaskDesc  string

	// EventAgentSpawned
	SpawnParent EntityID
	SpawnChild  EntityID
	SpawnName   string

	// EventObservation
	ObsAgent EntityID
	ObsData  []byte

	// EventAgentTerminate (reserved)
	TermAgent  EntityID
	TermReason TerminationReason
}

// TaskScheduledEvent builds the event emitted by a successful
// ScheduleAgentTask operation.
func TaskScheduledEvent(agent EntityID, task TaskSpec, ts int64) KernelEvent {
	return KernelEvent{
		Kind:      EventTaskScheduled,
		Timestamp: ts,
		TaskAgent: agent,
		TaskDesc:  task.Description(),
	}
}

// AgentSpawnedEvent builds the event emitted by a successful
// SpawnSubAgent operation.
func AgentSpawnedEvent(parent, child EntityID, spec AgentSpec, ts int64) KernelEvent {
	return KernelEvent{
		Kind:        EventAgentSpawned,
		Timestamp:   ts,
		SpawnParent: parent,
		SpawnChild:  child,
		SpawnName:   spec.Name,
	}
}

// ObservationEmittedEvent builds the event emitted by a successful
// EmitObservation operation.
func ObservationEmittedEvent(agent EntityID, data []byte, ts int64) KernelEvent {
	return KernelEvent{
		Kind:      EventObservation,
		Timestamp: ts,
		ObsAgent:  agent,
		ObsData:   data,
	}
}

// Validate checks the structural bounds of the fields selected by Kind.
// The kernel only ever constructs already-valid events; this exists so
// the bus can validate an event at publish time (spec.md §4.3) without
// trusting its caller.
func (e KernelEvent) Validate() error {
	switch e.Kind {
	case EventTaskScheduled:
		return validateBoundedUTF8("task description", e.TaskDesc, 1, MaxTaskDescriptionLen)
	case EventAgentSpawned:
		return validateBoundedUTF8("agent name", e.SpawnName, 1, MaxAgentNameLen)
	case EventObservation:
		if len(e.ObsData) > MaxObservationDataLen {
			return invalidInput("observation data exceeds maximum length of %d bytes (got %d)",
				MaxObservationDataLen, len(e.ObsData))
		}
		return nil
	case EventAgentTerminate:
		return invalidInput("agent termination events are reserved and never published")
	default:
		return invalidInput("unknown event kind %d", e.Kind)
	}
}
