package types

// OperationKind tags which variant an Operation holds. Dispatch inside
// the kernel is a closed switch over this tag — extensibility means
// growing this sum type and its matching KernelEvent variant, never a
// runtime handler registry.
type OperationKind uint8

const (
	OpScheduleAgentTask OperationKind = iota + 1
	OpSpawnSubAgent
	OpEmitObservation
)

// Operation is the tagged sum of caller-submitted actions. Exactly
// one of the typed fields is meaningful, selected by Kind.
type Operation struct {
	Kind OperationKind

	// OpScheduleAgentTask
	ScheduleAgent EntityID
	ScheduleTask  TaskSpec

	// OpSpawnSubAgent
	SpawnParent EntityID
	SpawnSpec   AgentSpec

	// OpEmitObservation
	ObserveAgent EntityID
	ObserveData  []byte
}

// NewScheduleAgentTask builds a ScheduleAgentTask operation.
func NewScheduleAgentTask(agent EntityID, task TaskSpec) Operation {
	return Operation{Kind: OpScheduleAgentTask, ScheduleAgent: agent, ScheduleTask: task}
}

// NewSpawnSubAgent builds a SpawnSubAgent operation.
func NewSpawnSubAgent(parent EntityID, spec AgentSpec) Operation {
	return Operation{Kind: OpSpawnSubAgent, SpawnParent: parent, SpawnSpec: spec}
}

// NewEmitObservation builds an EmitObservation operation.
func NewEmitObservation(agent EntityID, data []byte) Operation {
	return Operation{Kind: OpEmitObservation, ObserveAgent: agent, ObserveData: data}
}

// Validate checks operation-specific size bounds. Structural
// malformation (unknown Kind) and size violations both return
// InvalidInputError; it never allocates beyond validating the already
// in-memory fields.
func (op Operation) Validate() error {
	switch op.Kind {
	case OpScheduleAgentTask:
		if err := op.ScheduleTask.Validate(); err != nil {
			return err
		}
		return nil
	case OpSpawnSubAgent:
		return op.SpawnSpec.Validate()
	case OpEmitObservation:
		if len(op.ObserveData) > MaxObservationDataLen {
			return invalidInput("observation data exceeds maximum length of %d bytes (got %d)",
				MaxObservationDataLen, len(op.ObserveData))
		}
		return nil
	default:
		return invalidInput("unknown operation kind %d", op.Kind)
	}
}

// Validate on TaskSpec re-verifies a spec that was constructed by
// decoding rather than NewTaskSpec.
func (t TaskSpec) Validate() error {
	return validateBoundedUTF8("task description", t.description, 1, MaxTaskDescriptionLen)
}
