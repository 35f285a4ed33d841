package kernel

import "github.com/toka-os/toka-core/internal/types"

// requiredPermission returns the capability permission string an
// Operation variant demands (spec.md §4.4 step 4). Every OperationKind
// must have an entry; an unmapped kind is a programming error caught
// by the default case in requiredPermission.
const (
	permScheduleTask    = "tasks.schedule"
	permSpawnSubAgent   = "agents.spawn"
	permEmitObservation = "observations.emit"
)

func requiredPermission(kind types.OperationKind) (string, bool) {
	switch kind {
	case types.OpScheduleAgentTask:
		return permScheduleTask, true
	case types.OpSpawnSubAgent:
		return permSpawnSubAgent, true
	case types.OpEmitObservation:
		return permEmitObservation, true
	default:
		return "", false
	}
}
