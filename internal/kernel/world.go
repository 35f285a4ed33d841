package kernel

import "github.com/toka-os/toka-core/internal/types"

// worldState is the kernel's exclusively-owned in-memory state
// (spec.md §3 "WorldState"). It only ever grows by appending; there is
// no terminal state and no deletion path in the core.
type worldState struct {
	agentTasks map[types.EntityID][]types.TaskSpec
	agents     map[types.EntityID]struct{}
	parent     map[types.EntityID]types.EntityID
}

func newWorldState() *worldState {
	return &worldState{
		agentTasks: make(map[types.EntityID][]types.TaskSpec),
		agents:     make(map[types.EntityID]struct{}),
		parent:     make(map[types.EntityID]types.EntityID),
	}
}

// isKnown reports whether id is a valid operation subject: the
// implicit root, or a previously spawned agent.
func (w *worldState) isKnown(id types.EntityID) bool {
	if id.IsRoot() {
		return true
	}
	_, ok := w.agents[id]
	return ok
}

func (w *worldState) taskQueueLen(agent types.EntityID) int {
	return len(w.agentTasks[agent])
}

func (w *worldState) scheduleTask(agent types.EntityID, task types.TaskSpec) {
	w.agentTasks[agent] = append(w.agentTasks[agent], task)
}

func (w *worldState) spawnAgent(parent, child types.EntityID) {
	w.agents[child] = struct{}{}
	w.parent[child] = parent
}
