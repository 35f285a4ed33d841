// Package kernel implements the single entry point for world-state
// mutation: validated, authenticated, authorized messages go in; at
// most one KernelEvent comes out per call, published to the bus before
// Submit returns (spec.md §4.4).
package kernel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/toka-os/toka-core/internal/auth"
	"github.com/toka-os/toka-core/internal/bus"
	"github.com/toka-os/toka-core/internal/types"
)

// slowAuthThreshold is the elapsed-time bar above which a successful
// or failed auth check is logged at Warn; faster checks are not logged
// here (spec.md §4.4 step 2: "if > 100 ms log a warning").
const slowAuthThreshold = 100 * time.Millisecond

// spawnRetryLimit bounds the number of fresh-id retries on the
// astronomically unlikely event of an EntityID collision (spec.md
// §4.4 "spawning a child whose synthesised id collides ... MUST retry
// with a fresh id").
const spawnRetryLimit = 8

// Kernel owns WorldState exclusively. mu guards mutation only; it is
// released before the resulting event is handed to Bus.Publish, per
// spec.md §5's suspension-point rule that the mutation lock MUST be
// released before publishing to the bus.
type Kernel struct {
	mu    sync.Mutex
	state *worldState

	lastTimestamp int64

	validator auth.Validator
	bus       *bus.Bus
	clock     func() time.Time
	log       *slog.Logger
}

// New builds a Kernel with an empty WorldState. validator and b must
// not be nil.
func New(validator auth.Validator, b *bus.Bus, log *slog.Logger) *Kernel {
	if log == nil {
		log = slog.Default()
	}
	return &Kernel{
		state:     newWorldState(),
		validator: validator,
		bus:       b,
		clock:     time.Now,
		log:       log,
	}
}

// Submit runs the full eight-step processing algorithm of spec.md
// §4.4 and returns the single event emitted on success.
func (k *Kernel) Submit(ctx context.Context, msg types.Message) (types.KernelEvent, error) {
	if err := ctx.Err(); err != nil {
		return types.KernelEvent{}, internalErr("context cancelled before submission: %v", err)
	}

	// Step 1: structural validation.
	if err := msg.Validate(); err != nil {
		return types.KernelEvent{}, invalidInputErr("%s", err.Error())
	}

	// Step 2: authentication.
	authStart := k.clock()
	claims, authErr := k.validator.Validate(msg.Capability)
	elapsed := k.clock().Sub(authStart)
	if elapsed > slowAuthThreshold {
		k.log.Warn("capability validation exceeded threshold",
			slog.Duration("elapsed", elapsed))
	}
	if authErr != nil {
		return types.KernelEvent{}, unauthorizedErr("capability validation failed")
	}

	// Step 3: subject binding.
	subject, err := claims.Subject()
	if err != nil || subject != msg.Origin {
		return types.KernelEvent{}, unauthorizedErr("capability subject does not match message origin")
	}

	// Step 4: authorization.
	perm, ok := requiredPermission(msg.Op.Kind)
	if !ok {
		return types.KernelEvent{}, internalErr("no permission mapping for operation kind %d", msg.Op.Kind)
	}
	if !claims.HasPermission(perm) {
		return types.KernelEvent{}, capabilityDeniedErr(perm)
	}

	// Steps 5-7: preconditions, event construction, and publication.
	// mutate releases the mutation lock before publishing (spec.md §5).
	// A publish failure is logged but never rolls back state or fails
	// Submit — state is authoritative.
	event, err := k.mutate(msg.Op)
	if err != nil {
		return types.KernelEvent{}, err
	}

	// Step 8.
	return event, nil
}

func (k *Kernel) mutate(op types.Operation) (types.KernelEvent, error) {
	k.mu.Lock()
	event, err := k.mutateLocked(op)
	k.mu.Unlock()
	if err != nil {
		return types.KernelEvent{}, err
	}

	if pubErr := k.bus.Publish(event); pubErr != nil {
		k.log.Warn("bus publish failed", slog.Any("error", pubErr))
	}
	return event, nil
}

func (k *Kernel) mutateLocked(op types.Operation) (types.KernelEvent, error) {
	switch op.Kind {
	case types.OpScheduleAgentTask:
		return k.scheduleTaskLocked(op.ScheduleAgent, op.ScheduleTask)
	case types.OpSpawnSubAgent:
		return k.spawnSubAgentLocked(op.SpawnParent, op.SpawnSpec)
	case types.OpEmitObservation:
		return k.emitObservationLocked(op.ObserveAgent, op.ObserveData)
	default:
		return types.KernelEvent{}, internalErr("unreachable: operation kind %d passed Validate", op.Kind)
	}
}

func (k *Kernel) scheduleTaskLocked(agent types.EntityID, task types.TaskSpec) (types.KernelEvent, error) {
	if !k.state.isKnown(agent) {
		return types.KernelEvent{}, unknownAgentErr(agent.String())
	}
	if k.state.taskQueueLen(agent) >= types.MaxTasksPerAgent {
		return types.KernelEvent{}, queueFullErr(agent.String())
	}
	k.state.scheduleTask(agent, task)
	ts := k.nextTimestampLocked()
	return types.TaskScheduledEvent(agent, task, ts), nil
}

func (k *Kernel) spawnSubAgentLocked(parent types.EntityID, spec types.AgentSpec) (types.KernelEvent, error) {
	if !k.state.isKnown(parent) {
		return types.KernelEvent{}, unknownAgentErr(parent.String())
	}

	var child types.EntityID
	for attempt := 0; ; attempt++ {
		candidate := types.NewEntityID()
		if !k.state.isKnown(candidate) {
			child = candidate
			break
		}
		if attempt >= spawnRetryLimit {
			return types.KernelEvent{}, internalErr("exhausted %d attempts minting a unique entity id", spawnRetryLimit)
		}
	}

	k.state.spawnAgent(parent, child)
	ts := k.nextTimestampLocked()
	return types.AgentSpawnedEvent(parent, child, spec, ts), nil
}

func (k *Kernel) emitObservationLocked(agent types.EntityID, data []byte) (types.KernelEvent, error) {
	if !k.state.isKnown(agent) {
		return types.KernelEvent{}, unknownAgentErr(agent.String())
	}
	ts := k.nextTimestampLocked()
	return types.ObservationEmittedEvent(agent, data, ts), nil
}

// nextTimestampLocked returns a monotonically non-decreasing unix-
// seconds timestamp. Must be called with mu held.
func (k *Kernel) nextTimestampLocked() int64 {
	now := k.clock().Unix()
	if now < k.lastTimestamp {
		now = k.lastTimestamp
	}
	k.lastTimestamp = now
	return now
}

// KnownAgentCount reports the number of spawned agents (excluding the
// implicit root). Exposed for health/stats reporting.
func (k *Kernel) KnownAgentCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.state.agents)
}
