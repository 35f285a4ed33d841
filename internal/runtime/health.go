package runtime

// Health is a point-in-time snapshot of runtime status, grounded on
// the teacher's WorkerPool.Health() shape (pkg/queue/pool.go).
type Health struct {
	Healthy        bool   `json:"healthy"`
	KnownAgents    int    `json:"known_agents"`
	BusSubscribers int    `json:"bus_subscribers"`
	FatalError     string `json:"fatal_error,omitempty"`
}

// Health reports the runtime's current health: unhealthy only once
// Fatal has fired (the drain exhausted its retry budget).
func (r *Runtime) Health() Health {
	h := Health{
		Healthy:        true,
		KnownAgents:    r.kernel.KnownAgentCount(),
		BusSubscribers: r.bus.SubscriberCount(),
	}
	select {
	case <-r.fatalCh:
		h.Healthy = false
		h.FatalError = r.FatalError().Error()
	default:
	}
	return h
}
