package runtime

// Metrics lets an embedding binary observe runtime-level behavior
// without internal/runtime taking a hard dependency on a concrete
// metrics backend (spec.md §9's "Metrics interface" — the reference
// composition root, cmd/tokad, wires a prometheus registry behind
// this; internal/runtime never imports prometheus itself). A nil
// Metrics is replaced by a no-op at construction time.
type Metrics interface {
	// SubmitAccepted is called once per successful Runtime.Submit.
	SubmitAccepted()
	// SubmitRejected is called once per failed Runtime.Submit, tagged
	// with the rejecting layer's error kind (e.g. "invalid_input",
	// "unauthorized", "queue_full", "storage_fatal").
	SubmitRejected(kind string)
	// DrainRetry is called each time the drain task retries a failed
	// storage append, with the 1-based attempt number.
	DrainRetry(attempt int)
	// BusLagged is called whenever a bus subscriber falls behind and
	// observes a Lagged marker.
	BusLagged()
}

type noopMetrics struct{}

func (noopMetrics) SubmitAccepted()       {}
func (noopMetrics) SubmitRejected(string) {}
func (noopMetrics) DrainRetry(int)        {}
func (noopMetrics) BusLagged()            {}
