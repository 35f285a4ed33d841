// Package runtime is the single async driver around the synchronous
// core: it wires the kernel, bus, and storage together, persists every
// emitted event on a background drain with bounded retry, and exposes
// the composite submit/subscribe/shutdown surface external callers
// use (spec.md §4.6). Grounded on the teacher's WorkerPool
// (pkg/queue/pool.go): graceful Start/Stop, a sync.Once-guarded stop
// signal, and a WaitGroup for the background goroutine.
package runtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/toka-os/toka-core/internal/auth"
	"github.com/toka-os/toka-core/internal/bus"
	"github.com/toka-os/toka-core/internal/codec"
	"github.com/toka-os/toka-core/internal/kernel"
	"github.com/toka-os/toka-core/internal/storage"
	"github.com/toka-os/toka-core/internal/storage/memorystore"
	"github.com/toka-os/toka-core/internal/storage/sqlitestore"
	"github.com/toka-os/toka-core/internal/types"
)

// dispatchCapacity bounds the number of submissions awaiting drain
// persistence at once. A submission blocks enqueueing past this
// point rather than growing without limit.
const dispatchCapacity = 4096

type pendingAppend struct {
	event  types.KernelEvent
	result chan appendResult
}

type appendResult struct {
	id  codec.EventID
	err error
}

// Runtime composes a Kernel, Bus, and Storage backend into the single
// externally-facing surface: Submit, Subscribe, Health, Shutdown.
type Runtime struct {
	cfg    Config
	kernel *kernel.Kernel
	bus    *bus.Bus
	store   storage.Storage
	log     *slog.Logger
	metrics Metrics

	dispatch chan *pendingAppend

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	fatalCh   chan struct{}
	fatalOnce sync.Once
	fatalErr  error
	fatalMu   sync.RWMutex

	shuttingDown atomic.Bool
}

// New constructs a Runtime: a fresh Kernel and Bus, a Storage backend
// selected by cfg.Storage, and starts the background drain task.
func New(cfg Config, validator auth.Validator, log *slog.Logger) (*Runtime, error) {
	cfg, err := withDefaults(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	var store storage.Storage
	switch cfg.Storage {
	case StorageMemory:
		store = memorystore.New()
	case StoragePersistent:
		store, err = sqlitestore.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("runtime: unknown storage kind " + string(cfg.Storage))
	}

	b := bus.New(cfg.BusCapacity)
	k := kernel.New(validator, b, log)

	r := &Runtime{
		cfg:      cfg,
		kernel:   k,
		bus:      b,
		store:    store,
		log:      log,
		metrics:  metrics,
		dispatch: make(chan *pendingAppend, dispatchCapacity),
		stopCh:   make(chan struct{}),
		fatalCh:  make(chan struct{}),
	}

	r.wg.Add(1)
	go r.drainLoop()

	r.wg.Add(1)
	go r.observeLag()

	return r, nil
}

// observeLag subscribes to the bus purely to surface Lagged markers as
// a metric; it carries no correlation or storage responsibility (see
// drainLoop for the actual persistence path).
func (r *Runtime) observeLag() {
	defer r.wg.Done()
	sub := r.bus.Subscribe()
	defer sub.Close()
	for {
		select {
		case item, ok := <-sub.Items:
			if !ok {
				return
			}
			if item.IsLagged() {
				r.metrics.BusLagged()
			}
		case <-r.stopCh:
			return
		}
	}
}

// Submit runs msg through the kernel and waits for the background
// drain to durably persist the resulting event, returning both the
// event and its storage-assigned EventId.
func (r *Runtime) Submit(ctx context.Context, msg types.Message) (codec.EventID, types.KernelEvent, error) {
	id, event, err := r.submit(ctx, msg)
	if err != nil {
		r.metrics.SubmitRejected(errorKind(err))
	} else {
		r.metrics.SubmitAccepted()
	}
	return id, event, err
}

func (r *Runtime) submit(ctx context.Context, msg types.Message) (codec.EventID, types.KernelEvent, error) {
	if r.shuttingDown.Load() {
		return codec.EventID{}, types.KernelEvent{}, &Error{Kind: ShuttingDown, Reason: "runtime is shutting down"}
	}

	event, err := r.kernel.Submit(ctx, msg)
	if err != nil {
		return codec.EventID{}, types.KernelEvent{}, err
	}

	pending := &pendingAppend{event: event, result: make(chan appendResult, 1)}
	select {
	case r.dispatch <- pending:
	case <-ctx.Done():
		return codec.EventID{}, event, ctx.Err()
	case <-r.stopCh:
		return codec.EventID{}, event, &Error{Kind: ShuttingDown, Reason: "runtime is shutting down"}
	}

	select {
	case res := <-pending.result:
		if res.err != nil {
			return codec.EventID{}, event, res.err
		}
		return res.id, event, nil
	case <-ctx.Done():
		return codec.EventID{}, event, ctx.Err()
	}
}

// errorKind extracts a short, metric-friendly tag from any error this
// package's Submit path can return, without the caller needing to know
// about kernel.Error, auth.Error, or runtime.Error individually.
func errorKind(err error) string {
	var kernelErr *kernel.Error
	if errors.As(err, &kernelErr) {
		return string(kernelErr.Kind)
	}
	var runtimeErr *Error
	if errors.As(err, &runtimeErr) {
		return string(runtimeErr.Kind)
	}
	return "unknown"
}

// Subscribe returns a composite stream: a backfill of stored events,
// followed by live events, with no duplication or gap at the
// transition (spec.md §4.6 "subscribe"). Pass a non-nil from to
// backfill every event strictly after that id (codec.ZeroEventID
// backfills from genesis, since no real event ever chains from it).
// Pass nil to open the subscription at the current tip: live-only,
// observing no previously-stored event (spec.md §8 scenario 6 "open a
// subscription at tip").
func (r *Runtime) Subscribe(ctx context.Context, from *codec.EventID) (<-chan storage.Stored, error) {
	out := make(chan storage.Stored, r.cfg.BusCapacity)

	live, err := r.store.Live(ctx)
	if err != nil {
		return nil, err
	}

	var backfill []storage.Stored
	if from != nil {
		backfill, err = r.store.Range(ctx, *from, 0)
		if err != nil {
			return nil, err
		}
	} else if tip, ok, err := r.store.Tip(ctx); err != nil {
		return nil, err
	} else if ok {
		backfill, err = r.store.Range(ctx, tip, 0)
		if err != nil {
			return nil, err
		}
	}

	go func() {
		defer close(out)
		seen := make(map[codec.EventID]struct{}, len(backfill))
		for _, item := range backfill {
			seen[item.ID] = struct{}{}
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
		}
		for {
			select {
			case item, ok := <-live:
				if !ok {
					return
				}
				if _, dup := seen[item.ID]; dup {
					continue
				}
				select {
				case out <- item:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Fatal returns a channel that is closed if the drain task exhausts
// its retry budget. Callers embedding the runtime MAY select on this
// to trigger a graceful process shutdown.
func (r *Runtime) Fatal() <-chan struct{} {
	return r.fatalCh
}

// FatalError returns the error that caused Fatal to close, or nil if
// it has not fired.
func (r *Runtime) FatalError() error {
	r.fatalMu.RLock()
	defer r.fatalMu.RUnlock()
	return r.fatalErr
}

// Shutdown stops the drain task and closes storage. Idempotent.
func (r *Runtime) Shutdown() error {
	r.shuttingDown.Store(true)
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
	return r.store.Close()
}

// Kernel exposes the underlying kernel for advanced callers (e.g. a
// composition root wiring an HTTP handler directly to Submit).
func (r *Runtime) Kernel() *kernel.Kernel { return r.kernel }

// Bus exposes the underlying bus for callers that want raw
// KernelEvent subscription without storage identity (e.g. an
// in-process metrics listener).
func (r *Runtime) Bus() *bus.Bus { return r.bus }

