package runtime

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/toka-os/toka-core/internal/codec"
	"github.com/toka-os/toka-core/internal/types"
)

// drainLoop is the Runtime's sole writer to storage: it reads
// submissions off dispatch and appends each to storage with bounded
// exponential backoff, reporting the assigned EventId back to the
// waiting Submit call. On retry exhaustion it escalates to a fatal
// signal rather than retrying indefinitely (spec.md §4.6).
func (r *Runtime) drainLoop() {
	defer r.wg.Done()

	for {
		select {
		case p := <-r.dispatch:
			r.drainOne(p)
		case <-r.stopCh:
			r.drainRemaining()
			return
		}
	}
}

// drainRemaining flushes any submissions already enqueued before
// shutdown was signalled, so a caller blocked in Submit still gets a
// response instead of hanging forever.
func (r *Runtime) drainRemaining() {
	for {
		select {
		case p := <-r.dispatch:
			r.drainOne(p)
		default:
			return
		}
	}
}

func (r *Runtime) drainOne(p *pendingAppend) {
	id, err := r.appendWithRetry(p.event)
	p.result <- appendResult{id: id, err: err}
}

// appendWithRetry appends event to storage, retrying on failure with
// exponential backoff bounded by cfg.DrainRetry. Exhaustion closes
// Fatal and returns a StorageFatal *Error carrying the last error's
// message.
func (r *Runtime) appendWithRetry(event types.KernelEvent) (codec.EventID, error) {
	retry := r.cfg.DrainRetry
	var lastErr error

	for attempt := 0; attempt < retry.Attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		id, err := r.store.Append(ctx, event)
		cancel()
		if err == nil {
			return id, nil
		}
		lastErr = err
		if attempt+1 >= retry.Attempts {
			break
		}
		r.metrics.DrainRetry(attempt + 1)
		r.log.Warn("storage append failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", retry.Attempts),
			slog.Any("error", err))

		delay := backoffDelay(attempt, retry.BaseMS, retry.MaxMS)
		select {
		case <-time.After(delay):
		case <-r.stopCh:
			return codec.EventID{}, lastErr
		}
	}

	r.log.Error("storage append exhausted retry budget; escalating to fatal",
		slog.Int("attempts", retry.Attempts),
		slog.Any("error", lastErr))
	r.fatalMu.Lock()
	r.fatalErr = lastErr
	r.fatalMu.Unlock()
	r.fatalOnce.Do(func() { close(r.fatalCh) })

	return codec.EventID{}, &Error{Kind: StorageFatal, Reason: lastErr.Error()}
}

// backoffDelay computes an exponential backoff with a hard ceiling:
// base_ms * 2^attempt, capped at max_ms.
func backoffDelay(attempt, baseMS, maxMS int) time.Duration {
	delay := float64(baseMS) * math.Pow(2, float64(attempt))
	if delay > float64(maxMS) {
		delay = float64(maxMS)
	}
	return time.Duration(delay) * time.Millisecond
}
