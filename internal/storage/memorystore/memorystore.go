// Package memorystore implements the non-durable, in-memory reference
// storage backend (spec.md §4.5): a slice of (EventId, KernelEvent)
// protected by a mutex, plus a broadcast fan-out for Live subscribers.
// Grounded on the teacher's map+mutex session bookkeeping
// (pkg/session/manager.go) combined with the snapshot-before-send
// broadcast shape shared with internal/bus.
package memorystore

import (
	"context"
	"sync"

	"github.com/toka-os/toka-core/internal/codec"
	"github.com/toka-os/toka-core/internal/storage"
	"github.com/toka-os/toka-core/internal/types"
)

// liveCapacity is the buffer size of each Live() subscriber channel.
const liveCapacity = 256

type entry struct {
	id    codec.EventID
	event types.KernelEvent
}

// Store is an in-memory Storage implementation. Data does not survive
// process exit.
type Store struct {
	mu      sync.RWMutex
	entries []entry
	byID    map[codec.EventID]int // index into entries
	tip     codec.EventID
	hasTip  bool

	subMu sync.Mutex
	subs  map[uint64]chan storage.Stored
	nextID uint64
	closed bool
}

var _ storage.Storage = (*Store)(nil)

// New builds an empty in-memory store.
func New() *Store {
	return &Store{
		byID: make(map[codec.EventID]int),
		subs: make(map[uint64]chan storage.Stored),
	}
}

func (s *Store) Append(ctx context.Context, event types.KernelEvent) (codec.EventID, error) {
	if err := ctx.Err(); err != nil {
		return codec.EventID{}, storage.NewBackendError("context cancelled", err)
	}

	s.mu.Lock()
	prev := codec.ZeroEventID
	if s.hasTip {
		prev = s.tip
	}
	id, err := codec.ChainNext(prev, event)
	if err != nil {
		s.mu.Unlock()
		return codec.EventID{}, storage.NewBackendError("encode event", err)
	}
	s.entries = append(s.entries, entry{id: id, event: event})
	s.byID[id] = len(s.entries) - 1
	s.tip = id
	s.hasTip = true
	s.mu.Unlock()

	s.broadcast(storage.Stored{ID: id, Event: event})
	return id, nil
}

func (s *Store) Get(ctx context.Context, id codec.EventID) (types.KernelEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return types.KernelEvent{}, storage.NewNotFoundError(id)
	}
	return s.entries[idx].event, nil
}

func (s *Store) Tip(ctx context.Context) (codec.EventID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tip, s.hasTip, nil
}

func (s *Store) Range(ctx context.Context, from codec.EventID, limit int) ([]storage.Stored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if from != codec.ZeroEventID {
		idx, ok := s.byID[from]
		if !ok {
			return nil, storage.NewNotFoundError(from)
		}
		start = idx + 1
	}

	if limit <= 0 || limit > len(s.entries)-start {
		limit = len(s.entries) - start
	}
	if limit <= 0 {
		return nil, nil
	}

	out := make([]storage.Stored, 0, limit)
	for i := start; i < start+limit; i++ {
		out = append(out, storage.Stored{ID: s.entries[i].id, Event: s.entries[i].event})
	}
	return out, nil
}

func (s *Store) Live(ctx context.Context) (<-chan storage.Stored, error) {
	s.subMu.Lock()
	if s.closed {
		s.subMu.Unlock()
		return nil, storage.NewBackendError("store is closed", nil)
	}
	id := s.nextID
	s.nextID++
	ch := make(chan storage.Stored, liveCapacity)
	s.subs[id] = ch
	s.subMu.Unlock()

	go func() {
		<-ctx.Done()
		s.removeSub(id)
	}()

	return ch, nil
}

func (s *Store) removeSub(id uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Store) broadcast(item storage.Stored) {
	s.subMu.Lock()
	chans := make([]chan storage.Stored, 0, len(s.subs))
	for _, ch := range s.subs {
		chans = append(chans, ch)
	}
	s.subMu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- item:
		default:
			// A lagging Live() subscriber here loses this item, and
			// unlike the bus no Lagged marker is sent; storage readers
			// that need a gapless stream should use Range to backfill.
		}
	}
}

func (s *Store) Close() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	return nil
}
