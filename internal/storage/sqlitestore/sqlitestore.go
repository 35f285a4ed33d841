// Package sqlitestore implements the embedded, persistent reference
// storage backend (spec.md §4.5) over an embedded SQLite file via
// GORM — the pack's closest analogue to an "embedded B-tree database"
// (no pure-Go KV store like bbolt/badger appears anywhere in the
// corpus). Two GORM models stand in for the two logical column
// families: `events` (EventId -> canonical bytes) and `seq_order`
// (sequence number -> EventId). Grounded on the GORM+glebarez/sqlite
// connection and AutoMigrate pattern in kagent-dev/kagent's database
// manager.
package sqlitestore

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/toka-os/toka-core/internal/codec"
	"github.com/toka-os/toka-core/internal/storage"
	"github.com/toka-os/toka-core/internal/types"
)

// liveCapacity is the buffer size of each Live() subscriber channel.
const liveCapacity = 256

// Store is a GORM/SQLite-backed Storage implementation. A single
// appendMu serialises Append calls so that "append is linear with
// respect to tip()" (spec.md §4.5) holds even though SQLite itself
// would otherwise serialise writes at the file-lock level.
type Store struct {
	db       *gorm.DB
	appendMu sync.Mutex

	tip    codec.EventID
	hasTip bool
	seq    uint64

	subMu  sync.Mutex
	subs   map[uint64]chan storage.Stored
	nextID uint64
	closed bool
}

var _ storage.Storage = (*Store)(nil)

// Open connects to (creating if absent) the SQLite file at path,
// migrates the schema, and runs startup recovery: it scans seq_order
// for sequence contiguity and re-verifies the hash chain over stored
// events, refusing to start on any gap or mismatch (spec.md §6
// "Recovery").
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, storage.NewBackendError("open sqlite database", err)
	}

	if err := db.AutoMigrate(&eventRow{}, &orderRow{}); err != nil {
		return nil, storage.NewBackendError("migrate schema", err)
	}

	s := &Store{
		db:   db,
		subs: make(map[uint64]chan storage.Stored),
	}
	if err := s.recover(); err != nil {
		return nil, err
	}
	return s, nil
}

// recover scans seq_order in sequence and re-derives the hash chain,
// refusing to start on a gap or a mismatched EventId.
func (s *Store) recover() error {
	var rows []orderRow
	if err := s.db.Order("sequence asc").Find(&rows).Error; err != nil {
		return storage.NewBackendError("scan order table", err)
	}

	prev := codec.ZeroEventID
	for i, row := range rows {
		wantSeq := uint64(i + 1)
		if row.Sequence != wantSeq {
			return storage.NewCorruptError(fmt.Sprintf("sequence gap: expected %d, found %d", wantSeq, row.Sequence))
		}

		var ev eventRow
		if err := s.db.First(&ev, "id = ?", row.EventID).Error; err != nil {
			return storage.NewCorruptError(fmt.Sprintf("order entry %d references missing event %s", row.Sequence, row.EventID))
		}
		event, err := codec.Decode(ev.Payload)
		if err != nil {
			return storage.NewCorruptError(fmt.Sprintf("decode event %s: %v", row.EventID, err))
		}
		wantID, err := codec.ChainNext(prev, event)
		if err != nil {
			return storage.NewCorruptError(fmt.Sprintf("recompute hash chain at seq %d: %v", row.Sequence, err))
		}
		if wantID.String() != row.EventID {
			return storage.NewCorruptError(fmt.Sprintf("hash chain mismatch at seq %d: want %s got %s", row.Sequence, wantID, row.EventID))
		}
		prev = wantID
	}

	if len(rows) > 0 {
		s.tip = prev
		s.hasTip = true
		s.seq = rows[len(rows)-1].Sequence
	}
	return nil
}

func (s *Store) Append(ctx context.Context, event types.KernelEvent) (codec.EventID, error) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	prev := codec.ZeroEventID
	if s.hasTip {
		prev = s.tip
	}
	id, err := codec.ChainNext(prev, event)
	if err != nil {
		return codec.EventID{}, storage.NewBackendError("encode event", err)
	}
	payload, err := codec.Encode(event)
	if err != nil {
		return codec.EventID{}, storage.NewBackendError("encode event", err)
	}
	nextSeq := s.seq + 1

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&eventRow{ID: id.String(), Sequence: nextSeq, Payload: payload}).Error; err != nil {
			return err
		}
		return tx.Create(&orderRow{Sequence: nextSeq, EventID: id.String()}).Error
	})
	if err != nil {
		return codec.EventID{}, storage.NewBackendError("append transaction", err)
	}

	s.tip = id
	s.hasTip = true
	s.seq = nextSeq

	s.broadcast(storage.Stored{ID: id, Event: event})
	return id, nil
}

func (s *Store) Get(ctx context.Context, id codec.EventID) (types.KernelEvent, error) {
	var row eventRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id.String()).Error
	if err != nil {
		return types.KernelEvent{}, storage.NewNotFoundError(id)
	}
	event, err := codec.Decode(row.Payload)
	if err != nil {
		return types.KernelEvent{}, storage.NewCorruptError(fmt.Sprintf("decode event %s: %v", id, err))
	}
	return event, nil
}

func (s *Store) Tip(ctx context.Context) (codec.EventID, bool, error) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	return s.tip, s.hasTip, nil
}

func (s *Store) Range(ctx context.Context, from codec.EventID, limit int) ([]storage.Stored, error) {
	query := s.db.WithContext(ctx).Model(&orderRow{}).Order("sequence asc")

	if from != codec.ZeroEventID {
		var fromRow orderRow
		if err := s.db.WithContext(ctx).First(&fromRow, "event_id = ?", from.String()).Error; err != nil {
			return nil, storage.NewNotFoundError(from)
		}
		query = query.Where("sequence > ?", fromRow.Sequence)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []orderRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, storage.NewBackendError("range query", err)
	}

	out := make([]storage.Stored, 0, len(rows))
	for _, row := range rows {
		var ev eventRow
		if err := s.db.WithContext(ctx).First(&ev, "id = ?", row.EventID).Error; err != nil {
			return nil, storage.NewCorruptError(fmt.Sprintf("order entry %d references missing event %s", row.Sequence, row.EventID))
		}
		event, err := codec.Decode(ev.Payload)
		if err != nil {
			return nil, storage.NewCorruptError(fmt.Sprintf("decode event %s: %v", row.EventID, err))
		}
		id, err := parseEventID(row.EventID)
		if err != nil {
			return nil, storage.NewCorruptError(err.Error())
		}
		out = append(out, storage.Stored{ID: id, Event: event})
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
		}
	}
}

func (s *Store) Close() error {
	s.subMu.Lock()
	if !s.closed {
		s.closed = true
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
	}
	s.subMu.Unlock()

	sqlDB, err := s.db.DB()
	if err != nil {
		return storage.NewBackendError("access underlying *sql.DB", err)
	}
	if err := sqlDB.Close(); err != nil {
		return storage.NewBackendError("close sqlite connection", err)
	}
	return nil
}

func parseEventID(hexStr string) (codec.EventID, error) {
	var id codec.EventID
	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return codec.EventID{}, fmt.Errorf("decode event id %q: %w", hexStr, err)
	}
	if len(decoded) != codec.EventIDSize {
		return codec.EventID{}, fmt.Errorf("event id %q has wrong length %d", hexStr, len(decoded))
	}
	copy(id[:], decoded)
	return id, nil
}
