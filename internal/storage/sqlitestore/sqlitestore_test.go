package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toka-os/toka-core/internal/codec"
	"github.com/toka-os/toka-core/internal/types"
)

func obsEvent(n byte) types.KernelEvent {
	return types.ObservationEmittedEvent(types.EntityID{n}, []byte("payload"), int64(n))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Append(ctx, obsEvent(1))
	require.NoError(t, err)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, obsEvent(1), got)
}

func TestAppendChainsByPreviousTip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.Append(ctx, obsEvent(1))
	require.NoError(t, err)
	id2, err := s.Append(ctx, obsEvent(2))
	require.NoError(t, err)

	expected2, err := codec.ChainNext(id1, obsEvent(2))
	require.NoError(t, err)
	assert.Equal(t, expected2, id2)
}

func TestTipAfterAppends(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Tip(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := s.Append(ctx, obsEvent(1))
	require.NoError(t, err)

	tip, ok, err := s.Tip(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, tip)
}

func TestRangeReturnsEventsInOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var ids []codec.EventID
	for i := byte(1); i <= 3; i++ {
		id, err := s.Append(ctx, obsEvent(i))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	got, err := s.Range(ctx, codec.ZeroEventID, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, item := range got {
		assert.Equal(t, ids[i], item.ID)
	}

	tail, err := s.Range(ctx, ids[0], 0)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, ids[1], tail[0].ID)
}

func TestRecoveryAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s1, err := Open(path)
	require.NoError(t, err)

	ctx := context.Background()
	id1, err := s1.Append(ctx, obsEvent(1))
	require.NoError(t, err)
	id2, err := s1.Append(ctx, obsEvent(2))
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	tip, ok, err := s2.Tip(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id2, tip)

	got, err := s2.Get(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, obsEvent(1), got)
}

func TestLiveReceivesAppendedEvents(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Live(ctx)
	require.NoError(t, err)

	_, err = s.Append(context.Background(), obsEvent(5))
	require.NoError(t, err)

	item := <-ch
	assert.Equal(t, int64(5), item.Event.Timestamp)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), codec.EventID{0xAB})
	assert.Error(t, err)
}
