package memorystore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toka-os/toka-core/internal/codec"
	"github.com/toka-os/toka-core/internal/types"
)

func obsEvent(n byte) types.KernelEvent {
	return types.ObservationEmittedEvent(types.EntityID{n}, nil, int64(n))
}

func TestAppendAssignsChainedIDs(t *testing.T) {
	s := New()
	ctx := context.Background()

	id1, err := s.Append(ctx, obsEvent(1))
	require.NoError(t, err)
	id2, err := s.Append(ctx, obsEvent(2))
	require.NoError(t, err)

	assert.NotEqual(t, codec.ZeroEventID, id1)
	assert.NotEqual(t, id1, id2)

	expected1, err := codec.ChainNext(codec.ZeroEventID, obsEvent(1))
	require.NoError(t, err)
	assert.Equal(t, expected1, id1)
}

func TestGetRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	ev := obsEvent(7)
	id, err := s.Append(ctx, ev)
	require.NoError(t, err)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), codec.EventID{0xFF})
	require.Error(t, err)
}

func TestTipTracksLastAppend(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, empty, err := s.Tip(ctx)
	require.NoError(t, err)
	assert.False(t, empty)

	id, err := s.Append(ctx, obsEvent(1))
	require.NoError(t, err)

	tip, ok, err := s.Tip(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, tip)
}

func TestRangeFromBeginning(t *testing.T) {
	s := New()
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
}

func TestRangeStrictlyAfter(t *testing.T) {
	s := New()
	ctx := context.Background()
	first, err := s.Append(ctx, obsEvent(1))
	require.NoError(t, err)
	second, err := s.Append(ctx, obsEvent(2))
	require.NoError(t, err)

	got, err := s.Range(ctx, first, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, second, got[0].ID)
}

func TestLiveReceivesSubsequentAppends(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Live(ctx)
	require.NoError(t, err)

	_, err = s.Append(context.Background(), obsEvent(9))
	require.NoError(t, err)

	select {
	case item := <-ch:
		assert.Equal(t, int64(9), item.Event.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("expected a live event")
	}
}

func TestLiveClosesOnContextCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := s.Live(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("expected channel to close after cancel")
	}
}

// TestAppendSameContentTwiceYieldsDifferentIDsButEqualEvents covers
// spec.md §8 P9: appending equal-content events does not guarantee equal
// EventIds (the chain includes the previous tip, which advances between
// the two appends), but Get on each assigned id always returns an event
// equal to what was appended.
func TestAppendSameContentTwiceYieldsDifferentIDsButEqualEvents(t *testing.T) {
	s := New()
	ctx := context.Background()
	ev := obsEvent(3)

	id1, err := s.Append(ctx, ev)
	require.NoError(t, err)
	id2, err := s.Append(ctx, ev)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)

	got1, err := s.Get(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, ev, got1)

	got2, err := s.Get(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, ev, got2)
}

func TestCloseClosesAllLiveSubscribers(t *testing.T) {
	s := New()
	ch, err := s.Live(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Close())

	_, open := <-ch
	assert.False(t, open)

	_, err = s.Live(context.Background())
	assert.Error(t, err)
}
