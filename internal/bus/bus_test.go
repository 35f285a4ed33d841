package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toka-os/toka-core/internal/types"
)

func obsEvent(n byte) types.KernelEvent {
	return types.ObservationEmittedEvent(types.EntityID{n}, nil, int64(n))
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New(4)
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer sub1.Close()
	defer sub2.Close()

	require.NoError(t, b.Publish(obsEvent(1)))

	item1 := <-sub1.Items
	item2 := <-sub2.Items
	assert.False(t, item1.IsLagged())
	assert.False(t, item2.IsLagged())
	assert.Equal(t, int64(1), item1.Event.Timestamp)
	assert.Equal(t, int64(1), item2.Event.Timestamp)
}

func TestSubscribeOnlySeesFutureEvents(t *testing.T) {
	b := New(4)
	require.NoError(t, b.Publish(obsEvent(1)))

	sub := b.Subscribe()
	defer sub.Close()
	require.NoError(t, b.Publish(obsEvent(2)))

	item := <-sub.Items
	assert.Equal(t, int64(2), item.Event.Timestamp)
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	b := New(2)
	sub := b.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := byte(1); i <= 10; i++ {
			_ = b.Publish(obsEvent(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}
}

func TestLaggedSubscriberReceivesMarker(t *testing.T) {
	b := New(1)
	sub := b.Subscribe()
	defer sub.Close()

	require.NoError(t, b.Publish(obsEvent(1)))
	require.NoError(t, b.Publish(obsEvent(2))) // channel full after event 1 is queued, not yet drained

	first := <-sub.Items
	require.False(t, first.IsLagged())
	assert.Equal(t, int64(1), first.Event.Timestamp)

	// The pending lag is flushed by the next Publish that finds room.
	require.NoError(t, b.Publish(obsEvent(3)))

	second := <-sub.Items
	require.True(t, second.IsLagged())
	assert.Equal(t, uint64(1), second.Lagged)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New(4)
	sub := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())

	sub.Close()
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-sub.Items
	assert.False(t, open)
}

func TestPublishWithNoSubscribersIsNoop(t *testing.T) {
	b := New(4)
	assert.NotPanics(t, func() {
		_ = b.Publish(obsEvent(1))
	})
}

func TestPublishRejectsInvalidEvent(t *testing.T) {
	b := New(4)
	sub := b.Subscribe()
	defer sub.Close()

	oversized := make([]byte, types.MaxObservationDataLen+1)
	err := b.Publish(types.ObservationEmittedEvent(types.EntityID{1}, oversized, 1))
	require.Error(t, err)
	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, PublishInvalid, pubErr.Kind)

	select {
	case <-sub.Items:
		t.Fatal("invalid event must not reach subscribers")
	default:
	}
}

