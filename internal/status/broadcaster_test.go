package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBroadcasterSnapshotDefaultsOffline(t *testing.T) {
	b := NewBroadcaster()
	assert.False(t, b.Snapshot())
}

func TestBroadcasterPublishUpdatesSnapshot(t *testing.T) {
	b := NewBroadcaster()
	b.Publish(true)
	assert.True(t, b.Snapshot())
	b.Publish(false)
	assert.False(t, b.Snapshot())
}

func TestBroadcasterSubscriberReceivesTransition(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(true)

	select {
	case v := <-ch:
		assert.True(t, v)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for publish")
	}
}

func TestBroadcasterSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewBroadcaster()
	_, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(i%2 == 0)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on unread subscriber channel")
	}
}

func TestBroadcasterCancelUnsubscribes(t *testing.T) {
	b := NewBroadcaster()
	_, cancel := b.Subscribe()
	cancel()
	assert.Empty(t, b.subscribers)
}

func TestEventQueueDropsOldestWhenFull(t *testing.T) {
	q := NewEventQueue(2)
	q.Push(SensorEvent{Kind: EventUsbError, Detail: "first"})
	q.Push(SensorEvent{Kind: EventUsbError, Detail: "second"})
	q.Push(SensorEvent{Kind: EventPrintFail, Detail: "third"})

	ev, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, "second", ev.Detail)

	ev, ok = q.Pop()
	assert.True(t, ok)
	assert.Equal(t, "third", ev.Detail)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestEventQueueReadySignalsNonEmpty(t *testing.T) {
	q := NewEventQueue(4)
	q.Push(SensorEvent{Kind: EventUsbError, Detail: "x"})

	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready channel never signaled")
	}
}
