package eventbus

import (
	"testing"
	"time"

	"github.com/r58io/core-service/internal/config"
	"github.com/stretchr/testify/require"
)

func testConfig() config.EventBusConfig {
	return config.EventBusConfig{ReplayBufferSize: 3, HeartbeatInterval: time.Hour, SubscriberQueue: 8}
}

func TestSubscribe_DeliversConnectedEventFirst(t *testing.T) {
	b := New(testConfig(), func() map[string]interface{} { return nil }, nil)
	sub := b.Subscribe()

	e := <-sub.Events()
	require.Equal(t, "connected", e.Type)
	require.Equal(t, uint64(1), e.Seq)
}

func TestPublish_SequenceIsMonotonicAndOrdered(t *testing.T) {
	b := New(testConfig(), func() map[string]interface{} { return nil }, nil)
	sub := b.Subscribe()
	<-sub.Events() // connected

	b.Publish("recorder.progress", "cam1", nil)
	b.Publish("recorder.progress", "cam2", nil)

	first := <-sub.Events()
	second := <-sub.Events()
	require.Equal(t, uint64(2), first.Seq)
	require.Equal(t, uint64(3), second.Seq)
}

func TestResync_WithinWindowReturnsBufferedEventsAndSnapshot(t *testing.T) {
	snapCalls := 0
	b := New(testConfig(), func() map[string]interface{} {
		snapCalls++
		return map[string]interface{}{"mode": "recording"}
	}, nil)

	e1 := b.Publish("recorder.started", "", map[string]interface{}{"session_id": "s1"})
	b.Publish("recorder.progress", "cam1", nil)

	events, snap, canReplay := b.Resync(e1.Seq - 1)
	require.True(t, canReplay)
	require.Len(t, events, 2)
	require.Equal(t, "recording", snap["mode"])
	require.Greater(t, snapCalls, 0)
}

func TestResync_TooFarBehindFallsBackToSnapshotOnly(t *testing.T) {
	b := New(testConfig(), func() map[string]interface{} { return map[string]interface{}{"mode": "idle"} }, nil)

	for i := 0; i < 10; i++ {
		b.Publish("recorder.progress", "cam1", nil)
	}

	events, snap, canReplay := b.Resync(0)
	require.False(t, canReplay)
	require.Nil(t, events)
	require.Equal(t, "idle", snap["mode"])
}

func TestUnsubscribe_ClosesChannelAndStopsHeartbeatWhenLast(t *testing.T) {
	b := New(testConfig(), func() map[string]interface{} { return nil }, nil)
	sub := b.Subscribe()
	<-sub.Events()

	b.Unsubscribe(sub.ID)

	_, ok := <-sub.Events()
	require.False(t, ok)

	b.mu.Lock()
	cancel := b.heartbeatCancel
	b.mu.Unlock()
	require.Nil(t, cancel)
}

func TestDeliver_FullQueueDisconnectsSubscriber(t *testing.T) {
	cfg := config.EventBusConfig{ReplayBufferSize: 3, HeartbeatInterval: time.Hour, SubscriberQueue: 1}
	b := New(cfg, func() map[string]interface{} { return nil }, nil)
	sub := b.Subscribe() // fills the queue of size 1 with "connected"

	b.Publish("recorder.progress", "cam1", nil)
	b.Publish("recorder.progress", "cam2", nil)

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscriber was not disconnected after its queue filled")
	}
}

func TestReplayBuffer_EvictsOldestOnOverflow(t *testing.T) {
	buf := newReplayBuffer(2)
	buf.push(Event{Seq: 1})
	buf.push(Event{Seq: 2})
	buf.push(Event{Seq: 3})

	min, ok := buf.minSeq()
	require.True(t, ok)
	require.Equal(t, uint64(2), min)
	require.Equal(t, []Event{{Seq: 3}}, buf.after(2))
}
