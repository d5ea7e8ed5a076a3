package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/r58io/core-service/internal/config"
	"github.com/r58io/core-service/internal/logging"
	"github.com/r58io/core-service/internal/metrics"
)

const defaultHeartbeatInterval = 30 * time.Second

// Bus is the process's single sequence authority and event distribution
// point. Sequence assignment, replay-buffer insertion, and the
// state-mutating-event cache update all happen under one internal lock;
// everything that could block or call back into another package (the
// snapshot function, subscriber delivery) happens outside it.
type Bus struct {
	cfg        config.EventBusConfig
	logger     *logging.Logger
	snapshotFn SnapshotFunc

	mu         sync.Mutex
	seq        uint64
	buffer     *replayBuffer
	subs       map[string]*Subscriber
	stateCache map[string]interface{}

	heartbeatCancel context.CancelFunc
}

// New builds an event bus. snapshotFn is called to compose the authoritative
// state snapshot; it must not be called with the bus's lock held, and Bus
// never calls it with any lock of its own held.
func New(cfg config.EventBusConfig, snapshotFn SnapshotFunc, logger *logging.Logger) *Bus {
	b := &Bus{
		cfg:        cfg,
		logger:     logger,
		snapshotFn: snapshotFn,
		buffer:     newReplayBuffer(cfg.ReplayBufferSize),
		subs:       make(map[string]*Subscriber),
		stateCache: make(map[string]interface{}),
	}
	if snapshotFn != nil {
		b.stateCache = snapshotFn()
	}
	return b
}

// Publish assigns the next sequence number to a new event, inserts it into
// the replay buffer, refreshes the state cache if the event type mutates it,
// and delivers it to every connected subscriber. The sequence is assigned
// and the event buffered before Publish returns, satisfying spec.md §5's
// "the event is enqueued before the entry point returns success to its
// caller" ordering guarantee for callers that publish synchronously from
// their own state-changing entry point.
func (b *Bus) Publish(eventType, deviceID string, payload map[string]interface{}) Event {
	b.mu.Lock()
	b.seq++
	e := Event{
		V:        schemaVersion,
		Type:     eventType,
		Seq:      b.seq,
		TS:       time.Now().UTC(),
		DeviceID: deviceID,
		Payload:  payload,
	}
	b.buffer.push(e)
	metrics.EventBusSequence.Inc()
	recipients := make([]*Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		recipients = append(recipients, s)
	}
	mutates := stateMutatingTypes[eventType]
	b.mu.Unlock()

	if mutates && b.snapshotFn != nil {
		snap := b.snapshotFn()
		b.mu.Lock()
		b.stateCache = snap
		b.mu.Unlock()
	}

	for _, s := range recipients {
		b.deliver(s, e)
	}
	return e
}

// deliver sends e to s without blocking. A full subscriber queue is treated
// as a failed delivery (spec.md §4.5 "a subscriber whose send fails is
// disconnected"): the subscriber is dropped rather than allowed to stall
// delivery to everyone else.
func (b *Bus) deliver(s *Subscriber, e Event) {
	select {
	case s.ch <- e:
	default:
		metrics.EventBusDroppedTotal.Inc()
		b.unsubscribeFailed(s.ID)
	}
}

// Subscribe registers a new subscriber, generating its ID, and immediately
// publishes a connected event carrying a freshly assigned sequence — the
// subscriber is registered before that publish so it receives its own
// connected event, per spec.md §4.5.
func (b *Bus) Subscribe() *Subscriber {
	return b.SubscribeWithID(uuid.NewString())
}

// SubscribeWithID is Subscribe with a caller-supplied ID, for transports
// (internal/apiserver's WebSocket connections) that already have a client
// identifier to reuse.
func (b *Bus) SubscribeWithID(id string) *Subscriber {
	queue := b.cfg.SubscriberQueue
	if queue <= 0 {
		queue = 32
	}
	s := &Subscriber{ID: id, ch: make(chan Event, queue), done: make(chan struct{})}

	b.mu.Lock()
	b.subs[id] = s
	first := len(b.subs) == 1
	b.mu.Unlock()
	metrics.EventBusSubscribers.Inc()

	if first {
		b.startHeartbeat()
	}

	b.Publish("connected", "", map[string]interface{}{"subscriber_id": id})
	return s
}

// Unsubscribe disconnects a subscriber, closing its channel. If it was the
// last subscriber, heartbeats stop.
func (b *Bus) Unsubscribe(id string) {
	b.unsubscribeFailed(id)
}

func (b *Bus) unsubscribeFailed(id string) {
	b.mu.Lock()
	s, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	last := len(b.subs) == 0
	b.mu.Unlock()

	if !ok {
		return
	}
	metrics.EventBusSubscribers.Dec()
	close(s.done)
	close(s.ch)

	if last {
		b.stopHeartbeat()
	}
}

// Resync implements the catch-up protocol for a subscriber reporting
// lastSeq. canReplay is false when the client is too far behind the replay
// buffer's retained window; in that case events is nil and the caller must
// discard any partial local state and adopt snapshot wholesale.
func (b *Bus) Resync(lastSeq uint64) (events []Event, snapshot map[string]interface{}, canReplay bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	min, ok := b.buffer.minSeq()
	canReplay = !ok || lastSeq >= min-1
	snapshot = b.stateCache
	if !canReplay {
		return nil, snapshot, false
	}
	return b.buffer.after(lastSeq), snapshot, true
}

func (b *Bus) startHeartbeat() {
	interval := b.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	b.heartbeatCancel = cancel
	b.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.Publish("heartbeat", "", nil)
			}
		}
	}()
}

func (b *Bus) stopHeartbeat() {
	b.mu.Lock()
	cancel := b.heartbeatCancel
	b.heartbeatCancel = nil
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
