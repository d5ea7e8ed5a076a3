package eventbus

// Subscriber is a connected client's delivery channel. Each subscriber is
// served by exactly one writer goroutine (spec.md §5 "one task per
// subscriber"), fed by the bus's best-effort, non-blocking send.
type Subscriber struct {
	ID   string
	ch   chan Event
	done chan struct{}
}

// Events returns the channel the subscriber's writer goroutine should drain.
// The channel is closed when the subscriber is disconnected, either by its
// own call to Bus.Unsubscribe or by the bus after a failed delivery.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Done is closed when the bus has disconnected this subscriber.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}
