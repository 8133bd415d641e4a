package main

import "sync"

// EventType identifies one stage transition in an exchange. The set is
// closed: consumers switch over these and nothing else comes down the stream.
type EventType string

const (
	EventResolvingPersonas EventType = "resolving_personas"
	EventStage1Start       EventType = "stage1_start"
	EventStage1Complete    EventType = "stage1_complete"
	EventStage2Start       EventType = "stage2_start"
	EventStage2Complete    EventType = "stage2_complete"
	EventStage25Start      EventType = "stage2_5_start"
	EventStage3Start       EventType = "stage3_start"
	EventStage3Complete    EventType = "stage3_complete"
	EventTitleComplete     EventType = "title_complete"
	EventComplete          EventType = "complete"
	EventError             EventType = "error"
)

// Event is one progress notification for an exchange.
type Event struct {
	Type     EventType `json:"type"`
	Data     any       `json:"data,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// Emitter delivers an exchange's events to its single consumer in exactly the
// order they were produced. The producer never blocks: events queue in an
// unbounded FIFO while the consumer is momentarily slow, and nothing is
// reordered or dropped while attached. After Detach, emission becomes a
// no-op and the exchange runs on regardless.
type Emitter struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Event
	closed   bool
	detached bool
	detach   chan struct{}
	out      chan Event
}

// NewEmitter creates an emitter and starts its delivery goroutine.
func NewEmitter() *Emitter {
	e := &Emitter{
		out:    make(chan Event),
		detach: make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	go e.deliver()
	return e
}

// Events is the consumer side. The channel closes once the producer calls
// Close and the queue has drained, or immediately after Detach.
func (e *Emitter) Events() <-chan Event {
	return e.out
}

// Emit queues one event. Safe to call from the producing goroutine at any
// point; silently discards the event after Detach or Close.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.detached {
		return
	}
	e.queue = append(e.queue, ev)
	e.cond.Signal()
}

// Close marks the producer done. Queued events still reach the consumer.
func (e *Emitter) Close() {
	e.mu.Lock()
	e.closed = true
	e.cond.Signal()
	e.mu.Unlock()
}

// Detach disconnects the consumer. Pending and future events are discarded
// and the events channel is closed once the delivery goroutine notices.
func (e *Emitter) Detach() {
	e.mu.Lock()
	if !e.detached {
		e.detached = true
		e.queue = nil
		close(e.detach)
		e.cond.Signal()
	}
	e.mu.Unlock()
}

func (e *Emitter) deliver() {
	defer close(e.out)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed && !e.detached {
			e.cond.Wait()
		}
		if e.detached || (e.closed && len(e.queue) == 0) {
			e.mu.Unlock()
			return
		}
		ev := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		// Blocking send applies back-pressure only to this goroutine,
		// never to the producer. Detach unblocks a stuck send.
		select {
		case e.out <- ev:
		case <-e.detach:
			return
		}
	}
}
