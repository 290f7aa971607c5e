package events

import (
	"context"
	"errors"
	"log"
	"sync"
)

var ErrBusClosed = errors.New("event bus closed")

const defaultBusBuffer = 256

// Bus is an in-process, buffered publish/consume channel. Publish blocks only
// when the buffer is full.
type Bus struct {
	ch        chan TransitionEvent
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	inflight  sync.WaitGroup
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultBusBuffer
	}
	return &Bus{ch: make(chan TransitionEvent, buffer), done: make(chan struct{})}
}

func (b *Bus) Publish(ctx context.Context, ev TransitionEvent) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	b.inflight.Add(1)
	b.mu.RUnlock()
	defer b.inflight.Done()

	select {
	case b.ch <- ev:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run hands every event to handler until ctx is done or the bus is closed.
// After Close it delivers whatever was accepted before returning. Handler
// errors are logged and do not stop consumption.
func (b *Bus) Run(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-b.ch:
			b.deliver(ctx, handler, ev)
		case <-b.done:
			b.inflight.Wait()
			for {
				select {
				case ev := <-b.ch:
					b.deliver(ctx, handler, ev)
				default:
					return nil
				}
			}
		}
	}
}

func (b *Bus) deliver(ctx context.Context, handler Handler, ev TransitionEvent) {
	if err := handler(ctx, ev); err != nil {
		log.Printf("event_handler_failed event_id=%s kind=%s export_id=%s err=%v", ev.ID, ev.Kind, ev.ExportID, err)
	}
}

// Close stops new publishes and releases publishers blocked on a full buffer.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.done)
	})
}

// Recorder is a Publisher that keeps every event, for tests and dry runs.
type Recorder struct {
	mu     sync.Mutex
	events []TransitionEvent
}

func (r *Recorder) Publish(_ context.Context, ev TransitionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Events() []TransitionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TransitionEvent(nil), r.events...)
}
