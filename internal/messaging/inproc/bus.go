package inproc

import (
	"errors"
	"sync"
	"sync/atomic"

	"outbreak/internal/domain"
)

var ErrSubscriberExists = errors.New("subscriber already registered in bus")

// Bus fans every published event out to all registered subscribers. Publish
// never blocks: a subscriber whose queue is full misses the event.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string]chan domain.Event
	buffer  int
	dropped atomic.Uint64
}

func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{
		subs:   make(map[string]chan domain.Event),
		buffer: buffer,
	}
}

func (b *Bus) Register(name string) (<-chan domain.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[name]; ok {
		return nil, ErrSubscriberExists
	}
	ch := make(chan domain.Event, b.buffer)
	b.subs[name] = ch
	return ch, nil
}

func (b *Bus) Unregister(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subs[name]
	if !ok {
		return
	}
	delete(b.subs, name)
	close(ch)
}

// Close unregisters every subscriber, closing their channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for name, ch := range b.subs {
		delete(b.subs, name)
		close(ch)
	}
}

func (b *Bus) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
