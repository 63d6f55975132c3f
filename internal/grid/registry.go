package grid

import (
	"context"
	"sync"
	"time"

	"outbreak/internal/domain"
)

// recheckInterval bounds a single sleep on a cell so a lost notification
// costs at most one interval.
const recheckInterval = 500 * time.Millisecond

type cell struct {
	admit chan struct{}

	mu   sync.Mutex
	wake chan struct{}
}

func (c *cell) waiter() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wake
}

func (c *cell) notify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	close(c.wake)
	c.wake = make(chan struct{})
}

// Registry owns one admission token and one wake channel per board cell.
// Cells are allocated once and live for the whole game.
type Registry struct {
	size     int
	cells    []cell
	occupied func(domain.Point) bool
	done     <-chan struct{}
}

func New(size int, occupied func(domain.Point) bool, done <-chan struct{}) *Registry {
	if size < 0 {
		size = 0
	}
	cells := make([]cell, size*size)
	for i := range cells {
		cells[i].admit = make(chan struct{}, 1)
		cells[i].wake = make(chan struct{})
	}
	return &Registry{
		size:     size,
		cells:    cells,
		occupied: occupied,
		done:     done,
	}
}

func (r *Registry) Size() int {
	return r.size
}

func (r *Registry) InBounds(p domain.Point) bool {
	return p.X >= 0 && p.X < r.size && p.Y >= 0 && p.Y < r.size
}

func (r *Registry) cell(p domain.Point) *cell {
	if !r.InBounds(p) {
		return nil
	}
	return &r.cells[p.Y*r.size+p.X]
}

func (r *Registry) IsOccupied(p domain.Point) bool {
	if !r.InBounds(p) {
		return false
	}
	return r.occupied(p)
}

// Acquire takes the admission token of p so that at most one mover at a time
// negotiates entry into the cell. The returned release func is idempotent.
func (r *Registry) Acquire(ctx context.Context, p domain.Point, timeout time.Duration) (func(), bool) {
	c := r.cell(p)
	if c == nil {
		return nil, false
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.admit <- struct{}{}:
	case <-timer.C:
		return nil, false
	case <-ctx.Done():
		return nil, false
	case <-r.done:
		return nil, false
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-c.admit
		})
	}, true
}

// WaitForFree blocks until p is observed free, returning false when the
// timeout elapses, ctx is cancelled or the game ends first.
func (r *Registry) WaitForFree(ctx context.Context, p domain.Point, timeout time.Duration) bool {
	c := r.cell(p)
	if c == nil {
		return false
	}
	deadline := time.Now().Add(timeout)
	for {
		// Grab the wake channel before checking so a notify between the check
		// and the select is not lost.
		wake := c.waiter()
		if !r.occupied(p) {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		slice := remaining
		if slice > recheckInterval {
			slice = recheckInterval
		}
		timer := time.NewTimer(slice)
		select {
		case <-wake:
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-r.done:
			timer.Stop()
			return false
		}
		timer.Stop()
	}
}

func (r *Registry) NotifyVacated(p domain.Point) {
	c := r.cell(p)
	if c == nil {
		return
	}
	c.notify()
}

func (r *Registry) Broadcast() {
	for i := range r.cells {
		r.cells[i].notify()
	}
}
