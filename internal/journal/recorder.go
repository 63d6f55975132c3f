package journal

import (
	"context"
	"log"
	"time"

	"outbreak/internal/domain"
)

type EventStore interface {
	AppendEvents(ctx context.Context, events []domain.Event) error
}

type RecorderConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
}

func (c RecorderConfig) withDefaults() RecorderConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 250 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

// Recorder persists events to the run history in batches. A failed batch is
// logged and dropped so a slow or broken store never stalls the game.
type Recorder struct {
	store  EventStore
	cfg    RecorderConfig
	logger *log.Logger

	written int
	failed  int
}

func NewRecorder(store EventStore, cfg RecorderConfig, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Consume drains events until the channel is closed, flushing whenever the
// batch fills up or the flush interval elapses.
func (r *Recorder) Consume(events <-chan domain.Event) {
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]domain.Event, 0, r.cfg.BatchSize)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				r.flush(batch)
				return
			}
			batch = append(batch, ev)
			if len(batch) >= r.cfg.BatchSize {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (r *Recorder) Written() int {
	return r.written
}

func (r *Recorder) Failed() int {
	return r.failed
}

func (r *Recorder) flush(batch []domain.Event) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()
	if err := r.store.AppendEvents(ctx, batch); err != nil {
		r.failed += len(batch)
		r.logger.Printf("recorder append events error: %v", err)
		return
	}
	r.written += len(batch)
}
