package journal

import (
	"log"

	"outbreak/internal/domain"
)

// Console echoes events through a logger as they happen.
type Console struct {
	logger *log.Logger
	skip   map[domain.EventKind]bool
}

func NewConsole(logger *log.Logger, skip ...domain.EventKind) *Console {
	if logger == nil {
		logger = log.Default()
	}
	c := &Console{logger: logger, skip: make(map[domain.EventKind]bool, len(skip))}
	for _, k := range skip {
		c.skip[k] = true
	}
	return c
}

func (c *Console) Consume(events <-chan domain.Event) {
	for ev := range events {
		if c.skip[ev.Kind] {
			continue
		}
		c.logger.Print(FormatLine(ev))
	}
}
