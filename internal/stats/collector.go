package stats

import (
	"sort"
	"sync"
	"time"

	"outbreak/internal/domain"
)

const topPositions = 10

// Collector aggregates run counters behind its own lock, independent of the
// board lock, so readers never contend with movement.
type Collector struct {
	mu sync.Mutex

	start time.Time
	end   time.Time

	initial map[domain.Kind]int
	final   map[domain.Kind]int

	moves           map[domain.Kind]int
	transformations int
	escapes         int
	collisions      int
	positions       map[domain.Point]int

	moveTime  time.Duration
	moveCount int

	survival      map[domain.Kind]time.Duration
	survivalCount map[domain.Kind]int
}

func New(now time.Time) *Collector {
	return &Collector{
		start:         now,
		initial:       make(map[domain.Kind]int),
		final:         make(map[domain.Kind]int),
		moves:         make(map[domain.Kind]int),
		positions:     make(map[domain.Point]int),
		survival:      make(map[domain.Kind]time.Duration),
		survivalCount: make(map[domain.Kind]int),
	}
}

func (c *Collector) Restart(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = now
}

func (c *Collector) SetInitialCounts(humans, zombies int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initial[domain.KindHuman] = humans
	c.initial[domain.KindZombie] = zombies
}

func (c *Collector) Finish(humans, zombies int, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.final[domain.KindHuman] = humans
	c.final[domain.KindZombie] = zombies
	c.end = now
}

func (c *Collector) RecordMove(kind domain.Kind, pos domain.Point, took time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moves[kind]++
	c.positions[pos]++
	c.moveTime += took
	c.moveCount++
}

func (c *Collector) RecordTransformation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transformations++
}

func (c *Collector) RecordEscape() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.escapes++
}

func (c *Collector) RecordCollision() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collisions++
}

// RecordSurvival adds one sample of how long an agent spent as kind.
func (c *Collector) RecordSurvival(kind domain.Kind, d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.survival[kind] += d
	c.survivalCount[kind]++
}

func (c *Collector) Escapes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.escapes
}

func (c *Collector) Snapshot(now time.Time) domain.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	end := now
	if !c.end.IsZero() {
		end = c.end
	}
	out := domain.Stats{
		Elapsed:         end.Sub(c.start),
		InitialHumans:   c.initial[domain.KindHuman],
		InitialZombies:  c.initial[domain.KindZombie],
		FinalHumans:     c.final[domain.KindHuman],
		FinalZombies:    c.final[domain.KindZombie],
		Moves:           make(map[domain.Kind]int, len(c.moves)),
		Transformations: c.transformations,
		Escapes:         c.escapes,
		Collisions:      c.collisions,
		AvgSurvival:     make(map[domain.Kind]time.Duration, len(c.survival)),
		Finished:        !c.end.IsZero(),
	}
	for k, v := range c.moves {
		out.Moves[k] = v
	}
	if c.moveCount > 0 {
		out.AvgMoveTime = c.moveTime / time.Duration(c.moveCount)
	}
	for k, total := range c.survival {
		if n := c.survivalCount[k]; n > 0 {
			out.AvgSurvival[k] = total / time.Duration(n)
		}
	}

	ranked := make([]domain.PositionCount, 0, len(c.positions))
	for pos, n := range c.positions {
		ranked = append(ranked, domain.PositionCount{Pos: pos, Count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		if ranked[i].Pos.X != ranked[j].Pos.X {
			return ranked[i].Pos.X < ranked[j].Pos.X
		}
		return ranked[i].Pos.Y < ranked[j].Pos.Y
	})
	if len(ranked) > topPositions {
		ranked = ranked[:topPositions]
	}
	out.TopPositions = ranked
	return out
}
