package board

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"outbreak/internal/agent"
	"outbreak/internal/domain"
	"outbreak/internal/grid"
	"outbreak/internal/policy"
	"outbreak/internal/stats"
)

var (
	ErrOutOfBounds  = errors.New("position is out of bounds")
	ErrCellOccupied = errors.New("position is already occupied")
	ErrGameEnded    = errors.New("game already ended")
)

type EventSink interface {
	Publish(ev domain.Event)
}

type discardSink struct{}

func (discardSink) Publish(domain.Event) {}

type Config struct {
	RunID        string
	Size         int
	PositionWait time.Duration
	Movement     agent.Movement
}

func (c Config) withDefaults() Config {
	if c.Size <= 0 {
		c.Size = 50
	}
	if c.PositionWait <= 0 {
		c.PositionWait = 5 * time.Second
	}
	if c.Movement.Strategy == "" {
		c.Movement.Strategy = domain.StrategyRandom
	}
	if c.Movement.ZombieRange <= 0 {
		c.Movement.ZombieRange = 3
	}
	return c
}

// Board is the single owner of agent state. Agent fields and the agent list
// change only under mu; cell admission and waiting go through the grid
// registry so a blocked mover never holds mu.
type Board struct {
	cfg    Config
	cells  *grid.Registry
	policy *policy.Engine
	stats  *stats.Collector
	events EventSink
	logger *log.Logger

	mu     sync.Mutex
	agents []*agent.Agent
	nextID int

	endMu  sync.Mutex
	ended  atomic.Bool
	winner domain.Winner
	done   chan struct{}

	seq atomic.Uint64
}

func New(cfg Config, collector *stats.Collector, events EventSink, logger *log.Logger) *Board {
	cfg = cfg.withDefaults()
	if collector == nil {
		collector = stats.New(time.Now())
	}
	if events == nil {
		events = discardSink{}
	}
	if logger == nil {
		logger = log.Default()
	}
	b := &Board{
		cfg:    cfg,
		stats:  collector,
		events: events,
		logger: logger,
		done:   make(chan struct{}),
	}
	b.cells = grid.New(cfg.Size, b.IsOccupied, b.done)
	b.policy = policy.New(b.cells)
	return b
}

func (b *Board) Size() int {
	return b.cfg.Size
}

func (b *Board) GoalX() int {
	return b.cfg.Size - 1
}

func (b *Board) RunID() string {
	return b.cfg.RunID
}

func (b *Board) Cells() *grid.Registry {
	return b.cells
}

// Spawn places a new agent. IDs are assigned monotonically from 1.
func (b *Board) Spawn(kind domain.Kind, p domain.Point) (*agent.Agent, error) {
	if !b.cells.InBounds(p) {
		return nil, fmt.Errorf("spawn %s at (%d,%d): %w", kind, p.X, p.Y, ErrOutOfBounds)
	}
	if b.Ended() {
		return nil, ErrGameEnded
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.agentAtLocked(p) != nil {
		return nil, fmt.Errorf("spawn %s at (%d,%d): %w", kind, p.X, p.Y, ErrCellOccupied)
	}
	b.nextID++
	a := agent.New(b.nextID, kind, p, time.Now())
	b.agents = append(b.agents, a)
	return a, nil
}

func (b *Board) Agents() []*agent.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*agent.Agent, len(b.agents))
	copy(out, b.agents)
	return out
}

// Begin resets the clock, records the initial population and announces the
// start of the game.
func (b *Board) Begin() {
	b.mu.Lock()
	humans, zombies := b.countLocked()
	b.mu.Unlock()

	b.stats.Restart(time.Now())
	b.stats.SetInitialCounts(humans, zombies)
	b.publish(b.event(domain.EventGameStart, fmt.Sprintf("Game started with %d humans and %d zombies", humans, zombies), nil))
}

// IsOccupied is a point-in-time scan of live agent positions.
func (b *Board) IsOccupied(p domain.Point) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.agentAtLocked(p) != nil
}

func (b *Board) Perceive(a *agent.Agent) (agent.Perception, bool) {
	if b.Ended() {
		return agent.Perception{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !a.Alive {
		return agent.Perception{}, false
	}
	out := agent.Perception{
		Self:     a.View(),
		Size:     b.cfg.Size,
		Movement: b.cfg.Movement,
	}
	if a.Kind == domain.KindZombie {
		for _, other := range b.agents {
			if other.IsHuman() && a.Pos.Manhattan(other.Pos) <= b.cfg.Movement.ZombieRange {
				out.Humans = append(out.Humans, other.Pos)
			}
		}
	}
	return out, true
}

func (b *Board) Ended() bool {
	return b.ended.Load()
}

func (b *Board) Winner() domain.Winner {
	b.endMu.Lock()
	defer b.endMu.Unlock()
	return b.winner
}

func (b *Board) Done() <-chan struct{} {
	return b.done
}

// CheckWinCondition ends the game when a side has won. Escapes take
// precedence over a fully infected population.
func (b *Board) CheckWinCondition() domain.Winner {
	if b.Ended() {
		return b.Winner()
	}
	b.mu.Lock()
	humans, _ := b.countLocked()
	escapes := b.stats.Escapes()
	b.mu.Unlock()

	switch {
	case escapes > 0:
		b.EndGame(domain.WinnerHumans)
	case humans == 0:
		b.EndGame(domain.WinnerZombies)
	default:
		return domain.WinnerNone
	}
	return b.Winner()
}

// EndGame records w as the outcome unless the game already ended. It reports
// whether this call was the one that ended the game.
func (b *Board) EndGame(w domain.Winner) bool {
	if w == domain.WinnerNone {
		return false
	}
	b.endMu.Lock()
	if b.ended.Load() {
		b.endMu.Unlock()
		return false
	}
	b.winner = w
	b.ended.Store(true)
	b.endMu.Unlock()

	now := time.Now()
	b.mu.Lock()
	humans, zombies := b.countLocked()
	for _, a := range b.agents {
		if a.Alive {
			b.stats.RecordSurvival(a.Kind, now.Sub(a.KindSince))
			a.Alive = false
		}
		if a.State != domain.StateEscaped {
			a.State = domain.StateDead
		}
	}
	b.mu.Unlock()

	b.stats.Finish(humans, zombies, now)
	close(b.done)
	b.cells.Broadcast()
	b.publish(b.event(domain.EventGameEnd, fmt.Sprintf("Game ended. Winner: %s", w), nil))
	return true
}

// SettleContacts infects every human already touching a zombie, e.g. right
// after placement.
func (b *Board) SettleContacts() int {
	b.mu.Lock()
	var seeds []domain.Point
	for _, a := range b.agents {
		if a.IsZombie() {
			seeds = append(seeds, a.Pos)
		}
	}
	evs, n := b.propagateLocked(seeds)
	b.mu.Unlock()

	b.publish(evs...)
	if n > 0 {
		b.CheckWinCondition()
	}
	return n
}

func (b *Board) ReportFault(a *agent.Agent, err error) {
	b.mu.Lock()
	view := a.View()
	b.mu.Unlock()
	b.publish(b.event(domain.EventError, fmt.Sprintf("Error in agent task: %v", err), &view))
}

func (b *Board) Snapshot() domain.Snapshot {
	b.mu.Lock()
	out := domain.Snapshot{
		Size:   b.cfg.Size,
		Agents: make([]domain.AgentView, 0, len(b.agents)),
	}
	for _, a := range b.agents {
		out.Agents = append(out.Agents, a.View())
		if a.IsHuman() {
			out.Humans++
		} else if a.IsZombie() {
			out.Zombies++
		}
	}
	b.mu.Unlock()

	out.Ended = b.Ended()
	out.Winner = b.Winner()
	return out
}

func (b *Board) Stats() domain.Stats {
	return b.stats.Snapshot(time.Now())
}

func (b *Board) agentAtLocked(p domain.Point) *agent.Agent {
	for _, a := range b.agents {
		if a.Alive && a.Pos == p {
			return a
		}
	}
	return nil
}

func (b *Board) countLocked() (humans, zombies int) {
	for _, a := range b.agents {
		switch {
		case a.IsHuman():
			humans++
		case a.IsZombie():
			zombies++
		}
	}
	return humans, zombies
}

func (b *Board) event(kind domain.EventKind, msg string, view *domain.AgentView) domain.Event {
	ev := domain.Event{
		Kind:    kind,
		Message: msg,
	}
	if view != nil {
		ev.AgentID = view.ID
		ev.AgentKind = string(view.Kind)
	}
	return ev
}

func (b *Board) publish(evs ...domain.Event) {
	for _, ev := range evs {
		ev.Seq = b.seq.Add(1)
		ev.RunID = b.cfg.RunID
		if ev.At.IsZero() {
			ev.At = time.Now().UTC()
		}
		b.events.Publish(ev)
	}
}
