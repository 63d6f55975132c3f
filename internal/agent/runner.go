package agent

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"outbreak/internal/domain"
)

type Board interface {
	Perceive(a *Agent) (Perception, bool)
	MoveEntity(ctx context.Context, a *Agent, to domain.Point) bool
	Ended() bool
	Done() <-chan struct{}
	ReportFault(a *Agent, err error)
}

type RunnerConfig struct {
	CooldownMin time.Duration
	CooldownMax time.Duration
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.CooldownMin <= 0 {
		c.CooldownMin = 500 * time.Millisecond
	}
	if c.CooldownMax < c.CooldownMin {
		c.CooldownMax = c.CooldownMin
	}
	return c
}

// Runner drives one agent: cooldown, perceive, choose, request. It owns the
// goroutine, never the agent's state.
type Runner struct {
	agent  *Agent
	board  Board
	cfg    RunnerConfig
	rng    *rand.Rand
	logger *log.Logger
	next   func(Perception, *rand.Rand) (domain.Point, bool)
}

func NewRunner(a *Agent, board Board, cfg RunnerConfig, rng *rand.Rand, logger *log.Logger) *Runner {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		agent:  a,
		board:  board,
		cfg:    cfg.withDefaults(),
		rng:    rng,
		logger: logger,
		next:   NextMove,
	}
}

func (r *Runner) Agent() *Agent {
	return r.agent
}

// Run loops until the game ends, the agent stops being alive, ctx is
// cancelled or an iteration panics.
func (r *Runner) Run(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("agent %d task panic: %v", r.agent.ID, rec)
			r.logger.Printf("agent runner error: %v", err)
			r.board.ReportFault(r.agent, err)
		}
	}()

	for {
		if !r.sleep(ctx) {
			return
		}
		if r.board.Ended() {
			return
		}
		view, ok := r.board.Perceive(r.agent)
		if !ok {
			return
		}
		target, ok := r.next(view, r.rng)
		if !ok {
			continue
		}
		r.board.MoveEntity(ctx, r.agent, target)
	}
}

func (r *Runner) cooldown() time.Duration {
	span := r.cfg.CooldownMax - r.cfg.CooldownMin
	if span <= 0 {
		return r.cfg.CooldownMin
	}
	return r.cfg.CooldownMin + time.Duration(r.rng.Int64N(int64(span)+1))
}

func (r *Runner) sleep(ctx context.Context) bool {
	timer := time.NewTimer(r.cooldown())
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-r.board.Done():
		return false
	}
}
