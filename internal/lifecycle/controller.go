package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"outbreak/internal/agent"
	"outbreak/internal/board"
	"outbreak/internal/config"
	"outbreak/internal/domain"
)

var ErrAlreadyStarted = errors.New("controller already started")

type Spawn struct {
	Kind domain.Kind
	Pos  domain.Point
}

type Config struct {
	Simulation config.Simulation
	// Spawns replaces random placement when non-empty.
	Spawns       []Spawn
	PollInterval time.Duration
	JoinTimeout  time.Duration
	Seed         uint64
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = 2 * time.Second
	}
	if c.Seed == 0 {
		c.Seed = rand.Uint64()
	}
	return c
}

type Result struct {
	RunID    string          `json:"run_id"`
	Winner   domain.Winner   `json:"winner"`
	Stats    domain.Stats    `json:"stats"`
	Snapshot domain.Snapshot `json:"snapshot"`
}

type Controller struct {
	cfg    Config
	runID  string
	board  *board.Board
	rng    *rand.Rand
	logger *log.Logger

	started atomic.Bool
	wg      sync.WaitGroup
}

func New(cfg Config, events board.EventSink, logger *log.Logger) *Controller {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Default()
	}
	runID := uuid.NewString()
	sim := cfg.Simulation
	b := board.New(board.Config{
		RunID:        runID,
		Size:         sim.BoardSize,
		PositionWait: sim.PositionWait(),
		Movement: agent.Movement{
			HumanBias:   sim.Bias(),
			Strategy:    sim.Strategy(),
			ZombieRange: sim.ZombieRange,
		},
	}, nil, events, logger)
	return &Controller{
		cfg:    cfg,
		runID:  runID,
		board:  b,
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		logger: logger,
	}
}

func (c *Controller) RunID() string {
	return c.runID
}

func (c *Controller) Board() *board.Board {
	return c.board
}

// Run places the agents, starts one task per agent plus the watchdog and the
// win poller, and blocks until the game ends. Cancelling ctx ends the game as
// INTERRUPTED.
func (c *Controller) Run(ctx context.Context) (res Result, err error) {
	if !c.started.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyStarted
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("lifecycle run panic: %v", rec)
			c.logger.Printf("lifecycle error: %v", err)
			c.board.EndGame(domain.WinnerError)
			res = c.result()
		}
	}()

	if err := c.place(); err != nil {
		c.board.EndGame(domain.WinnerError)
		return c.result(), err
	}
	c.board.Begin()
	c.board.SettleContacts()

	gameCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.startAgents(gameCtx)
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.watchdog(gameCtx)
	}()
	go func() {
		defer c.wg.Done()
		c.pollLoop(gameCtx)
	}()

	select {
	case <-ctx.Done():
		c.board.EndGame(domain.WinnerInterrupted)
	case <-c.board.Done():
	}
	cancel()
	c.join()
	return c.result(), nil
}

func (c *Controller) startAgents(ctx context.Context) {
	minCooldown, maxCooldown := c.cfg.Simulation.Cooldown()
	runnerCfg := agent.RunnerConfig{
		CooldownMin: minCooldown,
		CooldownMax: maxCooldown,
	}
	for _, a := range c.board.Agents() {
		rng := rand.New(rand.NewPCG(c.rng.Uint64(), c.rng.Uint64()))
		r := agent.NewRunner(a, c.board, runnerCfg, rng, c.logger)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			r.Run(ctx)
		}()
	}
}

func (c *Controller) watchdog(ctx context.Context) {
	timeout := c.cfg.Simulation.Timeout()
	if timeout <= 0 {
		return
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-c.board.Done():
	case <-timer.C:
		if c.board.EndGame(domain.WinnerTimeout) {
			c.logger.Printf("game timeout reached after %s", timeout)
		}
	}
}

func (c *Controller) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.board.Done():
			return
		case <-ticker.C:
			c.board.CheckWinCondition()
		}
	}
}

func (c *Controller) join() {
	joined := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(joined)
	}()
	select {
	case <-joined:
	case <-time.After(c.cfg.JoinTimeout):
		c.logger.Printf("lifecycle shutdown: tasks still running after %s", c.cfg.JoinTimeout)
	}
}

func (c *Controller) result() Result {
	return Result{
		RunID:    c.runID,
		Winner:   c.board.Winner(),
		Stats:    c.board.Stats(),
		Snapshot: c.board.Snapshot(),
	}
}
