package lifecycle

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"outbreak/internal/config"
	"outbreak/internal/domain"
)

func testSimulation() config.Simulation {
	sim := config.Default().Simulation
	sim.BoardSize = 10
	sim.Humans = 1
	sim.Zombies = 0
	sim.CooldownMin = 0.1
	sim.CooldownMax = 0.1
	sim.GameTimeout = 10
	sim.PositionWaitTimeout = 1
	return sim
}

func newHarness(t *testing.T, cfg Config) *Controller {
	t.Helper()
	if err := (config.Config{Simulation: cfg.Simulation, Display: config.Default().Display}).Validate(); err != nil {
		t.Fatalf("invalid simulation: %v", err)
	}
	cfg.PollInterval = 10 * time.Millisecond
	return New(cfg, nil, log.New(io.Discard, "", 0))
}

func runWithDeadline(t *testing.T, c *Controller, ctx context.Context, timeout time.Duration) Result {
	t.Helper()
	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := c.Run(ctx)
		done <- outcome{res: res, err: err}
	}()
	select {
	case out := <-done:
		if out.err != nil {
			t.Fatalf("run: %v", out.err)
		}
		return out.res
	case <-time.After(timeout):
		t.Fatalf("game did not finish within %s", timeout)
	}
	return Result{}
}

func TestLoneHumanWithFullBiasEscapes(t *testing.T) {
	sim := testSimulation()
	sim.HumanBias = 1.0
	c := newHarness(t, Config{
		Simulation: sim,
		Spawns:     []Spawn{{Kind: domain.KindHuman, Pos: domain.Point{X: 0, Y: 0}}},
		Seed:       7,
	})

	res := runWithDeadline(t, c, context.Background(), 5*time.Second)
	if res.Winner != domain.WinnerHumans {
		t.Fatalf("winner=%s want=%s", res.Winner, domain.WinnerHumans)
	}
	if res.Stats.Escapes != 1 {
		t.Fatalf("escapes=%d want=1", res.Stats.Escapes)
	}
	if res.Stats.Moves[domain.KindHuman] != 9 {
		t.Fatalf("human moves=%d want=9", res.Stats.Moves[domain.KindHuman])
	}
	if res.RunID == "" || res.RunID != c.RunID() {
		t.Fatalf("run id=%q", res.RunID)
	}
	if len(res.Snapshot.Agents) != 1 || res.Snapshot.Agents[0].State != domain.StateEscaped {
		t.Fatalf("snapshot=%+v", res.Snapshot)
	}
}

func TestAdjacentZombieWinsImmediately(t *testing.T) {
	sim := testSimulation()
	sim.Zombies = 1
	c := newHarness(t, Config{
		Simulation: sim,
		Spawns: []Spawn{
			{Kind: domain.KindHuman, Pos: domain.Point{X: 5, Y: 5}},
			{Kind: domain.KindZombie, Pos: domain.Point{X: 5, Y: 4}},
		},
	})

	res := runWithDeadline(t, c, context.Background(), 5*time.Second)
	if res.Winner != domain.WinnerZombies {
		t.Fatalf("winner=%s want=%s", res.Winner, domain.WinnerZombies)
	}
	if res.Stats.Transformations != 1 || res.Stats.TotalMoves() != 0 {
		t.Fatalf("stats=%+v", res.Stats)
	}
	if res.Snapshot.Humans != 0 {
		t.Fatalf("humans=%d want=0", res.Snapshot.Humans)
	}
}

func TestGameTimesOut(t *testing.T) {
	sim := testSimulation()
	sim.GameTimeout = 0.3
	c := newHarness(t, Config{
		Simulation: sim,
		Spawns:     []Spawn{{Kind: domain.KindHuman, Pos: domain.Point{X: 0, Y: 0}}},
	})

	start := time.Now()
	res := runWithDeadline(t, c, context.Background(), 5*time.Second)
	if res.Winner != domain.WinnerTimeout {
		t.Fatalf("winner=%s want=%s", res.Winner, domain.WinnerTimeout)
	}
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Fatalf("ended after %s, before the timeout", elapsed)
	}
	if res.Snapshot.Agents[0].State != domain.StateDead {
		t.Fatalf("agent state=%s want=%s", res.Snapshot.Agents[0].State, domain.StateDead)
	}
}

func TestCancelInterruptsGame(t *testing.T) {
	sim := testSimulation()
	sim.GameTimeout = 0
	sim.Zombies = 3
	c := newHarness(t, Config{Simulation: sim, Seed: 3})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()
	res := runWithDeadline(t, c, ctx, 5*time.Second)
	if res.Winner != domain.WinnerInterrupted {
		t.Fatalf("winner=%s want=%s", res.Winner, domain.WinnerInterrupted)
	}
	if !res.Stats.Finished {
		t.Fatalf("stats not finished")
	}
}

func TestRunTwiceFails(t *testing.T) {
	sim := testSimulation()
	sim.GameTimeout = 0.1
	c := newHarness(t, Config{Simulation: sim})
	runWithDeadline(t, c, context.Background(), 5*time.Second)

	if _, err := c.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("err=%v want=%v", err, ErrAlreadyStarted)
	}
}

func TestInvalidSpawnEndsWithError(t *testing.T) {
	sim := testSimulation()
	c := newHarness(t, Config{
		Simulation: sim,
		Spawns: []Spawn{
			{Kind: domain.KindHuman, Pos: domain.Point{X: 1, Y: 1}},
			{Kind: domain.KindZombie, Pos: domain.Point{X: 1, Y: 1}},
		},
	})

	res, err := c.Run(context.Background())
	if err == nil {
		t.Fatalf("expected placement error")
	}
	if res.Winner != domain.WinnerError {
		t.Fatalf("winner=%s want=%s", res.Winner, domain.WinnerError)
	}
}
