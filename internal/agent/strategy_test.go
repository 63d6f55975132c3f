package agent

import (
	"math/rand/v2"
	"testing"

	"outbreak/internal/domain"
)

func testRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func perception(kind domain.Kind, pos domain.Point, mv Movement, humans ...domain.Point) Perception {
	return Perception{
		Self:     domain.AgentView{ID: 1, Kind: kind, Pos: pos, State: domain.StateMoving, Alive: true},
		Size:     10,
		Movement: mv,
		Humans:   humans,
	}
}

func isNeighbour(a, b domain.Point) bool {
	return a.Manhattan(b) == 1
}

func TestHumanFullBiasAlwaysStepsForward(t *testing.T) {
	rng := testRNG(1)
	p := perception(domain.KindHuman, domain.Point{X: 3, Y: 4}, Movement{HumanBias: 1.0})
	for i := 0; i < 100; i++ {
		got, ok := NextMove(p, rng)
		if !ok || got != (domain.Point{X: 4, Y: 4}) {
			t.Fatalf("got=%v ok=%v want=(4,4)", got, ok)
		}
	}
}

func TestHumanWithoutBiasMovesToRandomNeighbour(t *testing.T) {
	rng := testRNG(2)
	p := perception(domain.KindHuman, domain.Point{X: 0, Y: 0}, Movement{HumanBias: -1})
	seen := map[domain.Point]bool{}
	for i := 0; i < 200; i++ {
		got, ok := NextMove(p, rng)
		if !ok {
			t.Fatalf("expected a move from the corner")
		}
		if !isNeighbour(got, p.Self.Pos) || got.X < 0 || got.Y < 0 {
			t.Fatalf("invalid move %v", got)
		}
		seen[got] = true
	}
	if len(seen) != 2 {
		t.Fatalf("corner neighbours seen=%d want=2", len(seen))
	}
}

func TestDeadAgentDoesNotMove(t *testing.T) {
	p := perception(domain.KindHuman, domain.Point{X: 3, Y: 3}, Movement{HumanBias: 1})
	p.Self.Alive = false
	if _, ok := NextMove(p, testRNG(3)); ok {
		t.Fatalf("dead agent produced a move")
	}
}

func TestRandomStrategyStaysInBounds(t *testing.T) {
	rng := testRNG(4)
	p := perception(domain.KindZombie, domain.Point{X: 9, Y: 9}, Movement{Strategy: domain.StrategyRandom, ZombieRange: 3})
	for i := 0; i < 200; i++ {
		got, ok := NextMove(p, rng)
		if !ok {
			t.Fatalf("expected a move")
		}
		if got.X > 9 || got.Y > 9 || !isNeighbour(got, p.Self.Pos) {
			t.Fatalf("invalid move %v", got)
		}
	}
}

func TestPursuitStepsTowardsNearestHumanXFirst(t *testing.T) {
	mv := Movement{Strategy: domain.StrategyPursuit, ZombieRange: 3}
	cases := []struct {
		name   string
		pos    domain.Point
		humans []domain.Point
		want   domain.Point
	}{
		{"diagonal prefers x", domain.Point{X: 5, Y: 5}, []domain.Point{{X: 6, Y: 7}}, domain.Point{X: 6, Y: 5}},
		{"left", domain.Point{X: 5, Y: 5}, []domain.Point{{X: 3, Y: 5}}, domain.Point{X: 4, Y: 5}},
		{"same column", domain.Point{X: 5, Y: 5}, []domain.Point{{X: 5, Y: 3}}, domain.Point{X: 5, Y: 4}},
		{"nearest wins", domain.Point{X: 5, Y: 5}, []domain.Point{{X: 5, Y: 8}, {X: 4, Y: 5}}, domain.Point{X: 4, Y: 5}},
	}
	for _, tc := range cases {
		p := perception(domain.KindZombie, tc.pos, mv, tc.humans...)
		got, ok := NextMove(p, testRNG(5))
		if !ok || got != tc.want {
			t.Fatalf("%s: got=%v want=%v", tc.name, got, tc.want)
		}
	}
}

func TestPursuitIgnoresHumansOutOfRange(t *testing.T) {
	rng := testRNG(6)
	p := perception(domain.KindZombie, domain.Point{X: 0, Y: 0},
		Movement{Strategy: domain.StrategyPursuit, ZombieRange: 2}, domain.Point{X: 0, Y: 5})
	downward := 0
	for i := 0; i < 200; i++ {
		got, ok := NextMove(p, rng)
		if !ok {
			t.Fatalf("expected a random move")
		}
		if got == (domain.Point{X: 0, Y: 1}) {
			downward++
		}
	}
	if downward == 200 {
		t.Fatalf("zombie chased a human outside its range")
	}
}

func TestBlockingPrefersCellAheadOfHumans(t *testing.T) {
	mv := Movement{Strategy: domain.StrategyBlocking, ZombieRange: 3}
	p := perception(domain.KindZombie, domain.Point{X: 5, Y: 5}, mv, domain.Point{X: 5, Y: 7})
	for seed := uint64(0); seed < 50; seed++ {
		got, ok := NextMove(p, testRNG(seed))
		if !ok {
			t.Fatalf("expected a move")
		}
		// Only (6,5) lies ahead of the human's column.
		if got != (domain.Point{X: 6, Y: 5}) {
			t.Fatalf("seed=%d got=%v want=(6,5)", seed, got)
		}
	}
}

func TestBlockingBreaksTiesAmongBestCells(t *testing.T) {
	mv := Movement{Strategy: domain.StrategyBlocking, ZombieRange: 3}
	p := perception(domain.KindZombie, domain.Point{X: 5, Y: 5}, mv, domain.Point{X: 3, Y: 5})
	seen := map[domain.Point]bool{}
	for seed := uint64(0); seed < 100; seed++ {
		got, _ := NextMove(p, testRNG(seed))
		seen[got] = true
	}
	// Every neighbour of (5,5) is ahead of x=3, so all four tie.
	if len(seen) < 2 {
		t.Fatalf("tie was not broken at random: %v", seen)
	}
}
