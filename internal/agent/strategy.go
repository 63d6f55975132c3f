package agent

import (
	"math/rand/v2"

	"outbreak/internal/domain"
)

var steps = [4]domain.Point{
	{X: -1, Y: 0},
	{X: 1, Y: 0},
	{X: 0, Y: -1},
	{X: 0, Y: 1},
}

// NextMove picks a candidate destination. It never looks at occupancy; the
// board validates the cell. ok is false when no in-bounds neighbour exists.
func NextMove(p Perception, rng *rand.Rand) (domain.Point, bool) {
	if !p.Self.Alive {
		return domain.Point{}, false
	}
	if p.Self.Kind == domain.KindHuman {
		return humanMove(p, rng)
	}
	switch p.Movement.Strategy {
	case domain.StrategyPursuit:
		return pursuitMove(p, rng)
	case domain.StrategyBlocking:
		return blockingMove(p, rng)
	default:
		return randomMove(p, rng)
	}
}

func neighbours(pos domain.Point, size int) []domain.Point {
	out := make([]domain.Point, 0, len(steps))
	for _, s := range steps {
		n := pos.Add(s.X, s.Y)
		if n.X >= 0 && n.X < size && n.Y >= 0 && n.Y < size {
			out = append(out, n)
		}
	}
	return out
}

func humanMove(p Perception, rng *rand.Rand) (domain.Point, bool) {
	pos := p.Self.Pos
	if bias := p.Movement.HumanBias; bias >= 0 && rng.Float64() < bias {
		if pos.X < p.Size-1 {
			return pos.Add(1, 0), true
		}
	}
	return randomMove(p, rng)
}

func randomMove(p Perception, rng *rand.Rand) (domain.Point, bool) {
	options := neighbours(p.Self.Pos, p.Size)
	if len(options) == 0 {
		return domain.Point{}, false
	}
	return options[rng.IntN(len(options))], true
}

func pursuitMove(p Perception, rng *rand.Rand) (domain.Point, bool) {
	pos := p.Self.Pos
	target, ok := nearest(pos, p.Humans, p.Movement.ZombieRange)
	if !ok {
		return randomMove(p, rng)
	}
	switch {
	case target.X > pos.X:
		return pos.Add(1, 0), true
	case target.X < pos.X:
		return pos.Add(-1, 0), true
	case target.Y > pos.Y:
		return pos.Add(0, 1), true
	case target.Y < pos.Y:
		return pos.Add(0, -1), true
	}
	return randomMove(p, rng)
}

func nearest(from domain.Point, humans []domain.Point, limit int) (domain.Point, bool) {
	best := -1
	var target domain.Point
	for _, h := range humans {
		d := from.Manhattan(h)
		if d > limit {
			continue
		}
		if best < 0 || d < best {
			best = d
			target = h
		}
	}
	return target, best >= 0
}

// blockingMove prefers the neighbour that sits ahead of the most humans in
// range, "ahead" meaning closer to the goal edge than the human.
func blockingMove(p Perception, rng *rand.Rand) (domain.Point, bool) {
	pos := p.Self.Pos
	var inRange []domain.Point
	for _, h := range p.Humans {
		if pos.Manhattan(h) <= p.Movement.ZombieRange {
			inRange = append(inRange, h)
		}
	}
	if len(inRange) == 0 {
		return randomMove(p, rng)
	}

	options := neighbours(pos, p.Size)
	if len(options) == 0 {
		return domain.Point{}, false
	}
	bestScore := -1
	var best []domain.Point
	for _, candidate := range options {
		score := 0
		for _, h := range inRange {
			if candidate.X > h.X {
				score++
			}
		}
		switch {
		case score > bestScore:
			bestScore = score
			best = append(best[:0], candidate)
		case score == bestScore:
			best = append(best, candidate)
		}
	}
	return best[rng.IntN(len(best))], true
}
