package lifecycle

import (
	"fmt"

	"outbreak/internal/config"
	"outbreak/internal/domain"
)

func (c *Controller) place() error {
	if len(c.cfg.Spawns) > 0 {
		for _, s := range c.cfg.Spawns {
			if _, err := c.board.Spawn(s.Kind, s.Pos); err != nil {
				return fmt.Errorf("place agents: %w", err)
			}
		}
		return nil
	}

	sim := c.cfg.Simulation
	size := sim.BoardSize
	for _, p := range c.column(0, sim.Humans) {
		if _, err := c.board.Spawn(domain.KindHuman, p); err != nil {
			return fmt.Errorf("place humans: %w", err)
		}
	}

	var zombies []domain.Point
	if sim.ZombiePlacement == config.PlacementScattered {
		zombies = c.scattered(size, sim.Zombies)
	} else {
		zombies = c.column(size-1, sim.Zombies)
	}
	for _, p := range zombies {
		if _, err := c.board.Spawn(domain.KindZombie, p); err != nil {
			return fmt.Errorf("place zombies: %w", err)
		}
	}
	return nil
}

// column returns n distinct random cells of column x.
func (c *Controller) column(x, n int) []domain.Point {
	size := c.cfg.Simulation.BoardSize
	rows := c.rng.Perm(size)
	if n > size {
		n = size
	}
	out := make([]domain.Point, 0, n)
	for _, y := range rows[:n] {
		out = append(out, domain.Point{X: x, Y: y})
	}
	return out
}

// scattered returns n distinct random cells off the human starting column.
func (c *Controller) scattered(size, n int) []domain.Point {
	cells := make([]domain.Point, 0, size*(size-1))
	for x := 1; x < size; x++ {
		for y := 0; y < size; y++ {
			cells = append(cells, domain.Point{X: x, Y: y})
		}
	}
	c.rng.Shuffle(len(cells), func(i, j int) {
		cells[i], cells[j] = cells[j], cells[i]
	})
	if n > len(cells) {
		n = len(cells)
	}
	return cells[:n]
}
