package policy

import (
	"fmt"

	"outbreak/internal/domain"
)

type Bounds interface {
	InBounds(p domain.Point) bool
}

// Engine decides whether a requested move may be attempted at all. It does
// not look at occupancy.
type Engine struct {
	bounds Bounds
}

func New(bounds Bounds) *Engine {
	return &Engine{bounds: bounds}
}

func (e *Engine) CanMove(self domain.AgentView, to domain.Point) (bool, string) {
	if !self.Alive {
		return false, "agent is not alive"
	}
	if self.State == domain.StateDead || self.State == domain.StateEscaped {
		return false, fmt.Sprintf("agent is in final state %s", self.State)
	}
	if !e.bounds.InBounds(to) {
		return false, fmt.Sprintf("movement out of bounds: (%d,%d) -> (%d,%d)", self.Pos.X, self.Pos.Y, to.X, to.Y)
	}
	if self.Pos.Manhattan(to) != 1 {
		return false, fmt.Sprintf("movement is not a single orthogonal step: (%d,%d) -> (%d,%d)", self.Pos.X, self.Pos.Y, to.X, to.Y)
	}
	return true, "allowed"
}
