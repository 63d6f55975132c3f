package policy

import (
	"strings"
	"testing"

	"outbreak/internal/domain"
)

type square int

func (s square) InBounds(p domain.Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < int(s) && p.Y < int(s)
}

func TestCanMove(t *testing.T) {
	e := New(square(10))
	alive := domain.AgentView{ID: 1, Kind: domain.KindHuman, Pos: domain.Point{X: 0, Y: 5}, State: domain.StateMoving, Alive: true}

	cases := []struct {
		name   string
		self   domain.AgentView
		to     domain.Point
		ok     bool
		reason string
	}{
		{"step right", alive, domain.Point{X: 1, Y: 5}, true, "allowed"},
		{"off the left edge", alive, domain.Point{X: -1, Y: 5}, false, "out of bounds"},
		{"diagonal", alive, domain.Point{X: 1, Y: 6}, false, "single orthogonal step"},
		{"stay", alive, domain.Point{X: 0, Y: 5}, false, "single orthogonal step"},
		{"dead", domain.AgentView{Pos: domain.Point{X: 0, Y: 5}, State: domain.StateDead}, domain.Point{X: 1, Y: 5}, false, "not alive"},
		{"escaped", domain.AgentView{Pos: domain.Point{X: 9, Y: 5}, State: domain.StateEscaped, Alive: true}, domain.Point{X: 8, Y: 5}, false, "final state"},
	}
	for _, tc := range cases {
		ok, reason := e.CanMove(tc.self, tc.to)
		if ok != tc.ok {
			t.Fatalf("%s: ok=%v want=%v (%s)", tc.name, ok, tc.ok, reason)
		}
		if !strings.Contains(reason, tc.reason) {
			t.Fatalf("%s: reason=%q want substring %q", tc.name, reason, tc.reason)
		}
	}
}
