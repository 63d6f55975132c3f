package agent

import (
	"time"

	"outbreak/internal/domain"
)

// Agent is one participant on the board. The board owns every field except
// ID; readers outside the board go through its snapshot and perceive calls.
type Agent struct {
	ID        int
	Kind      domain.Kind
	Pos       domain.Point
	State     domain.State
	Alive     bool
	KindSince time.Time
}

func New(id int, kind domain.Kind, pos domain.Point, now time.Time) *Agent {
	return &Agent{
		ID:        id,
		Kind:      kind,
		Pos:       pos,
		State:     domain.StateMoving,
		Alive:     true,
		KindSince: now,
	}
}

func (a *Agent) View() domain.AgentView {
	return domain.AgentView{
		ID:    a.ID,
		Kind:  a.Kind,
		Pos:   a.Pos,
		State: a.State,
		Alive: a.Alive,
	}
}

func (a *Agent) IsHuman() bool {
	return a.Alive && a.Kind == domain.KindHuman
}

func (a *Agent) IsZombie() bool {
	return a.Alive && a.Kind == domain.KindZombie
}

// Movement is the per-run movement configuration shared by every agent.
type Movement struct {
	// HumanBias is the probability of stepping toward the goal edge; a
	// negative value disables the preference.
	HumanBias   float64
	Strategy    domain.Strategy
	ZombieRange int
}

// Perception is a consistent copy of what an agent may consider when
// choosing its next cell.
type Perception struct {
	Self     domain.AgentView
	Size     int
	Movement Movement
	// Humans lists live humans within Movement.ZombieRange of Self. It is
	// only filled for zombies.
	Humans []domain.Point
}
