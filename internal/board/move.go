package board

import (
	"context"
	"fmt"
	"time"

	"outbreak/internal/agent"
	"outbreak/internal/domain"
)

type moveOutcome int

const (
	moveBusy moveOutcome = iota
	moveApplied
	moveEscaped
	moveAborted
)

var orthogonal = [4]domain.Point{
	{X: -1, Y: 0},
	{X: 1, Y: 0},
	{X: 0, Y: -1},
	{X: 0, Y: 1},
}

// MoveEntity asks for a to step into to. It returns whether the move was
// applied. A move that cannot obtain the destination within the position
// wait timeout is recorded as a collision and leaves the board untouched.
func (b *Board) MoveEntity(ctx context.Context, a *agent.Agent, to domain.Point) bool {
	start := time.Now()
	if b.Ended() {
		return false
	}

	b.mu.Lock()
	view := a.View()
	b.mu.Unlock()

	if ok, reason := b.policy.CanMove(view, to); !ok {
		b.publish(b.event(domain.EventMoveDiscarded, reason, &view))
		return false
	}

	deadline := start.Add(b.cfg.PositionWait)
	release, ok := b.cells.Acquire(ctx, to, b.cfg.PositionWait)
	if !ok {
		b.timedOut(ctx, view, to)
		return false
	}

	var (
		outcome moveOutcome
		from    domain.Point
		evs     []domain.Event
		waited  bool
	)
	for {
		outcome, from, evs = b.tryApply(a, to, start)
		if outcome != moveBusy {
			break
		}
		if !waited {
			b.setWaiting(a, true)
			waited = true
		}
		b.publish(b.event(domain.EventMoveWaiting, fmt.Sprintf("Waiting for position (%d,%d) to be free", to.X, to.Y), &view))

		remaining := time.Until(deadline)
		if remaining <= 0 || !b.cells.WaitForFree(ctx, to, remaining) {
			b.setWaiting(a, false)
			release()
			b.timedOut(ctx, view, to)
			return false
		}
	}
	release()

	if outcome == moveAborted {
		if waited {
			b.setWaiting(a, false)
		}
		return false
	}

	b.cells.NotifyVacated(from)
	b.publish(evs...)

	if outcome == moveEscaped {
		b.CheckWinCondition()
		return true
	}

	b.mu.Lock()
	infectEvs, infected := b.infectFromLocked(a)
	b.mu.Unlock()
	b.publish(infectEvs...)
	if infected > 0 {
		b.CheckWinCondition()
	}
	return true
}

// tryApply performs the occupancy check and the position update in one
// critical section.
func (b *Board) tryApply(a *agent.Agent, to domain.Point, start time.Time) (moveOutcome, domain.Point, []domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !a.Alive || b.ended.Load() {
		return moveAborted, a.Pos, nil
	}
	if b.agentAtLocked(to) != nil {
		return moveBusy, a.Pos, nil
	}

	from := a.Pos
	a.Pos = to
	a.State = domain.StateMoving
	b.stats.RecordMove(a.Kind, to, time.Since(start))

	view := a.View()
	evs := []domain.Event{
		b.event(domain.EventMoveExecuted, fmt.Sprintf("Movement executed: (%d,%d) -> (%d,%d)", from.X, from.Y, to.X, to.Y), &view),
	}

	if a.Kind == domain.KindHuman && to.X == b.GoalX() {
		a.State = domain.StateEscaped
		a.Alive = false
		b.stats.RecordEscape()
		b.stats.RecordSurvival(domain.KindHuman, time.Since(a.KindSince))
		view = a.View()
		evs = append(evs, b.event(domain.EventEscape, fmt.Sprintf("Human escaped at position (%d,%d)", to.X, to.Y), &view))
		return moveEscaped, from, evs
	}
	return moveApplied, from, evs
}

func (b *Board) setWaiting(a *agent.Agent, waiting bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !a.Alive {
		return
	}
	switch {
	case waiting && a.State == domain.StateMoving:
		a.State = domain.StateWaiting
	case !waiting && a.State == domain.StateWaiting:
		a.State = domain.StateMoving
	}
}

func (b *Board) timedOut(ctx context.Context, view domain.AgentView, to domain.Point) {
	if b.Ended() || ctx.Err() != nil {
		return
	}
	b.stats.RecordCollision()
	b.publish(b.event(domain.EventMoveWaiting, fmt.Sprintf("Movement timeout waiting for position (%d,%d)", to.X, to.Y), &view))
}

// infectFromLocked applies the contact rule for an agent that just arrived:
// an arriving zombie seeds propagation from its cell, and an arriving human
// that touches a zombie is infected first and then seeds it.
func (b *Board) infectFromLocked(a *agent.Agent) ([]domain.Event, int) {
	if !a.Alive {
		return nil, 0
	}
	var evs []domain.Event
	infected := 0
	if a.Kind == domain.KindHuman {
		touching := false
		for _, s := range orthogonal {
			if n := b.agentAtLocked(a.Pos.Add(s.X, s.Y)); n != nil && n.Kind == domain.KindZombie {
				touching = true
				break
			}
		}
		if !touching {
			return nil, 0
		}
		evs = append(evs, b.infectLocked(a))
		infected++
	}
	more, n := b.propagateLocked([]domain.Point{a.Pos})
	return append(evs, more...), infected + n
}

// propagateLocked spreads infection from the zombies at seeds to every
// orthogonally connected live human, using a work-list instead of recursion.
func (b *Board) propagateLocked(seeds []domain.Point) ([]domain.Event, int) {
	var evs []domain.Event
	infected := 0
	queue := append([]domain.Point(nil), seeds...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		src := b.agentAtLocked(p)
		if src == nil || src.Kind != domain.KindZombie {
			continue
		}
		for _, s := range orthogonal {
			n := p.Add(s.X, s.Y)
			if !b.cells.InBounds(n) {
				continue
			}
			target := b.agentAtLocked(n)
			if target == nil || target.Kind != domain.KindHuman {
				continue
			}
			evs = append(evs, b.infectLocked(target))
			infected++
			queue = append(queue, n)
		}
	}
	return evs, infected
}

func (b *Board) infectLocked(h *agent.Agent) domain.Event {
	now := time.Now()
	h.State = domain.StateTransforming
	view := h.View()
	ev := b.event(domain.EventTransformation, fmt.Sprintf("Human transformed at position (%d,%d)", h.Pos.X, h.Pos.Y), &view)
	ev.AgentKind = "HUMAN->ZOMBIE"

	b.stats.RecordSurvival(domain.KindHuman, now.Sub(h.KindSince))
	b.stats.RecordTransformation()
	h.Kind = domain.KindZombie
	h.KindSince = now
	h.State = domain.StateMoving
	return ev
}
