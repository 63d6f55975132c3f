package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type Kind string

const (
	KindHuman  Kind = "HUMAN"
	KindZombie Kind = "ZOMBIE"
)

type State string

const (
	StateMoving       State = "MOVING"
	StateWaiting      State = "WAITING"
	StateTransforming State = "TRANSFORMING"
	StateEscaped      State = "ESCAPED"
	StateDead         State = "DEAD"
)

// Winner is the write-once end-of-game tag. The empty value means undecided.
type Winner string

const (
	WinnerNone        Winner = ""
	WinnerHumans      Winner = "HUMANS"
	WinnerZombies     Winner = "ZOMBIES"
	WinnerTimeout     Winner = "TIMEOUT"
	WinnerInterrupted Winner = "INTERRUPTED"
	WinnerError       Winner = "ERROR"
)

type Strategy string

const (
	StrategyRandom   Strategy = "RANDOM"
	StrategyPursuit  Strategy = "PURSUIT"
	StrategyBlocking Strategy = "BLOCKING"
)

// ParseStrategy accepts the English names and the legacy Portuguese ones.
func ParseStrategy(raw string) (Strategy, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "RANDOM", "ALEATORIO":
		return StrategyRandom, true
	case "PURSUIT", "PERSEGUICAO":
		return StrategyPursuit, true
	case "BLOCKING", "BLOQUEIO":
		return StrategyBlocking, true
	}
	return "", false
}

type EventKind string

const (
	EventGameStart      EventKind = "GAME_START"
	EventGameEnd        EventKind = "GAME_END"
	EventMoveExecuted   EventKind = "MOVE_EXECUTED"
	EventMoveDiscarded  EventKind = "MOVE_DISCARDED"
	EventMoveWaiting    EventKind = "MOVE_WAITING"
	EventTransformation EventKind = "TRANSFORMATION"
	EventEscape         EventKind = "ESCAPE"
	EventError          EventKind = "ERROR"
)

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) Add(dx, dy int) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

func (p Point) Manhattan(o Point) int {
	dx := p.X - o.X
	if dx < 0 {
		dx = -dx
	}
	dy := p.Y - o.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

type Event struct {
	Seq       uint64    `json:"seq"`
	RunID     string    `json:"run_id"`
	Kind      EventKind `json:"kind"`
	Message   string    `json:"message"`
	AgentID   int       `json:"agent_id,omitempty"`
	AgentKind string    `json:"agent_kind,omitempty"`
	At        time.Time `json:"at"`
}

type AgentView struct {
	ID    int   `json:"id"`
	Kind  Kind  `json:"kind"`
	Pos   Point `json:"pos"`
	State State `json:"state"`
	Alive bool  `json:"alive"`
}

type Snapshot struct {
	Size    int         `json:"size"`
	Agents  []AgentView `json:"agents"`
	Humans  int         `json:"humans"`
	Zombies int         `json:"zombies"`
	Ended   bool        `json:"ended"`
	Winner  Winner      `json:"winner,omitempty"`
}

type PositionCount struct {
	Pos   Point `json:"pos"`
	Count int   `json:"count"`
}

type Stats struct {
	Elapsed         time.Duration          `json:"elapsed"`
	InitialHumans   int                    `json:"initial_humans"`
	InitialZombies  int                    `json:"initial_zombies"`
	FinalHumans     int                    `json:"final_humans"`
	FinalZombies    int                    `json:"final_zombies"`
	Moves           map[Kind]int           `json:"moves"`
	Transformations int                    `json:"transformations"`
	Escapes         int                    `json:"escapes"`
	Collisions      int                    `json:"collisions"`
	TopPositions    []PositionCount        `json:"top_positions"`
	AvgMoveTime     time.Duration          `json:"avg_move_time"`
	AvgSurvival     map[Kind]time.Duration `json:"avg_survival"`
	Finished        bool                   `json:"finished"`
}

func (s Stats) TotalMoves() int {
	total := 0
	for _, n := range s.Moves {
		total += n
	}
	return total
}

type Run struct {
	ID        string          `json:"id"`
	BoardSize int             `json:"board_size"`
	Humans    int             `json:"humans"`
	Zombies   int             `json:"zombies"`
	Strategy  Strategy        `json:"strategy"`
	Winner    Winner          `json:"winner,omitempty"`
	Stats     json.RawMessage `json:"stats,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
}
