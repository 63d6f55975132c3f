package display

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"outbreak/internal/domain"
)

const (
	glyphEmpty  = '.'
	glyphHuman  = 'H'
	glyphZombie = 'Z'

	clearScreen = "\033[H\033[2J"
)

// Frame is one observation of a running game.
type Frame struct {
	Snapshot domain.Snapshot `json:"snapshot"`
	Stats    domain.Stats    `json:"stats"`
}

type Source func() (Frame, error)

type localBoard interface {
	Snapshot() domain.Snapshot
	Stats() domain.Stats
}

// Local adapts an in-process board to a Source.
func Local(b localBoard) Source {
	return func() (Frame, error) {
		return Frame{Snapshot: b.Snapshot(), Stats: b.Stats()}, nil
	}
}

// Cells lays the live agents of s out as a row-major glyph matrix.
func Cells(s domain.Snapshot) [][]rune {
	rows := make([][]rune, s.Size)
	for y := range rows {
		rows[y] = []rune(strings.Repeat(string(glyphEmpty), s.Size))
	}
	for _, a := range s.Agents {
		if !a.Alive || a.Pos.X < 0 || a.Pos.Y < 0 || a.Pos.X >= s.Size || a.Pos.Y >= s.Size {
			continue
		}
		if a.Kind == domain.KindZombie {
			rows[a.Pos.Y][a.Pos.X] = glyphZombie
		} else {
			rows[a.Pos.Y][a.Pos.X] = glyphHuman
		}
	}
	return rows
}

func RenderText(s domain.Snapshot, st domain.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Outbreak %dx%d | goal: column %d ===\n", s.Size, s.Size, s.Size-1)
	for _, row := range Cells(s) {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Humans: %d | Zombies: %d | Escapes: %d | Transformations: %d | Moves: %d | Elapsed: %s\n",
		s.Humans, s.Zombies, st.Escapes, st.Transformations, st.TotalMoves(), st.Elapsed.Round(100*time.Millisecond))
	if s.Ended {
		fmt.Fprintf(&b, "Game over. Winner: %s\n", s.Winner)
	}
	return b.String()
}

// FormatStats renders the end-of-game report.
func FormatStats(winner domain.Winner, st domain.Stats) string {
	var b strings.Builder
	b.WriteString("=== Game statistics ===\n")
	fmt.Fprintf(&b, "Winner: %s\n", winner)
	fmt.Fprintf(&b, "Duration: %s\n", st.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "Humans: %d -> %d\n", st.InitialHumans, st.FinalHumans)
	fmt.Fprintf(&b, "Zombies: %d -> %d\n", st.InitialZombies, st.FinalZombies)
	fmt.Fprintf(&b, "Moves: %d (humans %d, zombies %d)\n", st.TotalMoves(), st.Moves[domain.KindHuman], st.Moves[domain.KindZombie])
	fmt.Fprintf(&b, "Transformations: %d\n", st.Transformations)
	fmt.Fprintf(&b, "Escapes: %d\n", st.Escapes)
	fmt.Fprintf(&b, "Collisions: %d\n", st.Collisions)
	if st.AvgMoveTime > 0 {
		fmt.Fprintf(&b, "Average move time: %s\n", st.AvgMoveTime.Round(time.Microsecond))
	}
	for _, k := range []domain.Kind{domain.KindHuman, domain.KindZombie} {
		if d, ok := st.AvgSurvival[k]; ok {
			fmt.Fprintf(&b, "Average %s survival: %s\n", strings.ToLower(string(k)), d.Round(time.Millisecond))
		}
	}
	if len(st.TopPositions) > 0 {
		b.WriteString("Most visited positions:\n")
		for _, pc := range st.TopPositions {
			fmt.Fprintf(&b, "  (%d,%d): %d\n", pc.Pos.X, pc.Pos.Y, pc.Count)
		}
	}
	return b.String()
}

// Loop redraws the board to out every interval until ctx is cancelled or the
// observed game has ended. The final frame is always drawn.
func Loop(ctx context.Context, src Source, out io.Writer, interval time.Duration) error {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	draw := func() (bool, error) {
		f, err := src()
		if err != nil {
			return false, fmt.Errorf("read frame: %w", err)
		}
		if _, err := io.WriteString(out, clearScreen+RenderText(f.Snapshot, f.Stats)); err != nil {
			return false, fmt.Errorf("write frame: %w", err)
		}
		return f.Snapshot.Ended, nil
	}

	for {
		ended, err := draw()
		if err != nil || ended {
			return err
		}
		select {
		case <-ctx.Done():
			_, err := draw()
			return err
		case <-ticker.C:
		}
	}
}
