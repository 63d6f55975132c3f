package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"outbreak/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05.000"

// FileWriter appends one line per event to a game log file under a fixed
// directory.
type FileWriter struct {
	root string
	path string

	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	lines  int
	closed bool
}

// LogFileName is the conventional file name for a game started at t.
func LogFileName(t time.Time) string {
	return fmt.Sprintf("game_log_%d.txt", t.Unix())
}

func NewFileWriter(dir, name string) (*FileWriter, error) {
	absRoot, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve log dir: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	w := &FileWriter{root: absRoot}
	absPath, _, err := w.resolve(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log file parent: %w", err)
	}
	f, err := os.OpenFile(absPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	w.path = absPath
	w.file = f
	w.buf = bufio.NewWriter(f)
	return w, nil
}

func (w *FileWriter) Path() string {
	return w.path
}

func (w *FileWriter) Lines() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

func (w *FileWriter) WriteHeader(runID string, startedAt time.Time) error {
	return w.writeLine(fmt.Sprintf("=== Game log started at %s (run %s) ===", startedAt.Format(timeLayout), runID))
}

func (w *FileWriter) WriteEvent(ev domain.Event) error {
	return w.writeLine(FormatLine(ev))
}

// WriteFooter writes the closing summary block. It does not close the file.
func (w *FileWriter) WriteFooter(winner domain.Winner, st domain.Stats) error {
	lines := []string{
		fmt.Sprintf("=== Game ended: winner %s after %s ===", winner, st.Elapsed.Round(time.Millisecond)),
		fmt.Sprintf("moves: humans=%d zombies=%d", st.Moves[domain.KindHuman], st.Moves[domain.KindZombie]),
		fmt.Sprintf("transformations=%d escapes=%d collisions=%d", st.Transformations, st.Escapes, st.Collisions),
		fmt.Sprintf("population: humans %d -> %d, zombies %d -> %d", st.InitialHumans, st.FinalHumans, st.InitialZombies, st.FinalZombies),
	}
	for _, line := range lines {
		if err := w.writeLine(line); err != nil {
			return err
		}
	}
	return nil
}

// Consume writes every event received on events until the channel is closed.
func (w *FileWriter) Consume(events <-chan domain.Event) error {
	var firstErr error
	for ev := range events {
		if err := w.WriteEvent(ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.buf.Flush(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("flush log file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

func (w *FileWriter) writeLine(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("write log line: file closed")
	}
	if _, err := w.buf.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write log line: %w", err)
	}
	w.lines++
	return nil
}

// FormatLine renders ev as "[ts] [KIND] [Entity:id] [kind] message". Events
// without an agent omit the entity fields.
func FormatLine(ev domain.Event) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(ev.At.Format(timeLayout))
	b.WriteString("] [")
	b.WriteString(string(ev.Kind))
	b.WriteString("] ")
	if ev.AgentID > 0 {
		fmt.Fprintf(&b, "[Entity:%d] [%s] ", ev.AgentID, ev.AgentKind)
	}
	b.WriteString(ev.Message)
	return b.String()
}

func (w *FileWriter) resolve(name string) (absolute string, normalized string, err error) {
	normalized = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	normalized = strings.TrimPrefix(normalized, "./")
	normalized = strings.TrimPrefix(normalized, "/")
	if normalized == "" || normalized == "." {
		return "", "", fmt.Errorf("invalid log file name %q", name)
	}

	absClean := filepath.Clean(filepath.Join(w.root, filepath.FromSlash(normalized)))
	rel, err := filepath.Rel(w.root, absClean)
	if err != nil {
		return "", "", fmt.Errorf("resolve log file: %w", err)
	}
	if strings.HasPrefix(rel, "..") || rel == "." {
		return "", "", fmt.Errorf("log file escapes log dir: %q", name)
	}
	return absClean, filepath.ToSlash(rel), nil
}
