package display

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"outbreak/internal/domain"
)

const eventLines = 200

// TUI shows the board, live counters and the recent event feed in a terminal
// application.
type TUI struct {
	app        *tview.Application
	boardView  *tview.TextView
	statsView  *tview.TextView
	eventsView *tview.TextView
	statusView *tview.TextView
	root       tview.Primitive
	title      string

	mu     sync.Mutex
	events []string
}

func NewTUI(title string) *TUI {
	app := tview.NewApplication()

	boardView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	boardView.SetTitle(title).SetBorder(true)

	statsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	statsView.SetTitle("Statistics").SetBorder(true)

	eventsView := tview.NewTextView().
		SetDynamicColors(false).
		SetWrap(false)
	eventsView.SetTitle("Events").SetBorder(true)

	statusView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	statusView.SetBorder(true).SetTitle("Status")
	statusView.SetText("Waiting for first frame | shortcuts: F10/q quit")

	side := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(statsView, 14, 0, false).
		AddItem(eventsView, 0, 1, false)
	body := tview.NewFlex().
		AddItem(boardView, 0, 3, false).
		AddItem(side, 0, 2, false)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, false).
		AddItem(statusView, 3, 0, false)

	t := &TUI{
		app:        app,
		boardView:  boardView,
		statsView:  statsView,
		eventsView: eventsView,
		statusView: statusView,
		root:       root,
		title:      title,
	}
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF10, tcell.KeyEscape:
			app.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() == 'q' {
				app.Stop()
				return nil
			}
		}
		return event
	})
	return t
}

// Run polls src every interval and blocks until the user quits or ctx is
// cancelled. The last frame stays on screen after the game ends.
func (t *TUI) Run(ctx context.Context, src Source, interval time.Duration) error {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-pollCtx.Done()
		if ctx.Err() != nil {
			t.app.Stop()
		}
	}()
	go t.poll(pollCtx, src, interval)

	if err := t.app.SetRoot(t.root, true).Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

func (t *TUI) Stop() {
	t.app.Stop()
}

// AppendEvent queues one line for the event feed. It never blocks; the feed
// is redrawn on the next poll.
func (t *TUI) AppendEvent(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, line)
	if len(t.events) > eventLines {
		t.events = t.events[len(t.events)-eventLines:]
	}
}

func (t *TUI) eventText() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.events, "\n")
}

// poll keeps the event feed fresh after the game has ended but stops asking
// src for frames.
func (t *TUI) poll(ctx context.Context, src Source, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ended := false
	for {
		feed := t.eventText()
		if ended {
			t.app.QueueUpdateDraw(func() {
				t.eventsView.SetText(feed)
				t.eventsView.ScrollToEnd()
			})
		} else if f, err := src(); err != nil {
			t.app.QueueUpdateDraw(func() {
				t.statusView.SetText(fmt.Sprintf("[red]load error:[-] %v", err))
			})
		} else {
			ended = f.Snapshot.Ended
			t.app.QueueUpdateDraw(func() {
				t.show(f)
				t.eventsView.SetText(feed)
				t.eventsView.ScrollToEnd()
			})
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (t *TUI) show(f Frame) {
	t.boardView.SetText(BoardMarkup(f.Snapshot))
	t.statsView.SetText(StatsMarkup(f.Snapshot, f.Stats))
	if f.Snapshot.Ended {
		t.statusView.SetText(fmt.Sprintf("[yellow]Game over.[-] Winner: [::b]%s[::-] | F10/q quit", f.Snapshot.Winner))
		return
	}
	t.statusView.SetText(fmt.Sprintf("Running %s | updated %s | F10/q quit", t.title, time.Now().Format("15:04:05")))
}

// BoardMarkup renders the board with tview colour tags; the goal column is
// highlighted.
func BoardMarkup(s domain.Snapshot) string {
	var b strings.Builder
	for _, row := range Cells(s) {
		for x, r := range row {
			switch {
			case r == glyphHuman:
				b.WriteString("[green::b]H[-::-]")
			case r == glyphZombie:
				b.WriteString("[red::b]Z[-::-]")
			case x == s.Size-1:
				b.WriteString("[blue].[-]")
			default:
				b.WriteRune(r)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func StatsMarkup(s domain.Snapshot, st domain.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[green]Humans:[-]          %d / %d\n", s.Humans, st.InitialHumans)
	fmt.Fprintf(&b, "[red]Zombies:[-]         %d / %d\n", s.Zombies, st.InitialZombies)
	fmt.Fprintf(&b, "Escapes:         %d\n", st.Escapes)
	fmt.Fprintf(&b, "Transformations: %d\n", st.Transformations)
	fmt.Fprintf(&b, "Moves:           %d\n", st.TotalMoves())
	fmt.Fprintf(&b, "Collisions:      %d\n", st.Collisions)
	fmt.Fprintf(&b, "Elapsed:         %s\n", st.Elapsed.Round(100*time.Millisecond))
	if len(st.TopPositions) > 0 {
		b.WriteString("\nHot spots:\n")
		for i, pc := range st.TopPositions {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "  (%d,%d) x%d\n", pc.Pos.X, pc.Pos.Y, pc.Count)
		}
	}
	return b.String()
}
