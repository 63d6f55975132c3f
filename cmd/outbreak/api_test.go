package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"outbreak/internal/board"
	"outbreak/internal/config"
	"outbreak/internal/domain"
	sqlitestore "outbreak/internal/store/sqlite"
)

func newTestAPI(t *testing.T) (*api, *board.Board) {
	t.Helper()
	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate store: %v", err)
	}

	b := board.New(board.Config{RunID: "run-1", Size: 10, PositionWait: 100 * time.Millisecond}, nil, nil, nil)
	if _, err := b.Spawn(domain.KindHuman, domain.Point{X: 0, Y: 0}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	b.Begin()

	ctx := context.Background()
	if err := store.CreateRun(ctx, domain.Run{ID: "run-1", BoardSize: 10, Humans: 1, Strategy: domain.StrategyRandom}); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := store.AppendEvents(ctx, []domain.Event{
		{RunID: "run-1", Seq: 1, Kind: domain.EventGameStart, Message: "Game started", At: time.Now()},
	}); err != nil {
		t.Fatalf("append events: %v", err)
	}

	return &api{cfg: config.Default(), runID: "run-1", board: b, store: store}, b
}

func getJSON(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rec.Code
}

func TestSnapshotAndStatsEndpoints(t *testing.T) {
	a, _ := newTestAPI(t)
	h := a.routes()

	var snap domain.Snapshot
	if code := getJSON(t, h, "/snapshot", &snap); code != http.StatusOK {
		t.Fatalf("snapshot status=%d", code)
	}
	if snap.Size != 10 || snap.Humans != 1 || len(snap.Agents) != 1 {
		t.Fatalf("snapshot=%+v", snap)
	}

	var st domain.Stats
	if code := getJSON(t, h, "/stats", &st); code != http.StatusOK {
		t.Fatalf("stats status=%d", code)
	}
	if st.InitialHumans != 1 {
		t.Fatalf("initial humans=%d want=1", st.InitialHumans)
	}
}

func TestRunEndpoints(t *testing.T) {
	a, _ := newTestAPI(t)
	h := a.routes()

	var runs []domain.Run
	if code := getJSON(t, h, "/runs", &runs); code != http.StatusOK {
		t.Fatalf("runs status=%d", code)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" {
		t.Fatalf("runs=%+v", runs)
	}

	var events []domain.Event
	if code := getJSON(t, h, "/runs/run-1/events", &events); code != http.StatusOK {
		t.Fatalf("events status=%d", code)
	}
	if len(events) != 1 || events[0].Kind != domain.EventGameStart {
		t.Fatalf("events=%+v", events)
	}

	if code := getJSON(t, h, "/runs/missing", nil); code != http.StatusNotFound {
		t.Fatalf("missing run status=%d want=%d", code, http.StatusNotFound)
	}
	if code := getJSON(t, h, "/runs/run-1/unknown", nil); code != http.StatusNotFound {
		t.Fatalf("unknown resource status=%d", code)
	}
}

func TestRunsDisabledWithoutStore(t *testing.T) {
	a, _ := newTestAPI(t)
	a.store = nil
	if code := getJSON(t, a.routes(), "/runs", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want=%d", code, http.StatusServiceUnavailable)
	}
}

func TestApplyOverridesOnlyTouchesSetFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var o config.Config
	fs.IntVar(&o.Simulation.BoardSize, "size", 0, "")
	fs.IntVar(&o.Simulation.Zombies, "zombies", 0, "")
	fs.StringVar(&o.Output.DBPath, "db", "", "")
	if err := fs.Parse([]string{"-zombies", "0", "-db", ""}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg := config.Default()
	applyOverrides(fs, &cfg, o)
	if cfg.Simulation.BoardSize != 50 {
		t.Fatalf("board size=%d want default 50", cfg.Simulation.BoardSize)
	}
	if cfg.Simulation.Zombies != 0 {
		t.Fatalf("zombies=%d want=0", cfg.Simulation.Zombies)
	}
	if cfg.Output.DBPath != "" {
		t.Fatalf("db path=%q want empty", cfg.Output.DBPath)
	}
}
