package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"outbreak/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	board_size INTEGER NOT NULL,
	humans INTEGER NOT NULL,
	zombies INTEGER NOT NULL,
	strategy TEXT NOT NULL,
	winner TEXT NOT NULL DEFAULT '',
	stats TEXT NOT NULL DEFAULT '{}',
	started_at INTEGER NOT NULL,
	ended_at INTEGER NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS run_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	kind TEXT NOT NULL,
	message TEXT NOT NULL,
	agent_id INTEGER NULL,
	agent_kind TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	UNIQUE(run_id, seq),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id, seq);
`

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *Store) CreateRun(ctx context.Context, run domain.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs(id, board_size, humans, zombies, strategy, winner, stats, started_at, ended_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.BoardSize, run.Humans, run.Zombies, string(run.Strategy), string(run.Winner),
		jsonOrEmpty(run.Stats), run.StartedAt.UnixMilli(), nullableUnixMilli(run.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, runID string, winner domain.Winner, stats []byte, endedAt time.Time) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET winner = ?, stats = ?, ended_at = ? WHERE id = ?`,
		string(winner), jsonOrEmpty(stats), endedAt.UTC().UnixMilli(), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: run %s not found", runID)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (domain.Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, board_size, humans, zombies, strategy, winner, stats, started_at, ended_at
		FROM runs WHERE id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if err != nil {
		return domain.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, board_size, humans, zombies, strategy, winner, stats, started_at, ended_at
		FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return result, nil
}

// AppendEvents writes a batch of events in one transaction. Events already
// stored for the same run and sequence number are ignored.
func (s *Store) AppendEvents(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append events: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(
		ctx,
		`INSERT OR IGNORE INTO run_events(run_id, seq, kind, message, agent_id, agent_kind, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare append events: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		var agentID any
		if ev.AgentID > 0 {
			agentID = ev.AgentID
		}
		if _, err := stmt.ExecContext(
			ctx,
			ev.RunID, int64(ev.Seq), string(ev.Kind), ev.Message, agentID, ev.AgentKind, ev.At.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("append event seq=%d: %w", ev.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append events: %w", err)
	}
	return nil
}

func (s *Store) ListRunEvents(ctx context.Context, runID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT run_id, seq, kind, message, agent_id, agent_kind, created_at
		FROM run_events
		WHERE run_id = ?
		ORDER BY seq ASC
		LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list run events: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Event, 0)
	for rows.Next() {
		var ev domain.Event
		var seq int64
		var kind string
		var agentID sql.NullInt64
		var createdAt int64
		if err := rows.Scan(&ev.RunID, &seq, &kind, &ev.Message, &agentID, &ev.AgentKind, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		ev.Seq = uint64(seq)
		ev.Kind = domain.EventKind(kind)
		if agentID.Valid {
			ev.AgentID = int(agentID.Int64)
		}
		ev.At = unixMilliToTime(createdAt)
		result = append(result, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run events: %w", err)
	}
	return result, nil
}

func (s *Store) CountRunEvents(ctx context.Context, runID string, kind domain.EventKind) (int, error) {
	query := `SELECT COUNT(1) FROM run_events WHERE run_id = ?`
	args := []any{runID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count run events: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (domain.Run, error) {
	var run domain.Run
	var strategy, winner, stats string
	var started int64
	var ended sql.NullInt64
	if err := row.Scan(
		&run.ID, &run.BoardSize, &run.Humans, &run.Zombies, &strategy, &winner, &stats, &started, &ended,
	); err != nil {
		return domain.Run{}, err
	}
	run.Strategy = domain.Strategy(strategy)
	run.Winner = domain.Winner(winner)
	run.Stats = []byte(stats)
	run.StartedAt = unixMilliToTime(started)
	run.EndedAt = int64ToTimePtr(ended)
	return run, nil
}

func int64ToTimePtr(v sql.NullInt64) *time.Time {
	if !v.Valid || v.Int64 <= 0 {
		return nil
	}
	t := unixMilliToTime(v.Int64)
	return &t
}

func unixMilliToTime(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullableUnixMilli(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}

func jsonOrEmpty(raw []byte) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
