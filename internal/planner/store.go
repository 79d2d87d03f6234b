package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shannon-ai/shannon/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS plans (
	id         TEXT PRIMARY KEY,
	goal       TEXT NOT NULL,
	steps_json TEXT NOT NULL,
	status     TEXT NOT NULL,
	channel    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Store persists Plan rows, steps serialized as a JSON blob inside the
// row (spec §4.11's persistence requirement).
type Store struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) a WAL-mode SQLite database at
// path and ensures the schema exists.
func OpenSQLite(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("planner: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("planner: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Upsert writes p, serializing its steps. Called on every state change.
func (s *Store) Upsert(ctx context.Context, p model.Plan) error {
	stepsJSON, err := json.Marshal(p.Steps)
	if err != nil {
		return fmt.Errorf("planner: marshal steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (id, goal, steps_json, status, channel, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			goal = excluded.goal,
			steps_json = excluded.steps_json,
			status = excluded.status,
			channel = excluded.channel,
			updated_at = excluded.updated_at`,
		p.ID, p.Goal, string(stepsJSON), string(p.Status), p.Channel, p.CreatedAt.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("planner: upsert: %w", err)
	}
	return nil
}

// Get returns the plan at id, or ok=false if absent.
func (s *Store) Get(ctx context.Context, id string) (model.Plan, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, goal, steps_json, status, channel, created_at, updated_at FROM plans WHERE id = ?`, id)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return model.Plan{}, false, nil
	}
	if err != nil {
		return model.Plan{}, false, fmt.Errorf("planner: get: %w", err)
	}
	return p, true, nil
}

// List returns every persisted plan, most recently updated first.
func (s *Store) List(ctx context.Context) ([]model.Plan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, goal, steps_json, status, channel, created_at, updated_at FROM plans ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("planner: list: %w", err)
	}
	defer rows.Close()
	var plans []model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func scanPlan(row interface{ Scan(dest ...any) error }) (model.Plan, error) {
	var (
		p          model.Plan
		stepsJSON  string
		status     string
		createdAt  int64
		updatedAt  int64
	)
	if err := row.Scan(&p.ID, &p.Goal, &stepsJSON, &status, &p.Channel, &createdAt, &updatedAt); err != nil {
		return model.Plan{}, err
	}
	p.Status = model.PlanStatus(status)
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if err := json.Unmarshal([]byte(stepsJSON), &p.Steps); err != nil {
		return model.Plan{}, fmt.Errorf("planner: unmarshal steps: %w", err)
	}
	return p, nil
}

func (s *Store) Close() error { return s.db.Close() }
