// Package postgres implements the optional Postgres-backed variant of
// contextstore.Store, selected via storage.driver: postgres. Grounded on
// the teacher's internal/jobs/cockroach.go CockroachStore — same
// connection-pool tuning, same lib/pq driver, ported from the jobs
// domain to context messages.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	_ "github.com/lib/pq"

	"github.com/shannon-ai/shannon/internal/contextstore"
	"github.com/shannon-ai/shannon/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS context_messages (
	id             BIGSERIAL PRIMARY KEY,
	platform       TEXT NOT NULL,
	channel        TEXT NOT NULL,
	role           TEXT NOT NULL,
	content        TEXT NOT NULL,
	timestamp      BIGINT NOT NULL,
	token_estimate INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_context_messages_channel
	ON context_messages(platform, channel, id);
`

// PoolConfig mirrors the teacher's CockroachConfig connection-pool knobs.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPoolConfig returns the teacher's defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// ContextStore implements contextstore.Store against Postgres (or any
// wire-compatible database such as CockroachDB).
type ContextStore struct {
	db     *sql.DB
	logger *slog.Logger
	locker *contextstore.Locker
}

// Open connects to dsn, migrates the schema, and returns a ContextStore.
func Open(dsn string, cfg PoolConfig, logger *slog.Logger) (*ContextStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return &ContextStore{db: db, logger: logger, locker: contextstore.NewLocker()}, nil
}

func (s *ContextStore) Append(ctx context.Context, msg model.ContextMessage) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO context_messages (platform, channel, role, content, timestamp, token_estimate)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		msg.Platform, msg.Channel, string(msg.Role), msg.Content, msg.Timestamp, msg.TokenEstimate).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: append: %w", err)
	}
	return id, nil
}

func (s *ContextStore) Get(ctx context.Context, platform, channel string, limit int) ([]model.ContextMessage, error) {
	query := `SELECT id, platform, channel, role, content, timestamp, token_estimate
	          FROM context_messages WHERE platform = $1 AND channel = $2 ORDER BY id DESC`
	args := []any{platform, channel}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: get: %w", err)
	}
	defer rows.Close()

	var msgs []model.ContextMessage
	for rows.Next() {
		var m model.ContextMessage
		var role string
		if err := rows.Scan(&m.ID, &m.Platform, &m.Channel, &role, &m.Content, &m.Timestamp, &m.TokenEstimate); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		m.Role = model.Role(role)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return msgs, nil
}

func (s *ContextStore) Clear(ctx context.Context, platform, channel string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM context_messages WHERE platform = $1 AND channel = $2`, platform, channel)
	if err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

func (s *ContextStore) Stats(ctx context.Context, platform, channel string) (contextstore.Stats, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(token_estimate), 0), COALESCE(MIN(timestamp), 0), COALESCE(MAX(timestamp), 0)
		 FROM context_messages WHERE platform = $1 AND channel = $2`, platform, channel)
	st := contextstore.Stats{Platform: platform, Channel: channel}
	if err := row.Scan(&st.MessageCount, &st.TotalTokens, &st.OldestTimestamp, &st.NewestTimestamp); err != nil {
		return contextstore.Stats{}, fmt.Errorf("postgres: stats: %w", err)
	}
	return st, nil
}

// MaybeSummarize mirrors SQLiteStore.MaybeSummarize's logic exactly
// (same locker type, same trigger rules), against $N placeholders.
func (s *ContextStore) MaybeSummarize(ctx context.Context, platform, channel string, maxMessages int, summarizeThreshold float64, windowTokens int, summarizer contextstore.Summarizer) (bool, error) {
	if summarizer == nil {
		return false, nil
	}
	unlock := s.locker.Lock(platform + "\x00" + channel)
	defer unlock()

	st, err := s.Stats(ctx, platform, channel)
	if err != nil {
		return false, err
	}
	tokenTrigger := summarizeThreshold > 0 && windowTokens > 0 && float64(st.TotalTokens) > summarizeThreshold*float64(windowTokens)
	countTrigger := maxMessages > 0 && st.MessageCount > maxMessages
	if !tokenTrigger && !countTrigger {
		return false, nil
	}
	return s.collapse(ctx, platform, channel, summarizer)
}

// ForceSummarize bypasses MaybeSummarize's size thresholds entirely.
func (s *ContextStore) ForceSummarize(ctx context.Context, platform, channel string, summarizer contextstore.Summarizer) (bool, error) {
	if summarizer == nil {
		return false, nil
	}
	unlock := s.locker.Lock(platform + "\x00" + channel)
	defer unlock()
	return s.collapse(ctx, platform, channel, summarizer)
}

func (s *ContextStore) collapse(ctx context.Context, platform, channel string, summarizer contextstore.Summarizer) (bool, error) {
	all, err := s.Get(ctx, platform, channel, 0)
	if err != nil {
		return false, err
	}
	if len(all) == 0 {
		return false, contextstore.ErrChannelEmpty
	}

	var nonSystem []model.ContextMessage
	for _, m := range all {
		if m.Role != model.RoleSystem {
			nonSystem = append(nonSystem, m)
		}
	}
	if len(nonSystem) < 2 {
		return false, nil
	}
	cut := len(nonSystem) / 2
	toSummarize := nonSystem[:cut]

	summary, err := summarizer.Summarize(ctx, toSummarize)
	if err != nil {
		return false, fmt.Errorf("postgres: summarize: %w", err)
	}

	lastID := toSummarize[len(toSummarize)-1].ID
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM context_messages WHERE platform = $1 AND channel = $2 AND id <= $3 AND role != $4`,
		platform, channel, lastID, string(model.RoleSystem)); err != nil {
		return false, fmt.Errorf("postgres: delete summarized: %w", err)
	}
	// The summary takes over the id of the last collapsed row, so it sorts
	// before every message that was kept.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO context_messages (id, platform, channel, role, content, timestamp, token_estimate)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		lastID, platform, channel, string(model.RoleSystem), summary, toSummarize[len(toSummarize)-1].Timestamp, len(summary)/4); err != nil {
		return false, fmt.Errorf("postgres: insert summary: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("postgres: commit: %w", err)
	}

	s.logger.Info("context summarized", "platform", platform, "channel", channel, "messages_collapsed", len(toSummarize))
	return true, nil
}

func (s *ContextStore) Close() error { return s.db.Close() }
