package contextstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/shannon-ai/shannon/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS context_messages (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	platform       TEXT NOT NULL,
	channel        TEXT NOT NULL,
	role           TEXT NOT NULL,
	content        TEXT NOT NULL,
	timestamp      INTEGER NOT NULL,
	token_estimate INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_context_messages_channel
	ON context_messages(platform, channel, id);
`

// SQLiteStore is the default Store backend, matching the teacher's
// preference for an embedded, file-backed database with no external
// service dependency.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	locker *Locker
}

// OpenSQLite opens (creating if necessary) a WAL-mode SQLite database at
// path and ensures the schema exists.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("contextstore: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("contextstore: migrate: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: db, logger: logger, locker: NewLocker()}, nil
}

func channelKey(platform, channel string) string { return platform + "\x00" + channel }

func (s *SQLiteStore) Append(ctx context.Context, msg model.ContextMessage) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO context_messages (platform, channel, role, content, timestamp, token_estimate)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.Platform, msg.Channel, string(msg.Role), msg.Content, msg.Timestamp, msg.TokenEstimate)
	if err != nil {
		return 0, fmt.Errorf("contextstore: append: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) Get(ctx context.Context, platform, channel string, limit int) ([]model.ContextMessage, error) {
	query := `SELECT id, platform, channel, role, content, timestamp, token_estimate
	          FROM context_messages WHERE platform = ? AND channel = ? ORDER BY id DESC`
	args := []any{platform, channel}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("contextstore: get: %w", err)
	}
	defer rows.Close()

	var msgs []model.ContextMessage
	for rows.Next() {
		var m model.ContextMessage
		var role string
		if err := rows.Scan(&m.ID, &m.Platform, &m.Channel, &role, &m.Content, &m.Timestamp, &m.TokenEstimate); err != nil {
			return nil, fmt.Errorf("contextstore: scan: %w", err)
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

func (s *SQLiteStore) Clear(ctx context.Context, platform, channel string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM context_messages WHERE platform = ? AND channel = ?`, platform, channel)
	if err != nil {
		return fmt.Errorf("contextstore: clear: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context, platform, channel string) (Stats, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(token_estimate), 0), COALESCE(MIN(timestamp), 0), COALESCE(MAX(timestamp), 0)
		 FROM context_messages WHERE platform = ? AND channel = ?`, platform, channel)
	st := Stats{Platform: platform, Channel: channel}
	if err := row.Scan(&st.MessageCount, &st.TotalTokens, &st.OldestTimestamp, &st.NewestTimestamp); err != nil {
		return Stats{}, fmt.Errorf("contextstore: stats: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) MaybeSummarize(ctx context.Context, platform, channel string, maxMessages int, summarizeThreshold float64, windowTokens int, summarizer Summarizer) (bool, error) {
	if summarizer == nil {
		return false, nil
	}
	unlock := s.locker.Lock(channelKey(platform, channel))
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
func (s *SQLiteStore) ForceSummarize(ctx context.Context, platform, channel string, summarizer Summarizer) (bool, error) {
	if summarizer == nil {
		return false, nil
	}
	unlock := s.locker.Lock(channelKey(platform, channel))
	defer unlock()
	return s.collapse(ctx, platform, channel, summarizer)
}

func (s *SQLiteStore) collapse(ctx context.Context, platform, channel string, summarizer Summarizer) (bool, error) {
	all, err := s.Get(ctx, platform, channel, 0)
	if err != nil {
		return false, err
	}
	if len(all) == 0 {
		return false, ErrChannelEmpty
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
		return false, fmt.Errorf("contextstore: summarize: %w", err)
	}

	lastID := toSummarize[len(toSummarize)-1].ID
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("contextstore: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM context_messages WHERE platform = ? AND channel = ? AND id <= ? AND role != ?`,
		platform, channel, lastID, string(model.RoleSystem)); err != nil {
		return false, fmt.Errorf("contextstore: delete summarized: %w", err)
	}
	// The summary takes over the id of the last collapsed row, so it sorts
	// before every message that was kept.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO context_messages (id, platform, channel, role, content, timestamp, token_estimate)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lastID, platform, channel, string(model.RoleSystem), summary, toSummarize[len(toSummarize)-1].Timestamp, len(summary)/4); err != nil {
		return false, fmt.Errorf("contextstore: insert summary: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("contextstore: commit: %w", err)
	}

	s.logger.Info("context summarized", "platform", platform, "channel", channel, "messages_collapsed", len(toSummarize))
	return true, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
