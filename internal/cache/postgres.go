package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hooktail-systems/hooktail/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS hook_events (
	id TEXT PRIMARY KEY,
	hook_type TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	session_id TEXT NOT NULL,
	sequence BIGINT NOT NULL,
	core_status TEXT NOT NULL DEFAULT '',
	core_execution_time_ms BIGINT NOT NULL DEFAULT 0,
	payload_prompt TEXT NOT NULL DEFAULT '',
	payload_tool_name TEXT NOT NULL DEFAULT '',
	payload_tool_input TEXT NOT NULL DEFAULT '',
	payload_tool_response TEXT NOT NULL DEFAULT '',
	payload_notification_type TEXT NOT NULL DEFAULT '',
	payload_compact_reason TEXT NOT NULL DEFAULT '',
	payload_message TEXT NOT NULL DEFAULT '',
	context_platform TEXT NOT NULL DEFAULT '',
	context_git_branch TEXT NOT NULL DEFAULT '',
	context_git_status TEXT NOT NULL DEFAULT '',
	context_cwd TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS hook_events_timestamp_idx ON hook_events (timestamp);
CREATE INDEX IF NOT EXISTS hook_events_session_idx ON hook_events (session_id);
CREATE INDEX IF NOT EXISTS hook_events_type_idx ON hook_events (hook_type);
`

const postgresUpsert = `
INSERT INTO hook_events (` + recordColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
ON CONFLICT (id) DO UPDATE SET
	hook_type = EXCLUDED.hook_type,
	timestamp = EXCLUDED.timestamp,
	session_id = EXCLUDED.session_id,
	sequence = EXCLUDED.sequence,
	core_status = EXCLUDED.core_status,
	core_execution_time_ms = EXCLUDED.core_execution_time_ms,
	payload_prompt = EXCLUDED.payload_prompt,
	payload_tool_name = EXCLUDED.payload_tool_name,
	payload_tool_input = EXCLUDED.payload_tool_input,
	payload_tool_response = EXCLUDED.payload_tool_response,
	payload_notification_type = EXCLUDED.payload_notification_type,
	payload_compact_reason = EXCLUDED.payload_compact_reason,
	payload_message = EXCLUDED.payload_message,
	context_platform = EXCLUDED.context_platform,
	context_git_branch = EXCLUDED.context_git_branch,
	context_git_status = EXCLUDED.context_git_status,
	context_cwd = EXCLUDED.context_cwd`

// PostgresStore backs the cache with a PostgreSQL database, for
// deployments where the cache should outlive the host machine.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to PostgreSQL and ensures the cache schema exists.
func OpenPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse cache database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping cache database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec models.EventRecord) error {
	_, err := s.pool.Exec(ctx, postgresUpsert, postgresArgs(rec)...)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PostgresStore) InsertBatch(ctx context.Context, recs []models.EventRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range recs {
		if _, err := tx.Exec(ctx, postgresUpsert, postgresArgs(rec)...); err != nil {
			return fmt.Errorf("insert event %s: %w", rec.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (models.EventRecord, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM hook_events WHERE id = $1", id)
	rec, err := scanPostgresRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.EventRecord{}, ErrEventNotFound
	}
	return rec, err
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM hook_events WHERE id = $1", id)
	return err
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM hook_events WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteOldest(ctx context.Context, n int) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM hook_events WHERE id IN (
			SELECT id FROM hook_events ORDER BY timestamp ASC, sequence ASC LIMIT $1
		)`, n)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM hook_events")
	return err
}

func (s *PostgresStore) Query(ctx context.Context, q Query) ([]models.EventRecord, error) {
	sqlStr, args := buildPostgresQuery(q)

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var recs []models.EventRecord
	for rows.Next() {
		rec, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *PostgresStore) CountAll(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM hook_events").Scan(&count)
	return count, err
}

func (s *PostgresStore) AverageExecutionTime(ctx context.Context) (float64, error) {
	var avg float64
	err := s.pool.QueryRow(ctx,
		"SELECT COALESCE(AVG(core_execution_time_ms), 0) FROM hook_events").Scan(&avg)
	return avg, err
}

func (s *PostgresStore) EventsPerHour(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM hook_events WHERE timestamp >= $1",
		time.Now().Add(-time.Hour)).Scan(&count)
	return count, err
}

func (s *PostgresStore) SuccessRate(ctx context.Context) (float64, error) {
	var total, success int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN core_status = $1 THEN 1 ELSE 0 END), 0)
		FROM hook_events`, models.StatusSuccess).Scan(&total, &success)
	if err != nil || total == 0 {
		return 0, err
	}
	return float64(success) / float64(total) * 100, nil
}

func (s *PostgresStore) MostActiveSession(ctx context.Context) (string, error) {
	var session string
	err := s.pool.QueryRow(ctx, `
		SELECT session_id FROM hook_events
		GROUP BY session_id ORDER BY COUNT(*) DESC, session_id LIMIT 1`).Scan(&session)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return session, err
}

func (s *PostgresStore) TopToolNames(ctx context.Context, n int) ([]ToolCount, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT payload_tool_name, COUNT(*) AS uses FROM hook_events
		WHERE payload_tool_name != ''
		GROUP BY payload_tool_name ORDER BY uses DESC, payload_tool_name LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tools []ToolCount
	for rows.Next() {
		var tc ToolCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, err
		}
		tools = append(tools, tc)
	}
	return tools, rows.Err()
}

func buildPostgresQuery(q Query) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if len(q.SessionIDs) > 0 {
		where = append(where, "session_id = ANY("+arg(q.SessionIDs)+")")
	}
	if len(q.HookTypes) > 0 {
		where = append(where, "hook_type = ANY("+arg(q.HookTypes)+")")
	}
	if !q.Since.IsZero() {
		where = append(where, "timestamp >= "+arg(q.Since))
	}
	if !q.Until.IsZero() {
		where = append(where, "timestamp < "+arg(q.Until))
	}

	sqlStr := "SELECT " + recordColumns + " FROM hook_events"
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}
	sqlStr += " ORDER BY timestamp DESC, sequence DESC"
	if q.Limit > 0 {
		sqlStr += " LIMIT " + arg(q.Limit)
	}
	return sqlStr, args
}

func postgresArgs(rec models.EventRecord) []any {
	return []any{
		rec.ID, rec.HookType, rec.Timestamp, rec.SessionID, rec.Sequence,
		rec.CoreStatus, rec.CoreExecutionTimeMS,
		rec.PayloadPrompt, rec.PayloadToolName, rec.PayloadToolInput, rec.PayloadToolResponse,
		rec.PayloadNotificationType, rec.PayloadCompactReason, rec.PayloadMessage,
		rec.ContextPlatform, rec.ContextGitBranch, rec.ContextGitStatus, rec.ContextCwd,
	}
}

func scanPostgresRecord(row pgx.Row) (models.EventRecord, error) {
	var rec models.EventRecord
	err := row.Scan(
		&rec.ID, &rec.HookType, &rec.Timestamp, &rec.SessionID, &rec.Sequence,
		&rec.CoreStatus, &rec.CoreExecutionTimeMS,
		&rec.PayloadPrompt, &rec.PayloadToolName, &rec.PayloadToolInput, &rec.PayloadToolResponse,
		&rec.PayloadNotificationType, &rec.PayloadCompactReason, &rec.PayloadMessage,
		&rec.ContextPlatform, &rec.ContextGitBranch, &rec.ContextGitStatus, &rec.ContextCwd,
	)
	if err != nil {
		return models.EventRecord{}, err
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, nil
}
