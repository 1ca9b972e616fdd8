package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hooktail-systems/hooktail/internal/models"

	_ "modernc.org/sqlite"
)

// recordColumns is the flattened persisted layout: primary key id, then
// the nested core, payload and context groups as group-prefixed columns.
// Timestamps are stored as unix nanoseconds so range scans and ordering
// stay plain integer comparisons.
const recordColumns = `id, hook_type, timestamp, session_id, sequence,
	core_status, core_execution_time_ms,
	payload_prompt, payload_tool_name, payload_tool_input, payload_tool_response,
	payload_notification_type, payload_compact_reason, payload_message,
	context_platform, context_git_branch, context_git_status, context_cwd`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS hook_events (
	id TEXT PRIMARY KEY,
	hook_type TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	session_id TEXT NOT NULL,
	sequence INTEGER NOT NULL,
	core_status TEXT NOT NULL DEFAULT '',
	core_execution_time_ms INTEGER NOT NULL DEFAULT 0,
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

const sqliteUpsert = `
INSERT INTO hook_events (` + recordColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	hook_type = excluded.hook_type,
	timestamp = excluded.timestamp,
	session_id = excluded.session_id,
	sequence = excluded.sequence,
	core_status = excluded.core_status,
	core_execution_time_ms = excluded.core_execution_time_ms,
	payload_prompt = excluded.payload_prompt,
	payload_tool_name = excluded.payload_tool_name,
	payload_tool_input = excluded.payload_tool_input,
	payload_tool_response = excluded.payload_tool_response,
	payload_notification_type = excluded.payload_notification_type,
	payload_compact_reason = excluded.payload_compact_reason,
	payload_message = excluded.payload_message,
	context_platform = excluded.context_platform,
	context_git_branch = excluded.context_git_branch,
	context_git_status = excluded.context_git_status,
	context_cwd = excluded.context_cwd`

// SQLiteStore is the default Store backend: a single local database file
// that survives process restarts.
type SQLiteStore struct {
	path string
	conn *sql.DB
}

// OpenSQLite opens (creating if needed) a hooktail cache database at path.
// Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY between the ingest writer and concurrent readers.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to cache database: %w", err)
	}

	if _, err := conn.Exec(sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	return &SQLiteStore{path: path, conn: conn}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) Insert(ctx context.Context, rec models.EventRecord) error {
	_, err := s.conn.ExecContext(ctx, sqliteUpsert, sqliteArgs(rec)...)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) InsertBatch(ctx context.Context, recs []models.EventRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return fmt.Errorf("prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, sqliteArgs(rec)...); err != nil {
			return fmt.Errorf("insert event %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (models.EventRecord, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM hook_events WHERE id = ?", id)
	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EventRecord{}, ErrEventNotFound
	}
	return rec, err
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.conn.ExecContext(ctx, "DELETE FROM hook_events WHERE id = ?", id)
	return err
}

func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		"DELETE FROM hook_events WHERE timestamp < ?", cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) DeleteOldest(ctx context.Context, n int) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	res, err := s.conn.ExecContext(ctx, `
		DELETE FROM hook_events WHERE id IN (
			SELECT id FROM hook_events ORDER BY timestamp ASC, sequence ASC LIMIT ?
		)`, n)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, "DELETE FROM hook_events")
	return err
}

func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]models.EventRecord, error) {
	sqlStr, args := buildSQLiteQuery(q)

	rows, err := s.conn.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var recs []models.EventRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *SQLiteStore) CountAll(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM hook_events").Scan(&count)
	return count, err
}

func (s *SQLiteStore) AverageExecutionTime(ctx context.Context) (float64, error) {
	var avg float64
	err := s.conn.QueryRowContext(ctx,
		"SELECT COALESCE(AVG(core_execution_time_ms), 0) FROM hook_events").Scan(&avg)
	return avg, err
}

func (s *SQLiteStore) EventsPerHour(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-time.Hour).UnixNano()
	var count int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM hook_events WHERE timestamp >= ?", cutoff).Scan(&count)
	return count, err
}

func (s *SQLiteStore) SuccessRate(ctx context.Context) (float64, error) {
	var total, success int
	err := s.conn.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN core_status = ? THEN 1 ELSE 0 END), 0)
		FROM hook_events`, models.StatusSuccess).Scan(&total, &success)
	if err != nil || total == 0 {
		return 0, err
	}
	return float64(success) / float64(total) * 100, nil
}

func (s *SQLiteStore) MostActiveSession(ctx context.Context) (string, error) {
	var session string
	err := s.conn.QueryRowContext(ctx, `
		SELECT session_id FROM hook_events
		GROUP BY session_id ORDER BY COUNT(*) DESC, session_id LIMIT 1`).Scan(&session)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return session, err
}

func (s *SQLiteStore) TopToolNames(ctx context.Context, n int) ([]ToolCount, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT payload_tool_name, COUNT(*) AS uses FROM hook_events
		WHERE payload_tool_name != ''
		GROUP BY payload_tool_name ORDER BY uses DESC, payload_tool_name LIMIT ?`, n)
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

func buildSQLiteQuery(q Query) (string, []any) {
	var (
		where []string
		args  []any
	)

	if len(q.SessionIDs) > 0 {
		where = append(where, "session_id IN ("+placeholders(len(q.SessionIDs))+")")
		for _, id := range q.SessionIDs {
			args = append(args, id)
		}
	}
	if len(q.HookTypes) > 0 {
		where = append(where, "hook_type IN ("+placeholders(len(q.HookTypes))+")")
		for _, t := range q.HookTypes {
			args = append(args, t)
		}
	}
	if !q.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if !q.Until.IsZero() {
		where = append(where, "timestamp < ?")
		args = append(args, q.Until.UnixNano())
	}

	sqlStr := "SELECT " + recordColumns + " FROM hook_events"
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}
	sqlStr += " ORDER BY timestamp DESC, sequence DESC"
	if q.Limit > 0 {
		sqlStr += " LIMIT ?"
		args = append(args, q.Limit)
	}
	return sqlStr, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func sqliteArgs(rec models.EventRecord) []any {
	return []any{
		rec.ID, rec.HookType, rec.Timestamp.UnixNano(), rec.SessionID, rec.Sequence,
		rec.CoreStatus, rec.CoreExecutionTimeMS,
		rec.PayloadPrompt, rec.PayloadToolName, rec.PayloadToolInput, rec.PayloadToolResponse,
		rec.PayloadNotificationType, rec.PayloadCompactReason, rec.PayloadMessage,
		rec.ContextPlatform, rec.ContextGitBranch, rec.ContextGitStatus, rec.ContextCwd,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (models.EventRecord, error) {
	var (
		rec models.EventRecord
		ns  int64
	)
	err := row.Scan(
		&rec.ID, &rec.HookType, &ns, &rec.SessionID, &rec.Sequence,
		&rec.CoreStatus, &rec.CoreExecutionTimeMS,
		&rec.PayloadPrompt, &rec.PayloadToolName, &rec.PayloadToolInput, &rec.PayloadToolResponse,
		&rec.PayloadNotificationType, &rec.PayloadCompactReason, &rec.PayloadMessage,
		&rec.ContextPlatform, &rec.ContextGitBranch, &rec.ContextGitStatus, &rec.ContextCwd,
	)
	if err != nil {
		return models.EventRecord{}, err
	}
	rec.Timestamp = time.Unix(0, ns).UTC()
	return rec, nil
}
