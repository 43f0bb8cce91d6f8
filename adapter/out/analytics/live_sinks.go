package analytics

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"live_server/core/domain"
	"live_server/core/port/out"
)

var (
	_ out.EventSink = (*LogSink)(nil)
	_ out.EventSink = (*StreamSink)(nil)
	_ out.EventSink = (*SQLSink)(nil)
)

// =============================================================================
// LogSink
// =============================================================================

// LogSink writes each event as one structured log line.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "analytics").Logger()}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(_ context.Context, events []domain.Event) error {
	for i := range events {
		ev := &events[i]
		e := s.log.Debug()
		switch ev.Type {
		case domain.EventFailed:
			e = s.log.Warn()
		case domain.EventSessionStarted, domain.EventSessionEnded:
			e = s.log.Info()
		}
		e.Int64("event_id", ev.ID).
			Str("event_type", string(ev.Type)).
			Str("session_id", ev.SessionID).
			Str("comment_id", ev.CommentID).
			Str("tier", string(ev.Tier)).
			Str("reason", ev.Reason).
			Dur("latency", ev.Latency).
			Msg("engine event")
	}
	return nil
}

// =============================================================================
// StreamSink - Redis Streams
// =============================================================================

// StreamSink appends events to a capped Redis stream, one entry per event
// with the JSON payload under "data", the same shape the comment consumer
// reads.
type StreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamSink(client *redis.Client, stream string, maxLen int64) *StreamSink {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &StreamSink{client: client, stream: stream, maxLen: maxLen}
}

func (s *StreamSink) Name() string { return "redis_stream" }

func (s *StreamSink) Write(ctx context.Context, events []domain.Event) error {
	pipe := s.client.Pipeline()
	for i := range events {
		data, err := json.Marshal(&events[i])
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			MaxLen: s.maxLen,
			Approx: true,
			Values: map[string]any{"type": string(events[i].Type), "data": data},
		})
	}
	_, err := pipe.Exec(ctx)
	return err
}

// =============================================================================
// SQLSink - engine_events table
// =============================================================================

// Dialects supported by SQLSink. Postgres goes through pgx's database/sql
// driver, SQLite through modernc.org/sqlite.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS engine_events (
	id          BIGINT PRIMARY KEY,
	type        TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	comment_id  TEXT,
	user_id     TEXT,
	platform    TEXT,
	tier        TEXT,
	from_tier   TEXT,
	to_tier     TEXT,
	reason      TEXT,
	priority    DOUBLE PRECISION,
	latency_ms  BIGINT,
	badges      TEXT[],
	data        JSONB,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_engine_events_session ON engine_events (session_id, created_at);`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS engine_events (
	id          INTEGER PRIMARY KEY,
	type        TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	comment_id  TEXT,
	user_id     TEXT,
	platform    TEXT,
	tier        TEXT,
	from_tier   TEXT,
	to_tier     TEXT,
	reason      TEXT,
	priority    REAL,
	latency_ms  INTEGER,
	badges      TEXT,
	data        TEXT,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_engine_events_session ON engine_events (session_id, created_at);`

const insertEvent = `INSERT INTO engine_events
	(id, type, session_id, comment_id, user_id, platform, tier, from_tier, to_tier, reason, priority, latency_ms, badges, data, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// EventRow is one engine_events row.
type EventRow struct {
	ID        int64   `db:"id"`
	Type      string  `db:"type"`
	SessionID string  `db:"session_id"`
	CommentID string  `db:"comment_id"`
	UserID    string  `db:"user_id"`
	Platform  string  `db:"platform"`
	Tier      string  `db:"tier"`
	FromTier  string  `db:"from_tier"`
	ToTier    string  `db:"to_tier"`
	Reason    string  `db:"reason"`
	Priority  float64 `db:"priority"`
	LatencyMS int64   `db:"latency_ms"`
}

// SQLSink stores events in engine_events.
type SQLSink struct {
	db      *sqlx.DB
	dialect string
	insert  string
}

// NewSQLSink wraps db. The dialect picks placeholder style and column
// encodings.
func NewSQLSink(db *sqlx.DB, dialect string) *SQLSink {
	return &SQLSink{db: db, dialect: dialect, insert: db.Rebind(insertEvent)}
}

func (s *SQLSink) Name() string { return "sql" }

// Migrate creates the table when missing.
func (s *SQLSink) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.dialect == DialectSQLite {
		schema = sqliteSchema
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate engine_events: %w", err)
		}
	}
	return nil
}

func (s *SQLSink) Write(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range events {
		if _, err := tx.ExecContext(ctx, s.insert, s.args(&events[i])...); err != nil {
			return fmt.Errorf("insert event %d: %w", events[i].ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLSink) args(ev *domain.Event) []any {
	var data any
	if len(ev.Data) > 0 {
		b, _ := json.Marshal(ev.Data)
		data = string(b)
	}

	var badges any
	if raw, ok := ev.Data["badges"].([]string); ok {
		if s.dialect == DialectPostgres {
			badges = pq.StringArray(raw)
		} else {
			b, _ := json.Marshal(raw)
			badges = string(b)
		}
	}

	return []any{
		ev.ID, string(ev.Type), ev.SessionID, ev.CommentID, ev.UserID, string(ev.Platform),
		string(ev.Tier), string(ev.FromTier), string(ev.ToTier), ev.Reason, ev.Priority,
		ev.Latency.Milliseconds(), badges, data, ev.At.UTC(),
	}
}

// Recent returns the latest events of a session, newest first.
func (s *SQLSink) Recent(ctx context.Context, sessionID string, limit int) ([]EventRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query := s.db.Rebind(`SELECT id, type, session_id,
		COALESCE(comment_id, '') AS comment_id, COALESCE(user_id, '') AS user_id,
		COALESCE(platform, '') AS platform, COALESCE(tier, '') AS tier,
		COALESCE(from_tier, '') AS from_tier, COALESCE(to_tier, '') AS to_tier,
		COALESCE(reason, '') AS reason, COALESCE(priority, 0) AS priority,
		COALESCE(latency_ms, 0) AS latency_ms
		FROM engine_events WHERE session_id = ? ORDER BY id DESC LIMIT ?`)

	var rows []EventRow
	if err := s.db.SelectContext(ctx, &rows, query, sessionID, limit); err != nil {
		return nil, err
	}
	return rows, nil
}
