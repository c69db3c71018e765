package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dyike/CortexAgents/models"
)

const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	// pragmas go in the DSN so every pooled connection gets them
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=3000&_synchronous=NORMAL&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    trade_date TEXT NOT NULL,
    status TEXT NOT NULL,
    stage TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    failed_stage TEXT NOT NULL DEFAULT '',
    action TEXT NOT NULL DEFAULT '',
    confidence REAL NOT NULL DEFAULT 0,
    state TEXT,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    stage TEXT NOT NULL,
    agent TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    seq INTEGER NOT NULL,
    degraded INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    UNIQUE(session_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_messages_session_seq ON messages(session_id, seq);

CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    agent TEXT NOT NULL DEFAULT '',
    situation TEXT NOT NULL,
    lesson TEXT NOT NULL,
    outcome TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL
);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return addColumn(db, "memories", "agent", "TEXT NOT NULL DEFAULT ''")
}

// addColumn upgrades databases created before the column existed.
func addColumn(db *sql.DB, table, column, decl string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("inspect %s: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)); err != nil {
		return fmt.Errorf("add %s.%s: %w", table, column, err)
	}
	return nil
}

func (s *Store) CreateSession(ctx context.Context, rec models.SessionRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if rec.Status == "" {
		rec.Status = StatusRunning
	}
	now := s.now()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions (id, symbol, trade_date, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    symbol=excluded.symbol,
    trade_date=excluded.trade_date,
    status=excluded.status,
    updated_at=excluded.updated_at
`, rec.ID, rec.Symbol, rec.TradeDate, rec.Status, now, now)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) UpdateStage(ctx context.Context, sessionID, stage string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE sessions SET stage = ?, updated_at = ? WHERE id = ?
`, stage, s.now(), sessionID)
	if err != nil {
		return fmt.Errorf("update session stage: %w", err)
	}
	return nil
}

// FinishSession records the final status and the session snapshot.
func (s *Store) FinishSession(ctx context.Context, rec models.SessionRecord, state *models.Session) error {
	var snapshot []byte
	if state != nil {
		var err error
		if snapshot, err = json.Marshal(state); err != nil {
			return fmt.Errorf("encode session state: %w", err)
		}
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE sessions
SET status = ?,
    stage = CASE WHEN ? <> '' THEN ? ELSE stage END,
    error = ?,
    failed_stage = ?,
    action = ?,
    confidence = ?,
    state = COALESCE(?, state),
    updated_at = ?
WHERE id = ?
`, rec.Status, rec.Stage, rec.Stage, rec.Error, rec.FailedAt, rec.Action, rec.Confidence, nullable(snapshot), s.now(), rec.ID)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("finish session %s: %w", rec.ID, ErrNotFound)
	}
	return nil
}

func nullable(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

const sessionColumns = `rowid, id, symbol, trade_date, status, stage, error, failed_stage, action, confidence, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (models.SessionRecord, error) {
	var rec models.SessionRecord
	err := row.Scan(&rec.RowID, &rec.ID, &rec.Symbol, &rec.TradeDate, &rec.Status, &rec.Stage,
		&rec.Error, &rec.FailedAt, &rec.Action, &rec.Confidence, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

// ListSessions pages sessions newest first. cursor is the rowid of the last
// session of the previous page, zero for the first page.
func (s *Store) ListSessions(ctx context.Context, cursor int64, limit int) ([]models.SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+sessionColumns+`
FROM sessions
WHERE (? = 0 OR rowid < ?)
ORDER BY rowid DESC
LIMIT ?
`, cursor, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions rows: %w", err)
	}
	return sessions, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT `+sessionColumns+`
FROM sessions
WHERE id = ?
LIMIT 1
`, sessionID)

	rec, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &rec, nil
}

// LoadState decodes the snapshot written by FinishSession.
func (s *Store) LoadState(ctx context.Context, sessionID string) (*models.Session, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT state FROM sessions WHERE id = ?`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !raw.Valid) {
		return nil, fmt.Errorf("session state %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session state: %w", err)
	}

	var state models.Session
	if err := json.Unmarshal([]byte(raw.String), &state); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	return &state, nil
}

func (s *Store) InsertMessage(ctx context.Context, msg models.MessageRecord) error {
	if msg.Seq <= 0 {
		return fmt.Errorf("message seq must be positive")
	}
	if strings.TrimSpace(msg.Role) == "" {
		return fmt.Errorf("message role is required")
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO messages (id, session_id, stage, agent, role, content, seq, degraded, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING
`, msg.ID, msg.SessionID, msg.Stage, msg.Agent, msg.Role, msg.Content, msg.Seq, msg.Degraded, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// LastMessageSeq returns the highest message seq of a session, 0 when it has none.
func (s *Store) LastMessageSeq(ctx context.Context, sessionID string) (int, error) {
	var seq int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM messages WHERE session_id = ?`, sessionID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last message seq: %w", err)
	}
	return seq, nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]models.MessageRecord, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, stage, agent, role, content, seq, degraded, created_at
FROM messages
WHERE session_id = ?
ORDER BY seq ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.MessageRecord
	for rows.Next() {
		var rec models.MessageRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Stage, &rec.Agent, &rec.Role, &rec.Content, &rec.Seq, &rec.Degraded, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages rows: %w", err)
	}
	return msgs, nil
}

// InsertMemory appends one experience record. Records are never updated and
// embeddings are not stored.
func (s *Store) InsertMemory(ctx context.Context, rec models.MemoryRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO memories (id, agent, situation, lesson, outcome, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, rec.ID, rec.Agent, rec.Situation, rec.Lesson, rec.Outcome, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// ListMemories returns every record oldest first.
func (s *Store) ListMemories(ctx context.Context) ([]models.MemoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, agent, situation, lesson, outcome, created_at
FROM memories
ORDER BY rowid ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var out []models.MemoryRecord
	for rows.Next() {
		var rec models.MemoryRecord
		if err := rows.Scan(&rec.ID, &rec.Agent, &rec.Situation, &rec.Lesson, &rec.Outcome, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list memories rows: %w", err)
	}
	return out, nil
}
