package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go)

	"shareai/chatrelay/pkg/agent"
)

const taskSchema = `
CREATE TABLE IF NOT EXISTS chat_tasks (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	request      TEXT NOT NULL,
	callback_url TEXT,
	content      TEXT NOT NULL DEFAULT '',
	error        TEXT,
	retry_info   TEXT,
	created_at   INTEGER NOT NULL,
	completed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_chat_tasks_finished ON chat_tasks(status, completed_at);
`

// SQLiteConfig configures a SQLiteStore.
type SQLiteConfig struct {
	// Path is the database file path, or ":memory:".
	Path string

	// Driver is "sqlite" (modernc.org/sqlite) or "sqlite3" (mattn/go-sqlite3).
	// Default: "sqlite"
	Driver string

	// WALMode enables write-ahead logging.
	WALMode bool

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config SQLiteConfig
	logger *slog.Logger

	saveStmt    *sql.Stmt
	getStmt     *sql.Stmt
	cleanupStmt *sql.Stmt
}

// NewSQLiteStore opens (creating if needed) the database at cfg.Path and
// initializes the schema.
func NewSQLiteStore(cfg SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if cfg.Driver != "sqlite" && cfg.Driver != "sqlite3" {
		return nil, fmt.Errorf("unsupported sqlite driver %q", cfg.Driver)
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tasks.sqlite")

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite has a single writer, and pragmas and
	// ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db, config: cfg, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("task store initialized",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"wal_mode", cfg.WALMode,
	)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(taskSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return s.prepareStatements()
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.saveStmt, err = s.db.Prepare(`
		INSERT INTO chat_tasks (id, status, request, callback_url, content, error, retry_info, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			content = excluded.content,
			error = excluded.error,
			retry_info = excluded.retry_info,
			completed_at = excluded.completed_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare save statement: %w", err)
	}

	s.getStmt, err = s.db.Prepare(`
		SELECT id, status, request, callback_url, content, error, retry_info, created_at, completed_at
		FROM chat_tasks
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.cleanupStmt, err = s.db.Prepare(`
		DELETE FROM chat_tasks
		WHERE status != ? AND completed_at IS NOT NULL AND completed_at < ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}
	return nil
}

// Save persists t, replacing the mutable columns of an existing record.
func (s *SQLiteStore) Save(ctx context.Context, t *Task) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("task id cannot be empty")
	}

	request, err := json.Marshal(t.Request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var retryInfo, errText, callbackURL, completedAt any
	if t.Retry != nil {
		b, err := json.Marshal(t.Retry)
		if err != nil {
			return fmt.Errorf("failed to marshal retry info: %w", err)
		}
		retryInfo = string(b)
	}
	if t.Error != "" {
		errText = t.Error
	}
	if t.CallbackURL != "" {
		callbackURL = t.CallbackURL
	}
	if t.CompletedAt != nil {
		completedAt = t.CompletedAt.UnixNano()
	}

	_, err = s.saveStmt.ExecContext(ctx,
		t.ID, string(t.Status), string(request), callbackURL,
		t.Content, errText, retryInfo,
		t.CreatedAt.UnixNano(), completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save task %s: %w", t.ID, err)
	}
	return nil
}

// Get loads the task with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Task, error) {
	var (
		t           Task
		status      string
		request     string
		callbackURL sql.NullString
		errText     sql.NullString
		retryInfo   sql.NullString
		createdAt   int64
		completedAt sql.NullInt64
	)

	err := s.getStmt.QueryRowContext(ctx, id).Scan(
		&t.ID, &status, &request, &callbackURL, &t.Content, &errText, &retryInfo, &createdAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}

	t.Status = Status(status)
	t.CallbackURL = callbackURL.String
	t.Error = errText.String
	t.CreatedAt = time.Unix(0, createdAt).UTC()
	if completedAt.Valid {
		at := time.Unix(0, completedAt.Int64).UTC()
		t.CompletedAt = &at
	}
	if err := json.Unmarshal([]byte(request), &t.Request); err != nil {
		return nil, fmt.Errorf("failed to decode request of task %s: %w", id, err)
	}
	if retryInfo.Valid {
		var outcome agent.RetryOutcome
		if err := json.Unmarshal([]byte(retryInfo.String), &outcome); err != nil {
			return nil, fmt.Errorf("failed to decode retry info of task %s: %w", id, err)
		}
		t.Retry = &outcome
	}
	return &t, nil
}

// DeleteFinishedBefore removes finished tasks completed before cutoff.
func (s *SQLiteStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.cleanupStmt.ExecContext(ctx, string(StatusProcessing), cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete finished tasks: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the prepared statements and the database.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.saveStmt, s.getStmt, s.cleanupStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}
