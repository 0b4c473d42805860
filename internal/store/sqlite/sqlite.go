package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/parley-chat/parley-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	author     TEXT NOT NULL,
	is_admin   BOOLEAN NOT NULL DEFAULT 0,
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS bans (
	user_id    TEXT PRIMARY KEY,
	username   TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS feature_requests (
	id         TEXT PRIMARY KEY,
	author_id  TEXT NOT NULL,
	author     TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

// SQLiteStore implements store.Store for SQLite. The default deployment
// uses an in-memory database, so session state lives and dies with the
// process; a file path can be passed for local debugging.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dsn is the path to the SQLite database file, or ":memory:".
func New(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; one connection also
	// keeps an in-memory database from vanishing between queries.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function after
// the schema is applied. Useful for tests to seed data.
func NewWithSetup(dsn string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	s, err := New(dsn)
	if err != nil {
		return nil, err
	}

	if setup != nil {
		if err := setup(s.db); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== MessageStore implementation ====

// AppendMessage inserts a chat message and returns its row id.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg store.Message) (int64, error) {
	query := `
		INSERT INTO messages (author, is_admin, body, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.Author, msg.AuthorIsAdmin, msg.Body, msg.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	return id, nil
}

// ListMessages returns the full history ordered oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context) ([]store.Message, error) {
	query := `
		SELECT id, author, is_admin, body, created_at
		FROM messages
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]store.Message, 0)
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.Author, &m.AuthorIsAdmin, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// ClearMessages truncates the chat history.
func (s *SQLiteStore) ClearMessages(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}

// ==== BanStore implementation ====

// AddBan records a banned identity.
func (s *SQLiteStore) AddBan(ctx context.Context, rec store.BanRecord) error {
	query := `
		INSERT INTO bans (user_id, username, created_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, rec.UserID, rec.Username, rec.CreatedAt); err != nil {
		return fmt.Errorf("insert ban: %w", err)
	}
	return nil
}

// RemoveBan deletes a ban by user id and reports whether it existed.
func (s *SQLiteStore) RemoveBan(ctx context.Context, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bans WHERE user_id = ?`, userID)
	if err != nil {
		return false, fmt.Errorf("delete ban: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected > 0, nil
}

// IsBannedName reports whether a username has an active ban.
// The match is case-sensitive, same as roster name uniqueness.
func (s *SQLiteStore) IsBannedName(ctx context.Context, username string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM bans WHERE username = ? COLLATE BINARY`
	if err := s.db.QueryRowContext(ctx, query, username).Scan(&count); err != nil {
		return false, fmt.Errorf("query ban: %w", err)
	}
	return count > 0, nil
}

// ListBans returns all ban records, oldest first.
func (s *SQLiteStore) ListBans(ctx context.Context) ([]store.BanRecord, error) {
	query := `
		SELECT user_id, username, created_at
		FROM bans
		ORDER BY created_at ASC, user_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query bans: %w", err)
	}
	defer rows.Close()

	bans := make([]store.BanRecord, 0)
	for rows.Next() {
		var b store.BanRecord
		if err := rows.Scan(&b.UserID, &b.Username, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ban: %w", err)
		}
		bans = append(bans, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bans: %w", err)
	}

	return bans, nil
}

// ==== FeatureStore implementation ====

// AddFeatureRequest inserts a feature request.
func (s *SQLiteStore) AddFeatureRequest(ctx context.Context, req store.FeatureRequest) error {
	query := `
		INSERT INTO feature_requests (id, author_id, author, body, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, req.ID, req.AuthorID, req.Author, req.Body, req.CreatedAt); err != nil {
		return fmt.Errorf("insert feature request: %w", err)
	}
	return nil
}

// DeleteFeatureRequest deletes by id and reports whether it existed.
func (s *SQLiteStore) DeleteFeatureRequest(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM feature_requests WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete feature request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected > 0, nil
}

// ListFeatureRequests returns the queue ordered oldest first.
func (s *SQLiteStore) ListFeatureRequests(ctx context.Context) ([]store.FeatureRequest, error) {
	query := `
		SELECT id, author_id, author, body, created_at
		FROM feature_requests
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query feature requests: %w", err)
	}
	defer rows.Close()

	requests := make([]store.FeatureRequest, 0)
	for rows.Next() {
		var r store.FeatureRequest
		if err := rows.Scan(&r.ID, &r.AuthorID, &r.Author, &r.Body, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feature request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature requests: %w", err)
	}

	return requests, nil
}
