package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteName is the database filename below the storage root
const SQLiteName = "chats.db"

// ErrClosed is returned when the database connection is gone
var ErrClosed = errors.New("database is closed")

// SQLiteStore keeps the collection in a SQLite database, replaced wholesale on every save
type SQLiteStore struct {
	path string

	mu   sync.Mutex
	conn *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	s := &SQLiteStore{path: path}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) open() error {
	conn, err := sql.Open("sqlite3", s.path+"?_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := migrate(conn); err != nil {
		conn.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	s.conn = conn
	return nil
}

func migrate(conn *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			name TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			type TEXT NOT NULL,
			text TEXT,
			image_path TEXT,
			timestamp TEXT NOT NULL,
			FOREIGN KEY(chat_id) REFERENCES chats(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_chat_position ON messages(chat_id, position)`,
	}

	for _, migration := range migrations {
		if _, err := conn.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, migration)
		}
	}
	return nil
}

// Location returns the database path
func (s *SQLiteStore) Location() string {
	return s.path
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// SaveAll replaces every row in one transaction
func (s *SQLiteStore) SaveAll(ctx context.Context, chats []*Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return opError(ErrEncoding, s.path, ErrClosed)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return opError(ErrEncoding, s.path, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages"); err != nil {
		return opError(ErrEncoding, s.path, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chats"); err != nil {
		return opError(ErrEncoding, s.path, err)
	}

	chatStmt, err := tx.PrepareContext(ctx, "INSERT INTO chats (id, position, name) VALUES (?, ?, ?)")
	if err != nil {
		return opError(ErrEncoding, s.path, err)
	}
	defer chatStmt.Close()

	msgStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO messages (id, chat_id, position, type, text, image_path, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return opError(ErrEncoding, s.path, err)
	}
	defer msgStmt.Close()

	for i, c := range chats {
		if c == nil {
			return opError(ErrEncoding, s.path, fmt.Errorf("nil chat in collection"))
		}
		if _, err := chatStmt.ExecContext(ctx, c.ID, i, c.Name); err != nil {
			return opError(ErrEncoding, s.path, fmt.Errorf("failed to insert chat %s: %w", c.ID, err))
		}
		for j, m := range c.Messages {
			_, err := msgStmt.ExecContext(ctx,
				m.ID, c.ID, j, string(m.Type),
				nullable(m.Text), nullable(m.ImagePath),
				m.Timestamp.UTC().Format(time.RFC3339Nano),
			)
			if err != nil {
				return opError(ErrEncoding, s.path, fmt.Errorf("failed to insert message %s: %w", m.ID, err))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return opError(ErrEncoding, s.path, err)
	}
	return nil
}

// LoadAll reads every chat with its messages in stored order
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, ErrClosed
	}

	// query and scan failures are I/O errors; only bad contents are ErrDecoding
	rows, err := s.conn.QueryContext(ctx, "SELECT id, name FROM chats ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	chats := []*Chat{}
	byID := make(map[string]*Chat)
	for rows.Next() {
		c := &Chat{Messages: []Message{}}
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, c)
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read chats: %w", err)
	}
	rows.Close()

	rows, err = s.conn.QueryContext(ctx,
		"SELECT id, chat_id, type, text, image_path, timestamp FROM messages ORDER BY chat_id, position ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m         Message
			chatID    string
			msgType   string
			text      sql.NullString
			imagePath sql.NullString
			stamp     string
		)
		if err := rows.Scan(&m.ID, &chatID, &msgType, &text, &imagePath, &stamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, stamp)
		if err != nil {
			return nil, opError(ErrDecoding, s.path, fmt.Errorf("message %s: bad timestamp: %w", m.ID, err))
		}
		m.Type = MessageType(msgType)
		m.Timestamp = ts
		if text.Valid {
			m.Text = &text.String
		}
		if imagePath.Valid {
			m.ImagePath = &imagePath.String
		}

		c, ok := byID[chatID]
		if !ok {
			return nil, opError(ErrDecoding, s.path, fmt.Errorf("message %s belongs to unknown chat %s", m.ID, chatID))
		}
		c.Messages = append(c.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	if err := validateChats(chats); err != nil {
		return nil, opError(ErrDecoding, s.path, err)
	}
	return chats, nil
}

// Quarantine moves the database file aside and starts a fresh one
func (s *SQLiteStore) Quarantine() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	target := quarantinePath(s.path, time.Now())
	if err := os.Rename(s.path, target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		if reopenErr := s.open(); reopenErr != nil {
			return "", errors.Join(err, reopenErr)
		}
		return "", fmt.Errorf("failed to move database aside: %w", err)
	}
	if err := s.open(); err != nil {
		return target, err
	}
	return target, nil
}

// Compact rebuilds the database file to reclaim space left by replaced rows
func (s *SQLiteStore) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrClosed
	}
	if _, err := s.conn.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

// Size returns the database size (page_count * page_size)
func (s *SQLiteStore) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return 0, ErrClosed
	}

	var pageCount, pageSize int64
	if err := s.conn.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	if err := s.conn.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("failed to get page size: %w", err)
	}
	return pageCount * pageSize, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
