package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dougsko/waved/pkg/logging"
	"github.com/dougsko/waved/pkg/protocol"
)

// MessageStore handles persistent storage of payloads that crossed the link
type MessageStore struct {
	db          *sql.DB
	dbPath      string
	maxMessages int
	log         *logging.Logger
}

// NewMessageStore creates a new message store with SQLite backend
func NewMessageStore(dbPath string, maxMessages int, log *logging.Logger) (*MessageStore, error) {
	if log == nil {
		log = logging.GetGlobalLogger()
	}

	store := &MessageStore{
		dbPath:      dbPath,
		maxMessages: maxMessages,
		log:         log,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize message store: %w", err)
	}
	return store, nil
}

// initialize sets up the database connection and creates tables
func (ms *MessageStore) initialize() error {
	if ms.dbPath == "" {
		ms.dbPath = "./waved.db"
	}

	if err := os.MkdirAll(filepath.Dir(ms.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	connectionString := ms.dbPath + "?_busy_timeout=10000&_journal_mode=WAL"

	db, err := sql.Open("sqlite3", connectionString)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	ms.db = db

	if err := ms.createTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	ms.log.Infof("storage", "message store initialized: %s (max %d messages)", ms.dbPath, ms.maxMessages)
	return nil
}

// createTables creates the database schema
func (ms *MessageStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		payload BLOB NOT NULL,
		protocol TEXT NOT NULL DEFAULT '',
		direction TEXT NOT NULL CHECK (direction IN ('RX', 'TX')),
		corrected INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_messages_direction ON messages(direction);
	`

	_, err := ms.db.Exec(schema)
	return err
}

// StoreMessage stores a message and enforces the retention limit
func (ms *MessageStore) StoreMessage(msg *protocol.Message) error {
	res, err := ms.db.Exec(
		`INSERT INTO messages (payload, protocol, direction, corrected) VALUES (?, ?, ?, ?)`,
		msg.Payload, msg.Protocol, msg.Direction, msg.Corrected,
	)
	if err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		msg.ID = int(id)
	}

	return ms.cleanup()
}

// GetMessages returns the most recent messages, newest first
func (ms *MessageStore) GetMessages(limit int) ([]protocol.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := ms.db.Query(
		`SELECT id, timestamp, payload, protocol, direction, corrected
		 FROM messages ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []protocol.Message
	for rows.Next() {
		var msg protocol.Message
		if err := rows.Scan(&msg.ID, &msg.Timestamp, &msg.Payload,
			&msg.Protocol, &msg.Direction, &msg.Corrected); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// MessageCount returns the total number of stored messages
func (ms *MessageStore) MessageCount() (int, error) {
	var count int
	err := ms.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// cleanup deletes the oldest messages beyond the retention limit
func (ms *MessageStore) cleanup() error {
	if ms.maxMessages <= 0 {
		return nil
	}
	_, err := ms.db.Exec(
		`DELETE FROM messages WHERE id NOT IN
		 (SELECT id FROM messages ORDER BY id DESC LIMIT ?)`, ms.maxMessages)
	return err
}

// Close closes the database connection
func (ms *MessageStore) Close() error {
	if ms.db != nil {
		return ms.db.Close()
	}
	return nil
}
