package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/sweeney/motion-detector/internal/settings"
)

const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// busyTimeoutMs is how long SQLite waits for a lock.
	busyTimeoutMs = 5000

	// opTimeout bounds every statement.
	opTimeout = 5 * time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS configuration (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	version  INTEGER NOT NULL,
	data     BLOB    NOT NULL,
	saved_at INTEGER NOT NULL
)`

// SQLite stores the configuration as one row in a SQLite database.
type SQLite struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the database at path and prepares the schema.
func Open(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL", path, busyTimeoutMs)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("verifying store connection: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("creating store schema: %w", err)
	}

	_ = os.Chmod(path, filePermissions) //nolint:errcheck // file may not be flushed yet

	return &SQLite{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Load implements Store.
func (s *SQLite) Load(version uint16, defaults settings.Configuration) (settings.Configuration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		stored uint16
		data   []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT version, data FROM configuration WHERE id = 1`).Scan(&stored, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return defaults, nil
	}
	if err != nil {
		return defaults, fmt.Errorf("reading configuration: %w", err)
	}
	if stored != version {
		return defaults, nil
	}

	// Decode over defaults so fields missing from an older blob keep their default.
	cfg := defaults
	if err := cbor.Unmarshal(data, &cfg); err != nil {
		return defaults, fmt.Errorf("decoding configuration: %w", err)
	}
	return cfg, nil
}

// Save implements Store.
func (s *SQLite) Save(version uint16, cfg settings.Configuration) error {
	data, err := cbor.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO configuration (id, version, data, saved_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version, data = excluded.data, saved_at = excluded.saved_at`,
		version, data, s.now().Unix())
	if err != nil {
		return fmt.Errorf("writing configuration: %w", err)
	}
	return nil
}

// Reset implements Store.
func (s *SQLite) Reset(version uint16, defaults settings.Configuration) error {
	return s.Save(version, defaults)
}

// Close closes the database.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}
