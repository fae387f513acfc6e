package apikey

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteBusyTimeout = 5 * time.Second

// SQLiteStore stores key records in a SQLite table indexed by hash.
type SQLiteStore struct {
	db        *sql.DB
	algorithm string
}

// OpenSQLite opens the database at path and creates the schema.
func OpenSQLite(path, algorithm string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("db path cannot be empty")
	}
	if !IsDeterministic(algorithm) {
		return nil, fmt.Errorf("%w: %s", ErrNonDeterministicHash, algorithm)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		path, sqliteBusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db, algorithm: algorithm}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Migrate creates the api_keys table if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS api_keys (
		hash TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		roles TEXT NOT NULL DEFAULT '[]',
		scopes TEXT NOT NULL DEFAULT '[]',
		metadata TEXT NOT NULL DEFAULT '{}',
		expires_at INTEGER,
		enabled INTEGER NOT NULL DEFAULT 1,
		revoked INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_api_keys_id ON api_keys(id)`)
	return err
}

// Find returns the record stored under the credential's hash.
func (s *SQLiteStore) Find(ctx context.Context, credential string) (*Key, error) {
	hash, err := indexHash(credential, s.algorithm)
	if err != nil {
		return nil, err
	}

	var (
		key                     Key
		roles, scopes, metadata string
		expiresAt               sql.NullInt64
		createdAt               int64
	)

	err = s.db.QueryRowContext(ctx, `
		SELECT hash, id, name, roles, scopes, metadata, expires_at, enabled, revoked, created_at
		FROM api_keys WHERE hash = ?`, hash,
	).Scan(&key.Hash, &key.ID, &key.Name, &roles, &scopes, &metadata,
		&expiresAt, &key.Enabled, &key.Revoked, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query api key: %w", err)
	}

	if err := json.Unmarshal([]byte(roles), &key.Roles); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	if err := json.Unmarshal([]byte(scopes), &key.Scopes); err != nil {
		return nil, fmt.Errorf("decode scopes: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &key.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if expiresAt.Valid {
		t := time.Unix(expiresAt.Int64, 0)
		key.ExpiresAt = &t
	}
	key.CreatedAt = time.Unix(createdAt, 0)

	return &key, nil
}

// Put inserts or updates key.
func (s *SQLiteStore) Put(ctx context.Context, key *Key) error {
	if key == nil || key.Hash == "" || key.ID == "" {
		return ErrInvalidKey
	}

	roles, err := json.Marshal(nonNilStrings(key.Roles))
	if err != nil {
		return err
	}
	scopes, err := json.Marshal(nonNilStrings(key.Scopes))
	if err != nil {
		return err
	}
	metadata := key.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	var expiresAt sql.NullInt64
	if key.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: key.ExpiresAt.Unix(), Valid: true}
	}
	createdAt := key.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO api_keys (hash, id, name, roles, scopes, metadata, expires_at, enabled, revoked, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (hash) DO UPDATE SET
			id = excluded.id,
			name = excluded.name,
			roles = excluded.roles,
			scopes = excluded.scopes,
			metadata = excluded.metadata,
			expires_at = excluded.expires_at,
			enabled = excluded.enabled,
			revoked = excluded.revoked`,
		key.Hash, key.ID, key.Name, string(roles), string(scopes), string(meta),
		expiresAt, key.Enabled, key.Revoked, createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert api key: %w", err)
	}
	return nil
}

// Revoke marks every record with id as revoked.
func (s *SQLiteStore) Revoke(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE api_keys SET revoked = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var (
	_ Store  = (*SQLiteStore)(nil)
	_ Pinger = (*SQLiteStore)(nil)
)
