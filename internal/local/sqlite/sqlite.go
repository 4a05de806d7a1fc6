package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"enjoygifts/backend/internal/domain"
	"enjoygifts/backend/internal/local"
)

// Store is the persistent local store, one sqlite file per terminal. It
// survives process restarts; the settings table survives document schema
// changes because it is keyed by plain string keys.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection  TEXT NOT NULL,
	local_id    TEXT NOT NULL,
	remote_id   TEXT NOT NULL DEFAULT '',
	store_id    TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	UNIQUE (collection, local_id)
);
CREATE INDEX IF NOT EXISTS idx_documents_remote ON documents (collection, remote_id);

CREATE TABLE IF NOT EXISTS pending_changes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	collection  TEXT NOT NULL,
	action      TEXT NOT NULL,
	local_id    TEXT NOT NULL,
	remote_id   TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL DEFAULT '{}',
	enqueued_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, err
	}
	// A single connection avoids sqlite write-lock contention between the
	// engine and a concurrent drain.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(ctx context.Context, collection string, doc domain.Document) error {
	body, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("%w: encode fields: %v", local.ErrCorrupted, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, local_id, remote_id, store_id, body, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT (collection, local_id) DO UPDATE SET
			remote_id = excluded.remote_id,
			store_id = excluded.store_id,
			body = excluded.body,
			updated_at = excluded.updated_at
	`, collection, doc.LocalID, doc.RemoteID, doc.StoreID, string(body), doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection string, localID string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT local_id, remote_id, store_id, body, created_at, updated_at
		FROM documents
		WHERE collection = ? AND local_id = ?
	`, collection, localID)
	return scanDocument(row)
}

func (s *Store) List(ctx context.Context, collection string) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT local_id, remote_id, store_id, body, created_at, updated_at
		FROM documents
		WHERE collection = ?
		ORDER BY seq
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	defer rows.Close()

	docs := make([]domain.Document, 0, 64)
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	return docs, nil
}

func (s *Store) Delete(ctx context.Context, collection string, localID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = ? AND local_id = ?
	`, collection, localID)
	if err != nil {
		return fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	if affected == 0 {
		return local.ErrNotFound
	}
	return nil
}

func (s *Store) SetRemoteID(ctx context.Context, collection string, localID string, remoteID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET remote_id = ? WHERE collection = ? AND local_id = ?
	`, remoteID, collection, localID)
	if err != nil {
		return fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	if affected == 0 {
		return local.ErrNotFound
	}
	return nil
}

func (s *Store) GetByRemoteID(ctx context.Context, collection string, remoteID string) (*domain.Document, error) {
	if remoteID == "" {
		return nil, local.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT local_id, remote_id, store_id, body, created_at, updated_at
		FROM documents
		WHERE collection = ? AND remote_id = ?
	`, collection, remoteID)
	return scanDocument(row)
}

func (s *Store) Enqueue(ctx context.Context, change domain.PendingChange) (int64, error) {
	body, err := json.Marshal(change.Fields)
	if err != nil {
		return 0, fmt.Errorf("%w: encode change: %v", local.ErrCorrupted, err)
	}
	if change.EnqueuedAt.IsZero() {
		change.EnqueuedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_changes (collection, action, local_id, remote_id, body, enqueued_at)
		VALUES (?,?,?,?,?,?)
	`, change.Collection, string(change.Action), change.LocalID, change.RemoteID, string(body), change.EnqueuedAt.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	return res.LastInsertId()
}

func (s *Store) ListPending(ctx context.Context) ([]domain.PendingChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection, action, local_id, remote_id, body, enqueued_at
		FROM pending_changes
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	defer rows.Close()

	changes := make([]domain.PendingChange, 0, 16)
	for rows.Next() {
		var change domain.PendingChange
		var action, body, enqueued string
		if err := rows.Scan(&change.ID, &change.Collection, &action, &change.LocalID, &change.RemoteID, &body, &enqueued); err != nil {
			return nil, fmt.Errorf("%w: %v", local.ErrCorrupted, err)
		}
		change.Action = domain.Action(action)
		if err := json.Unmarshal([]byte(body), &change.Fields); err != nil {
			return nil, fmt.Errorf("%w: decode change %d: %v", local.ErrCorrupted, change.ID, err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, enqueued); err == nil {
			change.EnqueuedAt = ts
		}
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	return changes, nil
}

func (s *Store) DeletePending(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_changes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	if affected == 0 {
		return local.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePendingByLocalID(ctx context.Context, collection string, localID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM pending_changes WHERE collection = ? AND local_id = ?
	`, collection, localID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	return int(affected), nil
}

func (s *Store) CountPending(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_changes`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	return count, nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", local.ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	return value, nil
}

func (s *Store) PutSetting(ctx context.Context, key string, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?,?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	return nil
}

func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row *sql.Row) (*domain.Document, error) {
	doc, err := scanDocumentRows(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, local.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func scanDocumentRows(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var body string
	if err := row.Scan(&doc.LocalID, &doc.RemoteID, &doc.StoreID, &body, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", local.ErrCorrupted, err)
	}
	if err := json.Unmarshal([]byte(body), &doc.Fields); err != nil {
		return nil, fmt.Errorf("%w: decode document %s: %v", local.ErrCorrupted, doc.LocalID, err)
	}
	return &doc, nil
}
