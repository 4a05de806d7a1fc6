package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"enjoygifts/backend/internal/docstore"
	"enjoygifts/backend/internal/domain"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateStore(ctx context.Context, rec docstore.StoreRecord) (*docstore.StoreRecord, error) {
	if rec.ID == "" {
		return nil, docstore.ErrInvalid
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stores (id, name, owner_name, admin_pin_hash, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, rec.ID, rec.Name, rec.OwnerName, rec.AdminPINHash, rec.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, docstore.ErrExists
		}
		return nil, err
	}
	created := rec
	return &created, nil
}

func (s *Store) GetStore(ctx context.Context, id string) (*docstore.StoreRecord, error) {
	var rec docstore.StoreRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_name, admin_pin_hash, created_at
		FROM stores
		WHERE id = $1
	`, id).Scan(&rec.ID, &rec.Name, &rec.OwnerName, &rec.AdminPINHash, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) CreateDocument(ctx context.Context, doc docstore.Document) (*docstore.Document, error) {
	if doc.StoreID == "" || doc.Collection == "" {
		return nil, docstore.ErrInvalid
	}
	body, err := json.Marshal(doc.Fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", docstore.ErrInvalid, err)
	}

	doc.ID = uuid.NewString()
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, store_id, collection, body, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, doc.ID, doc.StoreID, doc.Collection, body, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	created := doc
	return &created, nil
}

func (s *Store) GetDocument(ctx context.Context, storeID string, collection string, id string) (*docstore.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, collection, body, created_at, updated_at
		FROM documents
		WHERE store_id = $1 AND collection = $2 AND id = $3
	`, storeID, collection, id)

	doc, err := scanDocument(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, storeID string, collection string) ([]docstore.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, collection, body, created_at, updated_at
		FROM documents
		WHERE store_id = $1 AND collection = $2
		ORDER BY created_at, id
	`, storeID, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]docstore.Document, 0, 64)
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) UpdateDocument(ctx context.Context, storeID string, collection string, id string, fields domain.Fields) (*docstore.Document, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", docstore.ErrInvalid, err)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE documents
		SET body = $4, updated_at = now()
		WHERE store_id = $1 AND collection = $2 AND id = $3
		RETURNING id, store_id, collection, body, created_at, updated_at
	`, storeID, collection, id, body)

	doc, err := scanDocument(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *Store) DeleteDocument(ctx context.Context, storeID string, collection string, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM documents
		WHERE store_id = $1 AND collection = $2 AND id = $3
	`, storeID, collection, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func scanDocument(scan func(dest ...any) error) (*docstore.Document, error) {
	var doc docstore.Document
	var body []byte
	if err := scan(&doc.ID, &doc.StoreID, &doc.Collection, &body, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &doc.Fields); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return &doc, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
