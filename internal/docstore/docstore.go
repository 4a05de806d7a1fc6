// Package docstore defines the hosted document repository behind the
// remote API: tenant records plus store-scoped document collections.
package docstore

import (
	"context"
	"errors"
	"time"

	"enjoygifts/backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid document")
	ErrExists   = errors.New("already exists")
)

// StoreRecord is a tenant as the server persists it. AdminPINHash is a
// bcrypt hash, empty when the store was created without a PIN.
type StoreRecord struct {
	ID           string    `json:"store_id"`
	Name         string    `json:"name"`
	OwnerName    string    `json:"owner_name"`
	AdminPINHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Document is a record as the server persists it. IDs are assigned by the
// repository on create and are the remote identifiers clients track.
type Document struct {
	ID         string        `json:"id"`
	StoreID    string        `json:"store_id"`
	Collection string        `json:"collection"`
	Fields     domain.Fields `json:"fields"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type Repository interface {
	CreateStore(ctx context.Context, rec StoreRecord) (*StoreRecord, error)
	GetStore(ctx context.Context, id string) (*StoreRecord, error)

	CreateDocument(ctx context.Context, doc Document) (*Document, error)
	GetDocument(ctx context.Context, storeID string, collection string, id string) (*Document, error)
	ListDocuments(ctx context.Context, storeID string, collection string) ([]Document, error)
	UpdateDocument(ctx context.Context, storeID string, collection string, id string, fields domain.Fields) (*Document, error)
	DeleteDocument(ctx context.Context, storeID string, collection string, id string) error
}
