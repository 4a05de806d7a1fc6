// Package local defines the client-resident persistent store: the source
// of truth for immediate reads, the pending-change queue, and the settings
// slot that survives schema migrations.
package local

import (
	"context"
	"errors"

	"enjoygifts/backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrCorrupted marks an unrecoverable local persistence failure. It is
	// fatal to the calling operation and is never absorbed into the
	// pending-change queue.
	ErrCorrupted = errors.New("local store corrupted")
)

// Settings keys.
const (
	SettingStoreID        = "storeId"
	SettingAuthToken      = "authToken"
	SettingStoreName      = "storeName"
	SettingOwnerName      = "ownerName"
	SettingStoreCreatedAt = "storeCreatedAt"
)

// Store is the local persistence contract. The reconciliation engine is
// the only writer of documents and pending changes; the session manager
// owns the settings slot.
type Store interface {
	Put(ctx context.Context, collection string, doc domain.Document) error
	Get(ctx context.Context, collection string, localID string) (*domain.Document, error)
	List(ctx context.Context, collection string) ([]domain.Document, error)
	Delete(ctx context.Context, collection string, localID string) error
	SetRemoteID(ctx context.Context, collection string, localID string, remoteID string) error
	GetByRemoteID(ctx context.Context, collection string, remoteID string) (*domain.Document, error)

	Enqueue(ctx context.Context, change domain.PendingChange) (int64, error)
	ListPending(ctx context.Context) ([]domain.PendingChange, error)
	DeletePending(ctx context.Context, id int64) error
	DeletePendingByLocalID(ctx context.Context, collection string, localID string) (int, error)
	CountPending(ctx context.Context) (int, error)

	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key string, value string) error
	DeleteSetting(ctx context.Context, key string) error

	Close() error
}
