// Package remote abstracts the hosted document database. The client is a
// stateless transport: it owns no data and every operation is scoped to
// the current tenant on the server side.
package remote

import (
	"context"
	"errors"
	"fmt"

	"enjoygifts/backend/internal/domain"
)

// ErrNotFound is returned when a store or document does not exist on the
// remote. It is surfaced for session operations and swallowed (with the
// pending change dropped) during drain replays.
var ErrNotFound = errors.New("remote: not found")

// TransientError wraps a failure that is worth retrying later: network
// unreachable, timeout, or remote service error. The reconciliation
// engine downgrades these to a pending-change enqueue.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("remote: transient: %v", e.Cause)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

func Transient(cause error) error {
	if cause == nil {
		return nil
	}
	return &TransientError{Cause: cause}
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// StoreInfo describes a tenant as the remote knows it. Token is the
// store-scoped credential issued on create/join and attached to every
// subsequent document call.
type StoreInfo struct {
	ID        string `json:"store_id"`
	Name      string `json:"name"`
	OwnerName string `json:"owner_name"`
	CreatedAt string `json:"created_at"`
	Token     string `json:"token,omitempty"`
}

// Document is a record as the remote returns it.
type Document struct {
	RemoteID  string        `json:"id"`
	Fields    domain.Fields `json:"fields"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
}

// Client is the capability set the reconciliation engine consumes. Any
// call may fail with ErrNotFound or a TransientError; the engine is the
// only caller and handles both.
type Client interface {
	CreateStore(ctx context.Context, name string, owner string, adminPIN string) (*StoreInfo, error)
	JoinStore(ctx context.Context, storeID string) (*StoreInfo, error)

	Create(ctx context.Context, collection string, fields domain.Fields) (string, error)
	Get(ctx context.Context, collection string, remoteID string) (*Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
	Update(ctx context.Context, collection string, remoteID string, fields domain.Fields) error
	Delete(ctx context.Context, collection string, remoteID string) error

	// Ping probes reachability; the connectivity monitor calls it on an
	// interval and on manual sync requests.
	Ping(ctx context.Context) error
}
