// Package reconcile implements the local-first dual-write engine: every
// mutation lands in the local store first and unconditionally, the remote
// write is opportunistic, and failed or skipped remote writes are queued
// as pending changes replayed when connectivity returns.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"enjoygifts/backend/internal/domain"
	"enjoygifts/backend/internal/local"
	"enjoygifts/backend/internal/remote"
	"enjoygifts/backend/internal/xid"
)

// Engine orchestrates the two stores. It persists nothing itself: the
// local store owns records and the pending queue, the remote client is a
// stateless transport.
type Engine struct {
	store   local.Store
	remote  remote.Client
	monitor *Monitor

	mu      sync.RWMutex
	storeID string

	drainMu sync.Mutex
}

func New(store local.Store, remoteClient remote.Client, monitor *Monitor) *Engine {
	return &Engine{
		store:   store,
		remote:  remoteClient,
		monitor: monitor,
	}
}

// SetStoreID installs the tenant scope. The session manager calls this on
// create/join/logout; an empty id means no session.
func (e *Engine) SetStoreID(id string) {
	e.mu.Lock()
	e.storeID = id
	e.mu.Unlock()
}

func (e *Engine) StoreID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.storeID
}

func (e *Engine) online() bool {
	if e.monitor == nil {
		return true
	}
	return e.monitor.Online()
}

var idPrefixes = map[string]string{
	domain.CollectionProducts:        "prod",
	domain.CollectionCategories:      "cat",
	domain.CollectionSales:           "inv",
	domain.CollectionCustomers:       "cust",
	domain.CollectionExpenses:        "exp",
	domain.CollectionRevenues:        "rev",
	domain.CollectionDeletedInvoices: "dinv",
}

func idPrefix(collection string) string {
	if prefix, ok := idPrefixes[collection]; ok {
		return prefix
	}
	return "doc"
}

// SaveRecord writes a new record locally, then attempts the remote create.
// It returns the local identifier and never the remote error: a failed or
// skipped remote write is absorbed into the pending-change queue. Only a
// local persistence failure propagates.
func (e *Engine) SaveRecord(ctx context.Context, collection string, fields domain.Fields) (string, error) {
	if !domain.IsKnownCollection(collection) {
		return "", fmt.Errorf("%w: unknown collection %q", domain.ErrValidation, collection)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	doc := domain.Document{
		Meta: domain.Meta{
			LocalID:   xid.New(idPrefix(collection)),
			StoreID:   e.StoreID(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Fields: domain.CloneFields(fields),
	}
	if err := e.store.Put(ctx, collection, doc); err != nil {
		return "", err
	}

	if !e.online() {
		if err := e.enqueue(ctx, collection, domain.ActionAdd, doc.LocalID, "", doc.Fields); err != nil {
			return "", err
		}
		return doc.LocalID, nil
	}

	remoteID, err := e.remote.Create(ctx, collection, doc.Fields)
	if err != nil {
		log.Printf("[reconcile] remote create failed for %s/%s, queueing: %v", collection, doc.LocalID, err)
		if err := e.enqueue(ctx, collection, domain.ActionAdd, doc.LocalID, "", doc.Fields); err != nil {
			return "", err
		}
		return doc.LocalID, nil
	}

	if err := e.store.SetRemoteID(ctx, collection, doc.LocalID, remoteID); err != nil {
		return "", err
	}
	return doc.LocalID, nil
}

// UpdateRecord replaces a record's fields locally, then attempts the
// remote update. When the record has no remote identifier yet, the update
// is queued behind the still-pending add and resolved at replay time.
func (e *Engine) UpdateRecord(ctx context.Context, collection string, localID string, fields domain.Fields) error {
	existing, err := e.store.Get(ctx, collection, localID)
	if err != nil {
		return err
	}

	doc := *existing
	doc.Fields = domain.CloneFields(fields)
	doc.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := e.store.Put(ctx, collection, doc); err != nil {
		return err
	}

	if doc.RemoteID == "" || !e.online() {
		return e.enqueue(ctx, collection, domain.ActionUpdate, localID, doc.RemoteID, doc.Fields)
	}

	if err := e.remote.Update(ctx, collection, doc.RemoteID, doc.Fields); err != nil {
		log.Printf("[reconcile] remote update failed for %s/%s, queueing: %v", collection, localID, err)
		return e.enqueue(ctx, collection, domain.ActionUpdate, localID, doc.RemoteID, doc.Fields)
	}
	return nil
}

// DeleteRecord removes a record locally, then attempts the remote delete.
// A delete that arrives before the record's add has been reconciled
// cancels the queued add (and any queued updates) instead of enqueueing a
// delete against a remote record that never existed.
func (e *Engine) DeleteRecord(ctx context.Context, collection string, localID string) error {
	existing, err := e.store.Get(ctx, collection, localID)
	if err != nil {
		return err
	}

	if err := e.store.Delete(ctx, collection, localID); err != nil {
		return err
	}

	cancelled, err := e.store.DeletePendingByLocalID(ctx, collection, localID)
	if err != nil {
		return err
	}
	if cancelled > 0 {
		log.Printf("[reconcile] cancelled %d pending change(s) for deleted %s/%s", cancelled, collection, localID)
	}

	if existing.RemoteID == "" {
		// Nothing ever reached the remote; the cancelled add covers it.
		return nil
	}

	if !e.online() {
		return e.enqueue(ctx, collection, domain.ActionDelete, localID, existing.RemoteID, nil)
	}

	if err := e.remote.Delete(ctx, collection, existing.RemoteID); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			// Independently deleted on the remote; local state already agrees.
			return nil
		}
		log.Printf("[reconcile] remote delete failed for %s/%s, queueing: %v", collection, localID, err)
		return e.enqueue(ctx, collection, domain.ActionDelete, localID, existing.RemoteID, nil)
	}
	return nil
}

func (e *Engine) enqueue(ctx context.Context, collection string, action domain.Action, localID string, remoteID string, fields domain.Fields) error {
	_, err := e.store.Enqueue(ctx, domain.PendingChange{
		Collection: collection,
		Action:     action,
		LocalID:    localID,
		RemoteID:   remoteID,
		Fields:     domain.CloneFields(fields),
		EnqueuedAt: time.Now().UTC(),
	})
	return err
}

// Drain replays queued changes against the remote in enqueue order.
// Individual failures leave the item queued and do not block later items.
// Replays are at-least-once: a crash between the remote write and the
// queue delete can duplicate a remote add on the next drain.
func (e *Engine) Drain(ctx context.Context) error {
	// One drain at a time; changes enqueued mid-drain wait for the next pass.
	if !e.drainMu.TryLock() {
		return nil
	}
	defer e.drainMu.Unlock()

	changes, err := e.store.ListPending(ctx)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}
	log.Printf("[reconcile] draining %d pending change(s)", len(changes))

	for _, change := range changes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.replay(ctx, change); err != nil {
			if errors.Is(err, errDeferred) {
				continue
			}
			if errors.Is(err, remote.ErrNotFound) {
				// The target no longer exists remotely; the change can
				// never be replayed. Drop it.
				log.Printf("[reconcile] dropping change %d (%s %s/%s): target gone", change.ID, change.Action, change.Collection, change.LocalID)
				if err := e.store.DeletePending(ctx, change.ID); err != nil && !errors.Is(err, local.ErrNotFound) {
					return err
				}
				continue
			}
			log.Printf("[reconcile] WARN: change %d (%s %s/%s) failed, will retry: %v", change.ID, change.Action, change.Collection, change.LocalID, err)
			continue
		}
		if err := e.store.DeletePending(ctx, change.ID); err != nil && !errors.Is(err, local.ErrNotFound) {
			return err
		}
	}
	return nil
}

// errDeferred marks a change that cannot be replayed yet (an update whose
// add has not been reconciled). The item stays queued without a warning.
var errDeferred = errors.New("deferred")

func (e *Engine) replay(ctx context.Context, change domain.PendingChange) error {
	switch change.Action {
	case domain.ActionAdd:
		remoteID, err := e.remote.Create(ctx, change.Collection, change.Fields)
		if err != nil {
			return err
		}
		if err := e.store.SetRemoteID(ctx, change.Collection, change.LocalID, remoteID); err != nil {
			if errors.Is(err, local.ErrNotFound) {
				// Deleted locally mid-drain; the cancel path will not see
				// this change again, so just let it complete.
				return nil
			}
			return err
		}
		return nil

	case domain.ActionUpdate:
		remoteID := change.RemoteID
		if remoteID == "" {
			// The add may have been reconciled earlier in this pass; pick
			// up the identifier it assigned.
			doc, err := e.store.Get(ctx, change.Collection, change.LocalID)
			if err != nil {
				if errors.Is(err, local.ErrNotFound) {
					return remote.ErrNotFound
				}
				return err
			}
			remoteID = doc.RemoteID
		}
		if remoteID == "" {
			return errDeferred
		}
		return e.remote.Update(ctx, change.Collection, remoteID, change.Fields)

	case domain.ActionDelete:
		if change.RemoteID == "" {
			// No remote record ever existed; replay is a no-op.
			return remote.ErrNotFound
		}
		return e.remote.Delete(ctx, change.Collection, change.RemoteID)

	default:
		return fmt.Errorf("unknown pending action %q", change.Action)
	}
}

// Resync pulls every record scoped to the current tenant and upserts it
// into the local store, keyed by remote identifier. Used when joining a
// store on a fresh device. Remote wins on conflicting fields.
func (e *Engine) Resync(ctx context.Context) error {
	storeID := e.StoreID()
	if storeID == "" {
		return errors.New("reconcile: no store session")
	}

	for _, collection := range domain.KnownCollections {
		docs, err := e.remote.List(ctx, collection)
		if err != nil {
			return fmt.Errorf("resync %s: %w", collection, err)
		}
		for _, remoteDoc := range docs {
			existing, err := e.store.GetByRemoteID(ctx, collection, remoteDoc.RemoteID)
			if err != nil && !errors.Is(err, local.ErrNotFound) {
				return err
			}

			now := time.Now().UTC().Format(time.RFC3339)
			doc := domain.Document{
				Meta: domain.Meta{
					RemoteID:  remoteDoc.RemoteID,
					StoreID:   storeID,
					CreatedAt: remoteDoc.CreatedAt,
					UpdatedAt: now,
				},
				Fields: remoteDoc.Fields,
			}
			if existing != nil {
				doc.LocalID = existing.LocalID
				doc.CreatedAt = existing.CreatedAt
			} else {
				doc.LocalID = xid.New(idPrefix(collection))
				if doc.CreatedAt == "" {
					doc.CreatedAt = now
				}
			}
			if err := e.store.Put(ctx, collection, doc); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetRecord reads a single record from the local store. Reads never touch
// the remote: the local copy is the source of truth for the UI.
func (e *Engine) GetRecord(ctx context.Context, collection string, localID string) (*domain.Document, error) {
	return e.store.Get(ctx, collection, localID)
}

// ListRecords reads a collection from the local store in insertion order.
func (e *Engine) ListRecords(ctx context.Context, collection string) ([]domain.Document, error) {
	return e.store.List(ctx, collection)
}

// Status reports connectivity, session and queue depth for the UI.
func (e *Engine) Status(ctx context.Context) (domain.SyncStatus, error) {
	pending, err := e.store.CountPending(ctx)
	if err != nil {
		return domain.SyncStatus{}, err
	}
	return domain.SyncStatus{
		Online:         e.online(),
		StoreID:        e.StoreID(),
		PendingChanges: pending,
	}, nil
}
