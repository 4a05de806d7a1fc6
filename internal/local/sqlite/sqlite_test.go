package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"enjoygifts/backend/internal/domain"
	"enjoygifts/backend/internal/local"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "pos.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func putDoc(t *testing.T, store *Store, collection string, localID string, fields domain.Fields) {
	t.Helper()
	err := store.Put(context.Background(), collection, domain.Document{
		Meta: domain.Meta{
			LocalID:   localID,
			StoreID:   "store_test",
			CreatedAt: "2026-08-31T10:00:00Z",
			UpdatedAt: "2026-08-31T10:00:00Z",
		},
		Fields: fields,
	})
	if err != nil {
		t.Fatalf("put %s/%s: %v", collection, localID, err)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	putDoc(t, store, domain.CollectionProducts, "prod_1", domain.Fields{"name": "Mug", "price": 25.0})

	doc, err := store.Get(ctx, domain.CollectionProducts, "prod_1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if doc.Fields["name"] != "Mug" || doc.Fields["price"] != 25.0 {
		t.Fatalf("fields did not round trip: %v", doc.Fields)
	}
	if doc.StoreID != "store_test" {
		t.Fatalf("unexpected store id %q", doc.StoreID)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Get(context.Background(), domain.CollectionProducts, "prod_nope"); !errors.Is(err, local.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutUpsertsOnLocalID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	putDoc(t, store, domain.CollectionProducts, "prod_1", domain.Fields{"name": "Mug"})
	putDoc(t, store, domain.CollectionProducts, "prod_1", domain.Fields{"name": "Mug v2"})

	docs, err := store.List(ctx, domain.CollectionProducts)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(docs) != 1 || docs[0].Fields["name"] != "Mug v2" {
		t.Fatalf("expected an upsert, got %+v", docs)
	}
}

func TestListPreservesInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []string{"prod_c", "prod_a", "prod_b"} {
		putDoc(t, store, domain.CollectionProducts, id, domain.Fields{"name": id})
	}

	docs, err := store.List(context.Background(), domain.CollectionProducts)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(docs) != 3 || docs[0].LocalID != "prod_c" || docs[2].LocalID != "prod_b" {
		t.Fatalf("expected insertion order, got %+v", docs)
	}
}

func TestSetRemoteIDAndGetByRemoteID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	putDoc(t, store, domain.CollectionProducts, "prod_1", domain.Fields{"name": "Mug"})

	if err := store.SetRemoteID(ctx, domain.CollectionProducts, "prod_1", "r-9"); err != nil {
		t.Fatalf("set remote id failed: %v", err)
	}
	doc, err := store.GetByRemoteID(ctx, domain.CollectionProducts, "r-9")
	if err != nil {
		t.Fatalf("get by remote id failed: %v", err)
	}
	if doc.LocalID != "prod_1" {
		t.Fatalf("unexpected document %+v", doc.Meta)
	}

	if _, err := store.GetByRemoteID(ctx, domain.CollectionProducts, ""); !errors.Is(err, local.ErrNotFound) {
		t.Fatalf("an empty remote id must not match anything, got %v", err)
	}
	if err := store.SetRemoteID(ctx, domain.CollectionProducts, "prod_nope", "r-1"); !errors.Is(err, local.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	putDoc(t, store, domain.CollectionProducts, "prod_1", domain.Fields{"name": "Mug"})

	if err := store.Delete(ctx, domain.CollectionProducts, "prod_1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(ctx, domain.CollectionProducts, "prod_1"); !errors.Is(err, local.ErrNotFound) {
		t.Fatalf("expected the document to be gone, got %v", err)
	}
	if err := store.Delete(ctx, domain.CollectionProducts, "prod_1"); !errors.Is(err, local.ErrNotFound) {
		t.Fatalf("deleting twice must report not found, got %v", err)
	}
}

func TestPendingQueueKeepsEnqueueOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, localID := range []string{"prod_1", "prod_2", "prod_3"} {
		_, err := store.Enqueue(ctx, domain.PendingChange{
			Collection: domain.CollectionProducts,
			Action:     domain.ActionAdd,
			LocalID:    localID,
			Fields:     domain.Fields{"n": float64(i)},
			EnqueuedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	changes, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}
	for i, want := range []string{"prod_1", "prod_2", "prod_3"} {
		if changes[i].LocalID != want {
			t.Fatalf("expected enqueue order, got %+v", changes)
		}
	}

	if err := store.DeletePending(ctx, changes[1].ID); err != nil {
		t.Fatalf("delete pending failed: %v", err)
	}
	count, err := store.CountPending(ctx)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 remaining, got %d (%v)", count, err)
	}
}

func TestDeletePendingByLocalID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, action := range []domain.Action{domain.ActionAdd, domain.ActionUpdate} {
		if _, err := store.Enqueue(ctx, domain.PendingChange{
			Collection: domain.CollectionProducts,
			Action:     action,
			LocalID:    "prod_1",
		}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}
	if _, err := store.Enqueue(ctx, domain.PendingChange{
		Collection: domain.CollectionProducts,
		Action:     domain.ActionAdd,
		LocalID:    "prod_2",
	}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	removed, err := store.DeletePendingByLocalID(ctx, domain.CollectionProducts, "prod_1")
	if err != nil {
		t.Fatalf("delete by local id failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 cancelled changes, got %d", removed)
	}
	changes, _ := store.ListPending(ctx)
	if len(changes) != 1 || changes[0].LocalID != "prod_2" {
		t.Fatalf("unexpected queue state: %+v", changes)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetSetting(ctx, local.SettingStoreID); !errors.Is(err, local.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing setting, got %v", err)
	}

	if err := store.PutSetting(ctx, local.SettingStoreID, "store_abc"); err != nil {
		t.Fatalf("put setting failed: %v", err)
	}
	if err := store.PutSetting(ctx, local.SettingStoreID, "store_def"); err != nil {
		t.Fatalf("overwrite setting failed: %v", err)
	}

	value, err := store.GetSetting(ctx, local.SettingStoreID)
	if err != nil || value != "store_def" {
		t.Fatalf("expected the overwritten value, got %q (%v)", value, err)
	}

	if err := store.DeleteSetting(ctx, local.SettingStoreID); err != nil {
		t.Fatalf("delete setting failed: %v", err)
	}
	if _, err := store.GetSetting(ctx, local.SettingStoreID); !errors.Is(err, local.ErrNotFound) {
		t.Fatalf("expected the setting to be gone, got %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pos.db")
	ctx := context.Background()

	store, err := New(ctx, path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := store.Put(ctx, domain.CollectionProducts, domain.Document{
		Meta:   domain.Meta{LocalID: "prod_1", CreatedAt: "x", UpdatedAt: "x"},
		Fields: domain.Fields{"name": "Mug"},
	}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened, err := New(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	doc, err := reopened.Get(ctx, domain.CollectionProducts, "prod_1")
	if err != nil {
		t.Fatalf("get after reopen failed: %v", err)
	}
	if doc.Fields["name"] != "Mug" {
		t.Fatalf("data did not survive reopen: %v", doc.Fields)
	}
}
