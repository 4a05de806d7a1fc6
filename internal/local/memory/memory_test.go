package memory

import (
	"context"
	"errors"
	"testing"

	"enjoygifts/backend/internal/domain"
	"enjoygifts/backend/internal/local"
)

func TestListPreservesInsertionOrder(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, id := range []string{"prod_c", "prod_a", "prod_b"} {
		if err := store.Put(ctx, domain.CollectionProducts, domain.Document{
			Meta:   domain.Meta{LocalID: id},
			Fields: domain.Fields{"name": id},
		}); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}

	docs, err := store.List(ctx, domain.CollectionProducts)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(docs) != 3 || docs[0].LocalID != "prod_c" || docs[2].LocalID != "prod_b" {
		t.Fatalf("expected insertion order, got %+v", docs)
	}
}

func TestGetReturnsACopy(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.Put(ctx, domain.CollectionProducts, domain.Document{
		Meta:   domain.Meta{LocalID: "prod_1"},
		Fields: domain.Fields{"name": "Mug"},
	}); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	doc, err := store.Get(ctx, domain.CollectionProducts, "prod_1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	doc.Fields["name"] = "Tampered"

	again, _ := store.Get(ctx, domain.CollectionProducts, "prod_1")
	if again.Fields["name"] != "Mug" {
		t.Fatalf("stored fields must not alias returned maps, got %v", again.Fields)
	}
}

func TestPendingQueueAssignsMonotonicIDs(t *testing.T) {
	store := New()
	ctx := context.Background()

	first, err := store.Enqueue(ctx, domain.PendingChange{Collection: domain.CollectionProducts, Action: domain.ActionAdd, LocalID: "prod_1"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	second, err := store.Enqueue(ctx, domain.PendingChange{Collection: domain.CollectionProducts, Action: domain.ActionUpdate, LocalID: "prod_1"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if second <= first {
		t.Fatalf("expected increasing ids, got %d then %d", first, second)
	}

	removed, err := store.DeletePendingByLocalID(ctx, domain.CollectionProducts, "prod_1")
	if err != nil || removed != 2 {
		t.Fatalf("expected both changes cancelled, got %d (%v)", removed, err)
	}
	if count, _ := store.CountPending(ctx); count != 0 {
		t.Fatalf("expected an empty queue, got %d", count)
	}
}

func TestDeletePendingMissingID(t *testing.T) {
	store := New()

	if err := store.DeletePending(context.Background(), 42); !errors.Is(err, local.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByRemoteIDIgnoresEmpty(t *testing.T) {
	store := New()
	ctx := context.Background()

	// Two docs without remote ids must never match an empty lookup.
	for _, id := range []string{"prod_1", "prod_2"} {
		if err := store.Put(ctx, domain.CollectionProducts, domain.Document{
			Meta: domain.Meta{LocalID: id},
		}); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}

	if _, err := store.GetByRemoteID(ctx, domain.CollectionProducts, ""); !errors.Is(err, local.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty remote id, got %v", err)
	}
}
