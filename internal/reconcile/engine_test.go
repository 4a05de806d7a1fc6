package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"enjoygifts/backend/internal/domain"
	"enjoygifts/backend/internal/local/memory"
	"enjoygifts/backend/internal/remote"
)

// fakeRemote is a scriptable in-memory remote.Client. Failures are
// injected per operation, or per record via failOnName, which fails
// creates and updates whose "name" field matches.
type fakeRemote struct {
	mu     sync.Mutex
	nextID int
	docs   map[string]map[string]remote.Document
	order  map[string][]string

	createErr  error
	updateErr  error
	deleteErr  error
	failOnName string

	createCalls int
	updateCalls int
	deleteCalls int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		docs:  make(map[string]map[string]remote.Document),
		order: make(map[string][]string),
	}
}

func (f *fakeRemote) CreateStore(_ context.Context, name string, owner string, _ string) (*remote.StoreInfo, error) {
	return &remote.StoreInfo{ID: "store_test", Name: name, OwnerName: owner, Token: "tok"}, nil
}

func (f *fakeRemote) JoinStore(_ context.Context, storeID string) (*remote.StoreInfo, error) {
	if storeID != "store_test" {
		return nil, remote.ErrNotFound
	}
	return &remote.StoreInfo{ID: storeID, Name: "Test Store", Token: "tok"}, nil
}

func (f *fakeRemote) Create(_ context.Context, collection string, fields domain.Fields) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	if f.failOnName != "" && fields["name"] == f.failOnName {
		return "", remote.Transient(errors.New("injected"))
	}

	f.nextID++
	id := fmt.Sprintf("r-%d", f.nextID)
	byID, ok := f.docs[collection]
	if !ok {
		byID = make(map[string]remote.Document)
		f.docs[collection] = byID
	}
	byID[id] = remote.Document{RemoteID: id, Fields: domain.CloneFields(fields)}
	f.order[collection] = append(f.order[collection], id)
	return id, nil
}

func (f *fakeRemote) Get(_ context.Context, collection string, remoteID string) (*remote.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[collection][remoteID]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return &doc, nil
}

func (f *fakeRemote) List(_ context.Context, collection string) ([]remote.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.Document, 0, len(f.order[collection]))
	for _, id := range f.order[collection] {
		out = append(out, f.docs[collection][id])
	}
	return out, nil
}

func (f *fakeRemote) Update(_ context.Context, collection string, remoteID string, fields domain.Fields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.failOnName != "" && fields["name"] == f.failOnName {
		return remote.Transient(errors.New("injected"))
	}
	doc, ok := f.docs[collection][remoteID]
	if !ok {
		return remote.ErrNotFound
	}
	doc.Fields = domain.CloneFields(fields)
	f.docs[collection][remoteID] = doc
	return nil
}

func (f *fakeRemote) Delete(_ context.Context, collection string, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.docs[collection][remoteID]; !ok {
		return remote.ErrNotFound
	}
	delete(f.docs[collection], remoteID)
	kept := f.order[collection][:0]
	for _, id := range f.order[collection] {
		if id != remoteID {
			kept = append(kept, id)
		}
	}
	f.order[collection] = kept
	return nil
}

func (f *fakeRemote) Ping(_ context.Context) error {
	return nil
}

func newTestEngine() (*Engine, *memory.Store, *fakeRemote, *Monitor) {
	store := memory.New()
	rem := newFakeRemote()
	monitor := NewMonitor(nil, time.Minute)
	monitor.SetOnline(context.Background(), true)
	engine := New(store, rem, monitor)
	engine.SetStoreID("store_test")
	return engine, store, rem, monitor
}

func pendingCount(t *testing.T, store *memory.Store) int {
	t.Helper()
	n, err := store.CountPending(context.Background())
	if err != nil {
		t.Fatalf("count pending: %v", err)
	}
	return n
}

func TestSaveRecordWritesBothStoresWhenOnline(t *testing.T) {
	engine, store, rem, _ := newTestEngine()
	ctx := context.Background()

	localID, err := engine.SaveRecord(ctx, domain.CollectionProducts, domain.Fields{"name": "Mug", "price": 25.0})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	doc, err := store.Get(ctx, domain.CollectionProducts, localID)
	if err != nil {
		t.Fatalf("local read failed: %v", err)
	}
	if doc.RemoteID == "" {
		t.Fatalf("expected remote id to be recorded after online save")
	}
	if _, err := rem.Get(ctx, domain.CollectionProducts, doc.RemoteID); err != nil {
		t.Fatalf("remote read failed: %v", err)
	}
	if n := pendingCount(t, store); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
}

func TestSaveRecordRejectsUnknownCollection(t *testing.T) {
	engine, _, _, _ := newTestEngine()

	_, err := engine.SaveRecord(context.Background(), "widgets", domain.Fields{"name": "x"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSaveRecordQueuesAddWhenOffline(t *testing.T) {
	engine, store, rem, monitor := newTestEngine()
	ctx := context.Background()
	monitor.SetOnline(ctx, false)

	localID, err := engine.SaveRecord(ctx, domain.CollectionProducts, domain.Fields{"name": "Mug"})
	if err != nil {
		t.Fatalf("offline save must succeed locally: %v", err)
	}

	doc, err := store.Get(ctx, domain.CollectionProducts, localID)
	if err != nil {
		t.Fatalf("local read failed: %v", err)
	}
	if doc.RemoteID != "" {
		t.Fatalf("offline save must not have a remote id, got %q", doc.RemoteID)
	}
	if rem.createCalls != 0 {
		t.Fatalf("offline save must not call the remote, got %d calls", rem.createCalls)
	}
	if n := pendingCount(t, store); n != 1 {
		t.Fatalf("expected 1 queued change, got %d", n)
	}
}

func TestSaveRecordAbsorbsRemoteFailure(t *testing.T) {
	engine, store, rem, _ := newTestEngine()
	ctx := context.Background()
	rem.createErr = remote.Transient(errors.New("connection refused"))

	localID, err := engine.SaveRecord(ctx, domain.CollectionProducts, domain.Fields{"name": "Mug"})
	if err != nil {
		t.Fatalf("remote failure must not surface from save: %v", err)
	}
	if localID == "" {
		t.Fatalf("expected a local id")
	}
	if n := pendingCount(t, store); n != 1 {
		t.Fatalf("expected the failed create to queue, got %d changes", n)
	}
}

func TestDrainReplaysQueuedAddAndRecordsRemoteID(t *testing.T) {
	engine, store, rem, monitor := newTestEngine()
	ctx := context.Background()
	monitor.SetOnline(ctx, false)

	localID, err := engine.SaveRecord(ctx, domain.CollectionProducts, domain.Fields{"name": "Mug"})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	monitor.SetOnline(ctx, true)
	if err := engine.Drain(ctx); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	doc, err := store.Get(ctx, domain.CollectionProducts, localID)
	if err != nil {
		t.Fatalf("local read failed: %v", err)
	}
	if doc.RemoteID == "" {
		t.Fatalf("expected drain to record the remote id")
	}
	if _, err := rem.Get(ctx, domain.CollectionProducts, doc.RemoteID); err != nil {
		t.Fatalf("remote read failed: %v", err)
	}
	if n := pendingCount(t, store); n != 0 {
		t.Fatalf("expected empty queue after drain, got %d", n)
	}
}

func TestDrainAppliesUpdateQueuedBehindItsAdd(t *testing.T) {
	engine, store, rem, monitor := newTestEngine()
	ctx := context.Background()
	monitor.SetOnline(ctx, false)

	localID, err := engine.SaveRecord(ctx, domain.CollectionProducts, domain.Fields{"name": "Mug", "quantity": 5.0})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := engine.UpdateRecord(ctx, domain.CollectionProducts, localID, domain.Fields{"name": "Mug", "quantity": 3.0}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if n := pendingCount(t, store); n != 2 {
		t.Fatalf("expected add+update queued, got %d", n)
	}

	monitor.SetOnline(ctx, true)
	if err := engine.Drain(ctx); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	doc, err := store.Get(ctx, domain.CollectionProducts, localID)
	if err != nil {
		t.Fatalf("local read failed: %v", err)
	}
	remoteDoc, err := rem.Get(ctx, domain.CollectionProducts, doc.RemoteID)
	if err != nil {
		t.Fatalf("remote read failed: %v", err)
	}
	if remoteDoc.Fields["quantity"] != 3.0 {
		t.Fatalf("expected the queued update to reach the remote, got %v", remoteDoc.Fields["quantity"])
	}
	if n := pendingCount(t, store); n != 0 {
		t.Fatalf("expected empty queue after drain, got %d", n)
	}
}

func TestDeleteRecordCancelsUnreconciledAdd(t *testing.T) {
	engine, store, rem, monitor := newTestEngine()
	ctx := context.Background()
	monitor.SetOnline(ctx, false)

	localID, err := engine.SaveRecord(ctx, domain.CollectionProducts, domain.Fields{"name": "Mug"})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := engine.DeleteRecord(ctx, domain.CollectionProducts, localID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if n := pendingCount(t, store); n != 0 {
		t.Fatalf("delete of an unreconciled record must cancel its queued add, got %d changes", n)
	}
	if _, err := store.Get(ctx, domain.CollectionProducts, localID); err == nil {
		t.Fatalf("expected the record to be gone locally")
	}

	monitor.SetOnline(ctx, true)
	if err := engine.Drain(ctx); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if rem.createCalls != 0 {
		t.Fatalf("the cancelled add must never reach the remote, got %d creates", rem.createCalls)
	}
}

func TestDeleteRecordTreatsRemoteNotFoundAsSuccess(t *testing.T) {
	engine, store, rem, _ := newTestEngine()
	ctx := context.Background()

	localID, err := engine.SaveRecord(ctx, domain.CollectionProducts, domain.Fields{"name": "Mug"})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	rem.deleteErr = remote.ErrNotFound
	if err := engine.DeleteRecord(ctx, domain.CollectionProducts, localID); err != nil {
		t.Fatalf("delete must succeed when the remote copy is already gone: %v", err)
	}
	if n := pendingCount(t, store); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
}

func TestDeleteRecordQueuesWhenOffline(t *testing.T) {
	engine, store, rem, monitor := newTestEngine()
	ctx := context.Background()

	localID, err := engine.SaveRecord(ctx, domain.CollectionProducts, domain.Fields{"name": "Mug"})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	monitor.SetOnline(ctx, false)
	if err := engine.DeleteRecord(ctx, domain.CollectionProducts, localID); err != nil {
		t.Fatalf("offline delete failed: %v", err)
	}
	if n := pendingCount(t, store); n != 1 {
		t.Fatalf("expected the delete to queue, got %d changes", n)
	}

	monitor.SetOnline(ctx, true)
	if err := engine.Drain(ctx); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if len(rem.docs[domain.CollectionProducts]) != 0 {
		t.Fatalf("expected the remote copy to be deleted after drain")
	}
	if n := pendingCount(t, store); n != 0 {
		t.Fatalf("expected empty queue after drain, got %d", n)
	}
}

func TestDrainFailureLeavesItemQueuedAndContinues(t *testing.T) {
	engine, store, rem, monitor := newTestEngine()
	ctx := context.Background()
	monitor.SetOnline(ctx, false)

	if _, err := engine.SaveRecord(ctx, domain.CollectionProducts, domain.Fields{"name": "Broken"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	okID, err := engine.SaveRecord(ctx, domain.CollectionProducts, domain.Fields{"name": "Fine"})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	rem.failOnName = "Broken"
	monitor.SetOnline(ctx, true)
	if err := engine.Drain(ctx); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	if n := pendingCount(t, store); n != 1 {
		t.Fatalf("expected the failed change to stay queued, got %d", n)
	}
	doc, err := store.Get(ctx, domain.CollectionProducts, okID)
	if err != nil {
		t.Fatalf("local read failed: %v", err)
	}
	if doc.RemoteID == "" {
		t.Fatalf("a failure earlier in the queue must not block later items")
	}

	rem.failOnName = ""
	if err := engine.Drain(ctx); err != nil {
		t.Fatalf("second drain failed: %v", err)
	}
	if n := pendingCount(t, store); n != 0 {
		t.Fatalf("expected the retried change to clear, got %d", n)
	}
}

func TestDrainDropsChangeWhoseTargetIsGone(t *testing.T) {
	engine, store, rem, monitor := newTestEngine()
	ctx := context.Background()

	localID, err := engine.SaveRecord(ctx, domain.CollectionProducts, domain.Fields{"name": "Mug"})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	monitor.SetOnline(ctx, false)
	if err := engine.UpdateRecord(ctx, domain.CollectionProducts, localID, domain.Fields{"name": "Mug v2"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	rem.updateErr = remote.ErrNotFound
	monitor.SetOnline(ctx, true)
	if err := engine.Drain(ctx); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if n := pendingCount(t, store); n != 0 {
		t.Fatalf("a change whose target is gone must be dropped, got %d queued", n)
	}
}

func TestResyncUpsertsByRemoteID(t *testing.T) {
	engine, store, rem, _ := newTestEngine()
	ctx := context.Background()

	if _, err := rem.Create(ctx, domain.CollectionProducts, domain.Fields{"name": "Mug", "price": 25.0}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := rem.Create(ctx, domain.CollectionProducts, domain.Fields{"name": "Plate", "price": 40.0}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := engine.Resync(ctx); err != nil {
		t.Fatalf("resync failed: %v", err)
	}
	docs, err := store.List(ctx, domain.CollectionProducts)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 pulled records, got %d", len(docs))
	}
	for _, doc := range docs {
		if doc.RemoteID == "" || doc.LocalID == "" {
			t.Fatalf("pulled record is missing identity: %+v", doc.Meta)
		}
	}

	// Re-running must not duplicate: records are keyed by remote id.
	if err := engine.Resync(ctx); err != nil {
		t.Fatalf("second resync failed: %v", err)
	}
	docs, err = store.List(ctx, domain.CollectionProducts)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("resync must upsert, got %d records", len(docs))
	}
}

func TestResyncRequiresSession(t *testing.T) {
	engine, _, _, _ := newTestEngine()
	engine.SetStoreID("")

	if err := engine.Resync(context.Background()); err == nil {
		t.Fatalf("expected resync without a session to fail")
	}
}

func TestStatusReportsQueueDepth(t *testing.T) {
	engine, _, _, monitor := newTestEngine()
	ctx := context.Background()
	monitor.SetOnline(ctx, false)

	if _, err := engine.SaveRecord(ctx, domain.CollectionProducts, domain.Fields{"name": "Mug"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	status, err := engine.Status(ctx)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.Online {
		t.Fatalf("expected offline status")
	}
	if status.PendingChanges != 1 {
		t.Fatalf("expected 1 pending change, got %d", status.PendingChanges)
	}
	if status.StoreID != "store_test" {
		t.Fatalf("unexpected store id %q", status.StoreID)
	}
}
