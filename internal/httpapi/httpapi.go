package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"enjoygifts/backend/internal/cache"
	"enjoygifts/backend/internal/docstore"
	"enjoygifts/backend/internal/domain"
	"enjoygifts/backend/internal/reports"
	"enjoygifts/backend/internal/xid"
)

// API serves the hosted document store: tenant management plus the
// store-scoped collection endpoints the sync clients talk to.
type API struct {
	repo          docstore.Repository
	auth          *AuthManager
	summaryCache  cache.SummaryCache
	summaryTTL    time.Duration
	allowedOrigin string
	joinLimiter   *attemptLimiter
	pinLimiter    *attemptLimiter
}

func New(repo docstore.Repository, auth *AuthManager, summaryCache cache.SummaryCache, summaryTTL time.Duration, allowedOrigin string) *API {
	if summaryCache == nil {
		summaryCache = cache.NoopSummaryCache{}
	}
	if summaryTTL <= 0 {
		summaryTTL = 30 * time.Second
	}
	return &API{
		repo:          repo,
		auth:          auth,
		summaryCache:  summaryCache,
		summaryTTL:    summaryTTL,
		allowedOrigin: allowedOrigin,
		joinLimiter:   newAttemptLimiter(10, time.Minute),
		pinLimiter:    newAttemptLimiter(8, time.Minute),
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/stores", a.handleCreateStore)
	mux.HandleFunc("POST /api/v1/stores/{id}/join", a.handleJoinStore)
	mux.HandleFunc("POST /api/v1/stores/{id}/verify-pin", a.handleVerifyPIN)

	mux.HandleFunc("POST /api/v1/collections/{collection}/documents", a.requireStore(a.handleCreateDocument))
	mux.HandleFunc("GET /api/v1/collections/{collection}/documents", a.requireStore(a.handleListDocuments))
	mux.HandleFunc("GET /api/v1/collections/{collection}/documents/{id}", a.requireStore(a.handleGetDocument))
	mux.HandleFunc("PATCH /api/v1/collections/{collection}/documents/{id}", a.requireStore(a.handleUpdateDocument))
	mux.HandleFunc("DELETE /api/v1/collections/{collection}/documents/{id}", a.requireStore(a.handleDeleteDocument))

	mux.HandleFunc("GET /api/v1/reports/summary", a.requireStore(a.handleSummary))

	return a.withMiddleware(mux)
}

type storeHandler func(w http.ResponseWriter, r *http.Request, actor StoreActor)

func (a *API) requireStore(next storeHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		actor, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		next(w, r, actor)
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createStoreRequest struct {
	Name      string `json:"name"`
	OwnerName string `json:"owner_name"`
	AdminPIN  string `json:"admin_pin"`
}

type storeResponse struct {
	StoreID   string `json:"store_id"`
	Name      string `json:"name"`
	OwnerName string `json:"owner_name"`
	CreatedAt string `json:"created_at"`
	Token     string `json:"token,omitempty"`
}

func (a *API) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req createStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("store name is required"))
		return
	}

	pinHash, err := HashPIN(req.AdminPIN)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := a.repo.CreateStore(r.Context(), docstore.StoreRecord{
		ID:           xid.NewStoreID(),
		Name:         req.Name,
		OwnerName:    strings.TrimSpace(req.OwnerName),
		AdminPINHash: pinHash,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	token, err := a.auth.IssueStoreToken(rec.ID, true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	log.Printf("[httpapi] store created: %s", rec.ID)
	writeJSON(w, http.StatusCreated, storeResponse{
		StoreID:   rec.ID,
		Name:      rec.Name,
		OwnerName: rec.OwnerName,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		Token:     token,
	})
}

func (a *API) handleJoinStore(w http.ResponseWriter, r *http.Request) {
	if !a.joinLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many join attempts"))
		return
	}

	storeID := r.PathValue("id")
	rec, err := a.repo.GetStore(r.Context(), storeID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, errors.New("store not found"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	token, err := a.auth.IssueStoreToken(rec.ID, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, storeResponse{
		StoreID:   rec.ID,
		Name:      rec.Name,
		OwnerName: rec.OwnerName,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		Token:     token,
	})
}

// handleVerifyPIN checks the store's admin PIN. Clients gate the admin
// tab (deleted-invoice restore/purge) behind this.
func (a *API) handleVerifyPIN(w http.ResponseWriter, r *http.Request) {
	if !a.pinLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many attempts"))
		return
	}

	var req struct {
		AdminPIN string `json:"admin_pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	rec, err := a.repo.GetStore(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, errors.New("store not found"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"valid": VerifyPIN(rec.AdminPINHash, req.AdminPIN)})
}

func validCollection(w http.ResponseWriter, r *http.Request) (string, bool) {
	collection := r.PathValue("collection")
	if !domain.IsKnownCollection(collection) {
		writeError(w, http.StatusBadRequest, errors.New("unknown collection"))
		return "", false
	}
	return collection, true
}

func (a *API) handleCreateDocument(w http.ResponseWriter, r *http.Request, actor StoreActor) {
	collection, ok := validCollection(w, r)
	if !ok {
		return
	}

	var fields domain.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	doc, err := a.repo.CreateDocument(r.Context(), docstore.Document{
		StoreID:    actor.StoreID,
		Collection: collection,
		Fields:     fields,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (a *API) handleListDocuments(w http.ResponseWriter, r *http.Request, actor StoreActor) {
	collection, ok := validCollection(w, r)
	if !ok {
		return
	}

	docs, err := a.repo.ListDocuments(r.Context(), actor.StoreID, collection)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (a *API) handleGetDocument(w http.ResponseWriter, r *http.Request, actor StoreActor) {
	collection, ok := validCollection(w, r)
	if !ok {
		return
	}

	doc, err := a.repo.GetDocument(r.Context(), actor.StoreID, collection, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handleUpdateDocument(w http.ResponseWriter, r *http.Request, actor StoreActor) {
	collection, ok := validCollection(w, r)
	if !ok {
		return
	}

	var fields domain.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	doc, err := a.repo.UpdateDocument(r.Context(), actor.StoreID, collection, r.PathValue("id"), fields)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handleDeleteDocument(w http.ResponseWriter, r *http.Request, actor StoreActor) {
	collection, ok := validCollection(w, r)
	if !ok {
		return
	}

	if err := a.repo.DeleteDocument(r.Context(), actor.StoreID, collection, r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request, actor StoreActor) {
	if cached, ok, err := a.summaryCache.Get(r.Context(), actor.StoreID); err == nil && ok {
		writeJSON(w, http.StatusOK, cached)
		return
	} else if err != nil {
		log.Printf("[httpapi] WARN: summary cache read failed for %s: %v", actor.StoreID, err)
	}

	summary, err := a.buildSummary(r, actor.StoreID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if err := a.summaryCache.Set(r.Context(), actor.StoreID, &summary, a.summaryTTL); err != nil {
		log.Printf("[httpapi] WARN: summary cache write failed for %s: %v", actor.StoreID, err)
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) buildSummary(r *http.Request, storeID string) (domain.Summary, error) {
	products, err := decodeAll[domain.Product](a.repo, r, storeID, domain.CollectionProducts)
	if err != nil {
		return domain.Summary{}, err
	}
	sales, err := decodeAll[domain.Sale](a.repo, r, storeID, domain.CollectionSales)
	if err != nil {
		return domain.Summary{}, err
	}
	expenses, err := decodeAll[domain.Expense](a.repo, r, storeID, domain.CollectionExpenses)
	if err != nil {
		return domain.Summary{}, err
	}
	revenues, err := decodeAll[domain.Revenue](a.repo, r, storeID, domain.CollectionRevenues)
	if err != nil {
		return domain.Summary{}, err
	}
	return reports.Summarize(storeID, products, sales, expenses, revenues), nil
}

func decodeAll[T any](repo docstore.Repository, r *http.Request, storeID string, collection string) ([]T, error) {
	docs, err := repo.ListDocuments(r.Context(), storeID, collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := domain.FromFields(doc.Fields, &v); err != nil {
			log.Printf("[httpapi] WARN: skipping malformed %s document %s: %v", collection, doc.ID, err)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, docstore.ErrInvalid):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, docstore.ErrExists):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[httpapi] WARN: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}
