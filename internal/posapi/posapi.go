// Package posapi exposes the point-of-sale operations over a localhost
// HTTP surface for the register UI. Every write goes through the
// reconciliation engine, so the register keeps working while the remote
// document API is unreachable.
package posapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"enjoygifts/backend/internal/domain"
	"enjoygifts/backend/internal/local"
	"enjoygifts/backend/internal/reconcile"
	"enjoygifts/backend/internal/remote"
	"enjoygifts/backend/internal/service"
	"enjoygifts/backend/internal/session"
)

// pinVerifier is implemented by remote clients that can check a store's
// admin PIN, such as the HTTP client.
type pinVerifier interface {
	VerifyPIN(ctx context.Context, storeID string, pin string) (bool, error)
}

type API struct {
	svc      *service.Service
	sessions *session.Manager
	engine   *reconcile.Engine
	pins     pinVerifier
}

func New(svc *service.Service, sessions *session.Manager, engine *reconcile.Engine, pins pinVerifier) *API {
	return &API{svc: svc, sessions: sessions, engine: engine, pins: pins}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/session", a.handleSession)
	mux.HandleFunc("POST /api/session/create", a.handleCreateStore)
	mux.HandleFunc("POST /api/session/join", a.handleJoinStore)
	mux.HandleFunc("POST /api/session/logout", a.handleLogout)

	mux.HandleFunc("POST /api/products", a.handleCreateProduct)
	mux.HandleFunc("GET /api/products", a.handleListProducts)
	mux.HandleFunc("PUT /api/products/{id}", a.handleUpdateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", a.handleDeleteProduct)

	mux.HandleFunc("POST /api/categories", a.handleAddCategory)
	mux.HandleFunc("GET /api/categories", a.handleListCategories)
	mux.HandleFunc("POST /api/customers", a.handleAddCustomer)
	mux.HandleFunc("GET /api/customers", a.handleListCustomers)

	mux.HandleFunc("POST /api/sales", a.handleCompleteSale)
	mux.HandleFunc("GET /api/sales", a.handleListSales)
	mux.HandleFunc("DELETE /api/sales/{id}", a.handleDeleteInvoice)

	mux.HandleFunc("POST /api/admin/verify-pin", a.handleVerifyPIN)
	mux.HandleFunc("GET /api/deleted-invoices", a.handleListDeletedInvoices)
	mux.HandleFunc("POST /api/deleted-invoices/{id}/restore", a.handleRestoreInvoice)
	mux.HandleFunc("DELETE /api/deleted-invoices/{id}", a.handlePurgeDeletedInvoice)

	mux.HandleFunc("POST /api/expenses", a.handleAddExpense)
	mux.HandleFunc("GET /api/expenses", a.handleListExpenses)
	mux.HandleFunc("DELETE /api/expenses/{id}", a.handleDeleteExpense)

	mux.HandleFunc("POST /api/revenues", a.handleAddRevenue)
	mux.HandleFunc("GET /api/revenues", a.handleListRevenues)
	mux.HandleFunc("DELETE /api/revenues/{id}", a.handleDeleteRevenue)

	mux.HandleFunc("GET /api/reports/summary", a.handleSummary)
	mux.HandleFunc("GET /api/export", a.handleExport)
	mux.HandleFunc("POST /api/import", a.handleImport)

	mux.HandleFunc("GET /api/sync/status", a.handleSyncStatus)
	mux.HandleFunc("POST /api/sync/now", a.handleSyncNow)

	return mux
}

func (a *API) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"store_id": a.sessions.Current()})
}

func (a *API) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		OwnerName string `json:"owner_name"`
		AdminPIN  string `json:"admin_pin"`
	}
	if !decode(w, r, &req) {
		return
	}
	info, err := a.sessions.CreateStore(r.Context(), req.Name, req.OwnerName, req.AdminPIN)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (a *API) handleJoinStore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StoreID string `json:"store_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	info, err := a.sessions.JoinStore(r.Context(), req.StoreID)
	if err != nil && info == nil {
		writeFailure(w, err)
		return
	}
	if err != nil {
		// Joined but the initial pull failed; the next drain cycle
		// retries, so report the session with a warning.
		log.Printf("[posapi] WARN: joined %s but initial sync failed: %v", info.ID, err)
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Logout(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"logged_out": true})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if !decode(w, r, &p) {
		return
	}
	id, err := a.svc.CreateProduct(r.Context(), p)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	records, err := a.svc.ListProducts(r.Context())
	writeList(w, records, err)
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if !decode(w, r, &p) {
		return
	}
	if err := a.svc.UpdateProduct(r.Context(), r.PathValue("id"), p); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteProduct(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (a *API) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var c domain.Category
	if !decode(w, r, &c) {
		return
	}
	id, err := a.svc.AddCategory(r.Context(), c)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	records, err := a.svc.ListCategories(r.Context())
	writeList(w, records, err)
}

func (a *API) handleAddCustomer(w http.ResponseWriter, r *http.Request) {
	var c domain.Customer
	if !decode(w, r, &c) {
		return
	}
	id, err := a.svc.AddCustomer(r.Context(), c)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	records, err := a.svc.ListCustomers(r.Context())
	writeList(w, records, err)
}

func (a *API) handleCompleteSale(w http.ResponseWriter, r *http.Request) {
	var req service.SaleRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := a.svc.CompleteSale(r.Context(), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from != "" || to != "" {
		records, err := a.svc.ListSalesByDate(r.Context(), from, to)
		writeList(w, records, err)
		return
	}
	records, err := a.svc.ListSales(r.Context())
	writeList(w, records, err)
}

func (a *API) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	deletedID, err := a.svc.DeleteInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted_invoice_id": deletedID})
}

// handleVerifyPIN checks the admin PIN against the remote. The register
// UI calls this before showing the deleted-invoice restore/purge tab.
func (a *API) handleVerifyPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AdminPIN string `json:"admin_pin"`
	}
	if !decode(w, r, &req) {
		return
	}
	storeID := a.sessions.Current()
	if storeID == "" {
		writeError(w, http.StatusUnauthorized, errors.New("no active session"))
		return
	}
	valid, err := a.pins.VerifyPIN(r.Context(), storeID, req.AdminPIN)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (a *API) handleListDeletedInvoices(w http.ResponseWriter, r *http.Request) {
	records, err := a.svc.ListDeletedInvoices(r.Context())
	writeList(w, records, err)
}

func (a *API) handleRestoreInvoice(w http.ResponseWriter, r *http.Request) {
	saleID, err := a.svc.RestoreInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sale_id": saleID})
}

func (a *API) handlePurgeDeletedInvoice(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.PurgeDeletedInvoice(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"purged": true})
}

func (a *API) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var e domain.Expense
	if !decode(w, r, &e) {
		return
	}
	id, err := a.svc.AddExpense(r.Context(), e)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	records, err := a.svc.ListExpenses(r.Context())
	writeList(w, records, err)
}

func (a *API) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (a *API) handleAddRevenue(w http.ResponseWriter, r *http.Request) {
	var rev domain.Revenue
	if !decode(w, r, &rev) {
		return
	}
	id, err := a.svc.AddRevenue(r.Context(), rev)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *API) handleListRevenues(w http.ResponseWriter, r *http.Request) {
	records, err := a.svc.ListRevenues(r.Context())
	writeList(w, records, err)
}

func (a *API) handleDeleteRevenue(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteRevenue(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.svc.Summary(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	settings, err := a.sessions.Info(r.Context())
	if err != nil {
		log.Printf("[posapi] WARN: reading store settings for export: %v", err)
	}
	doc, err := a.svc.Export(r.Context(), settings)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	var doc domain.ExportDocument
	if !decode(w, r, &doc) {
		return
	}
	result, err := a.svc.Import(r.Context(), doc)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := a.engine.Status(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Drain(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}
	status, err := a.engine.Status(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return false
	}
	return true
}

func writeList[T any](w http.ResponseWriter, records []service.Record[T], err error) {
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, local.ErrNotFound), errors.Is(err, remote.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case remote.IsTransient(err):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[posapi] WARN: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
