package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"enjoygifts/backend/internal/domain"
	"enjoygifts/backend/internal/remote"
)

// Client talks to the hosted document API over HTTP. Transport failures
// and server-side errors map onto the remote error taxonomy: 404 becomes
// remote.ErrNotFound, connection errors, timeouts, 429 and 5xx become
// TransientError, everything else is returned as-is.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken installs the store-scoped credential issued by create/join.
// The session manager calls this after restoring a persisted session.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) CreateStore(ctx context.Context, name string, owner string, adminPIN string) (*remote.StoreInfo, error) {
	payload := map[string]string{"name": name, "owner_name": owner, "admin_pin": adminPIN}
	var info remote.StoreInfo
	if err := c.do(ctx, http.MethodPost, "/api/v1/stores", payload, &info); err != nil {
		return nil, err
	}
	c.SetToken(info.Token)
	return &info, nil
}

func (c *Client) JoinStore(ctx context.Context, storeID string) (*remote.StoreInfo, error) {
	var info remote.StoreInfo
	path := "/api/v1/stores/" + url.PathEscape(storeID) + "/join"
	if err := c.do(ctx, http.MethodPost, path, nil, &info); err != nil {
		return nil, err
	}
	c.SetToken(info.Token)
	return &info, nil
}

// VerifyPIN checks the store's admin PIN against the remote. The register
// UI gates its admin tab on this before exposing restore and purge.
func (c *Client) VerifyPIN(ctx context.Context, storeID string, pin string) (bool, error) {
	payload := map[string]string{"admin_pin": pin}
	var resp struct {
		Valid bool `json:"valid"`
	}
	path := "/api/v1/stores/" + url.PathEscape(storeID) + "/verify-pin"
	if err := c.do(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

func (c *Client) Create(ctx context.Context, collection string, fields domain.Fields) (string, error) {
	var doc remote.Document
	path := "/api/v1/collections/" + url.PathEscape(collection) + "/documents"
	if err := c.do(ctx, http.MethodPost, path, fields, &doc); err != nil {
		return "", err
	}
	return doc.RemoteID, nil
}

func (c *Client) Get(ctx context.Context, collection string, remoteID string) (*remote.Document, error) {
	var doc remote.Document
	path := documentPath(collection, remoteID)
	if err := c.do(ctx, http.MethodGet, path, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) List(ctx context.Context, collection string) ([]remote.Document, error) {
	var resp struct {
		Documents []remote.Document `json:"documents"`
	}
	path := "/api/v1/collections/" + url.PathEscape(collection) + "/documents"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

func (c *Client) Update(ctx context.Context, collection string, remoteID string, fields domain.Fields) error {
	return c.do(ctx, http.MethodPatch, documentPath(collection, remoteID), fields, nil)
}

func (c *Client) Delete(ctx context.Context, collection string, remoteID string) error {
	return c.do(ctx, http.MethodDelete, documentPath(collection, remoteID), nil, nil)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func documentPath(collection string, remoteID string) string {
	return "/api/v1/collections/" + url.PathEscape(collection) + "/documents/" + url.PathEscape(remoteID)
}

func (c *Client) do(ctx context.Context, method string, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return remote.Transient(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return remote.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return remote.Transient(fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	case resp.StatusCode >= 400:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode response: %w", err)
	}
	return nil
}
