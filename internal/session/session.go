// Package session manages the tenant identity that scopes every remote
// query: create, join-by-id, logout. The identifier is persisted in the
// local settings slot so it survives document schema migrations.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"enjoygifts/backend/internal/domain"
	"enjoygifts/backend/internal/local"
	"enjoygifts/backend/internal/reconcile"
	"enjoygifts/backend/internal/remote"
)

// tokenSetter is implemented by remote clients that carry a store-scoped
// credential, such as the HTTP client.
type tokenSetter interface {
	SetToken(token string)
}

type Manager struct {
	store  local.Store
	remote remote.Client
	engine *reconcile.Engine
}

func New(store local.Store, remoteClient remote.Client, engine *reconcile.Engine) *Manager {
	return &Manager{
		store:  store,
		remote: remoteClient,
		engine: engine,
	}
}

// Restore rehydrates a persisted session on startup. A missing session is
// not an error: the caller proceeds unauthenticated until create/join.
func (m *Manager) Restore(ctx context.Context) (string, error) {
	storeID, err := m.store.GetSetting(ctx, local.SettingStoreID)
	if err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	m.engine.SetStoreID(storeID)
	if setter, ok := m.remote.(tokenSetter); ok {
		if token, err := m.store.GetSetting(ctx, local.SettingAuthToken); err == nil {
			setter.SetToken(token)
		}
	}
	return storeID, nil
}

// CreateStore allocates a new tenant on the remote, persists its
// identifier locally and returns it. The identifier is the only way to
// rejoin the store from another device, so callers must display it.
func (m *Manager) CreateStore(ctx context.Context, name string, owner string, adminPIN string) (*remote.StoreInfo, error) {
	name = strings.TrimSpace(name)
	owner = strings.TrimSpace(owner)
	if name == "" {
		return nil, errors.New("store name is required")
	}

	info, err := m.remote.CreateStore(ctx, name, owner, adminPIN)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	if err := m.persist(ctx, info); err != nil {
		return nil, err
	}
	m.engine.SetStoreID(info.ID)
	log.Printf("[session] store created: %s", info.ID)
	return info, nil
}

// JoinStore validates the id against the remote and, on success, persists
// it and pulls the store's records into the local store. On failure the
// previously persisted identifier is left untouched.
func (m *Manager) JoinStore(ctx context.Context, storeID string) (*remote.StoreInfo, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, errors.New("store id is required")
	}

	info, err := m.remote.JoinStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("join store %s: %w", storeID, err)
	}

	if err := m.persist(ctx, info); err != nil {
		return nil, err
	}
	m.engine.SetStoreID(info.ID)

	if err := m.engine.Resync(ctx); err != nil {
		// The session is established; the pull can be retried via manual
		// sync. Surface the error since the user asked for remote data.
		return info, fmt.Errorf("joined %s but initial sync failed: %w", storeID, err)
	}
	log.Printf("[session] joined store %s", info.ID)
	return info, nil
}

// Logout clears the persisted identifier and credential. Local records
// are kept: rejoining the same store does not require a full resync.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.DeleteSetting(ctx, local.SettingStoreID); err != nil {
		return err
	}
	if err := m.store.DeleteSetting(ctx, local.SettingAuthToken); err != nil {
		return err
	}
	m.engine.SetStoreID("")
	if setter, ok := m.remote.(tokenSetter); ok {
		setter.SetToken("")
	}
	log.Printf("[session] logged out")
	return nil
}

// Current returns the active tenant identifier, empty when logged out.
func (m *Manager) Current() string {
	return m.engine.StoreID()
}

func (m *Manager) persist(ctx context.Context, info *remote.StoreInfo) error {
	if err := m.store.PutSetting(ctx, local.SettingStoreID, info.ID); err != nil {
		return err
	}
	if info.Token != "" {
		if err := m.store.PutSetting(ctx, local.SettingAuthToken, info.Token); err != nil {
			return err
		}
	}
	if info.Name != "" {
		if err := m.store.PutSetting(ctx, local.SettingStoreName, info.Name); err != nil {
			return err
		}
	}
	if info.OwnerName != "" {
		if err := m.store.PutSetting(ctx, local.SettingOwnerName, info.OwnerName); err != nil {
			return err
		}
	}
	if info.CreatedAt != "" {
		if err := m.store.PutSetting(ctx, local.SettingStoreCreatedAt, info.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

// Info reads the persisted store details back out of the settings slot.
// It returns nil when no session is established.
func (m *Manager) Info(ctx context.Context) (*domain.StoreSettings, error) {
	storeID, err := m.store.GetSetting(ctx, local.SettingStoreID)
	if err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	settings := &domain.StoreSettings{StoreID: storeID}
	if name, err := m.store.GetSetting(ctx, local.SettingStoreName); err == nil {
		settings.Name = name
	}
	if owner, err := m.store.GetSetting(ctx, local.SettingOwnerName); err == nil {
		settings.OwnerName = owner
	}
	if createdAt, err := m.store.GetSetting(ctx, local.SettingStoreCreatedAt); err == nil {
		settings.CreatedAt = createdAt
	}
	return settings, nil
}
