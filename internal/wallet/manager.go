package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yolodolo42/txflow/internal/logging"
)

const (
	ActiveWalletKey     = "txflow:active-wallet-id"
	ConnectedWalletsKey = "txflow:connected-wallet-ids"
)

// Manager tracks connected wallets and which one is active. The active ID
// and connected set are persisted so a later process can restore them.
type Manager struct {
	storage Storage
	logger  zerolog.Logger

	mu        sync.RWMutex
	connected map[string]Adapter
	order     []string
	active    string
}

func NewManager(storage Storage, logger zerolog.Logger) *Manager {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &Manager{
		storage:   storage,
		logger:    logging.Component(logger, "wallet-manager"),
		connected: make(map[string]Adapter),
	}
}

// Connect connects w and makes it active
func (m *Manager) Connect(ctx context.Context, w Adapter, opts ConnectOptions) error {
	if err := w.Connect(ctx, opts); err != nil {
		return err
	}

	m.mu.Lock()
	id := w.ID()
	if _, ok := m.connected[id]; !ok {
		m.order = append(m.order, id)
	}
	m.connected[id] = w
	m.active = id
	ids := append([]string(nil), m.order...)
	m.mu.Unlock()

	m.logger.Info().Str("wallet_id", id).Str("kind", string(w.Kind())).Str("address", w.Address().Hex()).Msg("wallet active")
	return m.persist(ctx, id, ids)
}

// SetActive switches the active wallet. The previous one stays connected.
func (m *Manager) SetActive(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.connected[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrWalletNotFound, id)
	}
	m.active = id
	ids := append([]string(nil), m.order...)
	m.mu.Unlock()

	return m.persist(ctx, id, ids)
}

// Active returns the active wallet, or nil when none is
func (m *Manager) Active() Adapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == "" {
		return nil
	}
	return m.connected[m.active]
}

// Connected returns connected wallets in connection order
func (m *Manager) Connected() []Adapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Adapter, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.connected[id])
	}
	return out
}

// Get returns a connected wallet by ID
func (m *Manager) Get(id string) (Adapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.connected[id]
	return w, ok
}

// Disconnect disconnects a wallet and drops it from the connected set. When
// it was active no wallet is active afterwards.
func (m *Manager) Disconnect(ctx context.Context, id string) error {
	m.mu.Lock()
	w, ok := m.connected[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrWalletNotFound, id)
	}
	delete(m.connected, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.active == id {
		m.active = ""
	}
	active := m.active
	ids := append([]string(nil), m.order...)
	m.mu.Unlock()

	if err := w.Disconnect(ctx); err != nil {
		m.logger.Warn().Err(err).Str("wallet_id", id).Msg("wallet disconnect failed")
	}
	return m.persist(ctx, active, ids)
}

// LastActiveID returns the persisted active wallet ID
func (m *Manager) LastActiveID(ctx context.Context) (string, bool, error) {
	return m.storage.Get(ctx, ActiveWalletKey)
}

// LastConnectedIDs returns the persisted connected wallet IDs
func (m *Manager) LastConnectedIDs(ctx context.Context) ([]string, error) {
	raw, ok, err := m.storage.Get(ctx, ConnectedWalletsKey)
	if err != nil || !ok {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("invalid connected wallets record: %w", err)
	}
	return ids, nil
}

func (m *Manager) persist(ctx context.Context, active string, ids []string) error {
	if active == "" {
		if err := m.storage.Remove(ctx, ActiveWalletKey); err != nil {
			return fmt.Errorf("failed to persist active wallet: %w", err)
		}
	} else if err := m.storage.Set(ctx, ActiveWalletKey, active); err != nil {
		return fmt.Errorf("failed to persist active wallet: %w", err)
	}

	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := m.storage.Set(ctx, ConnectedWalletsKey, string(raw)); err != nil {
		return fmt.Errorf("failed to persist connected wallets: %w", err)
	}
	return nil
}
