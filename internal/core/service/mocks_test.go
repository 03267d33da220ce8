package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rl1809/commerce-core/internal/core/domain"
	"github.com/rl1809/commerce-core/internal/port"
)

// Mock InventoryRepository
type mockInventoryRepo struct {
	mu        sync.Mutex
	inventory map[domain.InventoryKey]domain.Inventory
	journal   []domain.JournalEntry
	nextID    int64
	failWith  error
}

func newMockInventoryRepo() *mockInventoryRepo {
	return &mockInventoryRepo{inventory: make(map[domain.InventoryKey]domain.Inventory)}
}

func (m *mockInventoryRepo) CreateInventory(ctx context.Context, inv domain.Inventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.inventory[inv.Key()]; ok {
		return fmt.Errorf("insert inventory: %w", port.ErrAlreadyExists)
	}
	m.inventory[inv.Key()] = inv
	return nil
}

func (m *mockInventoryRepo) GetInventory(ctx context.Context, key domain.InventoryKey) (*domain.Inventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return nil, m.failWith
	}
	inv, ok := m.inventory[key]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (m *mockInventoryRepo) UpdateInventory(ctx context.Context, inv domain.Inventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.inventory[inv.Key()]
	if !ok {
		return port.ErrNotFound
	}
	if stored.Version != inv.Version {
		return port.ErrVersionConflict
	}
	stored.ReservedQuantity = inv.ReservedQuantity
	stored.ReorderMinimum = inv.ReorderMinimum
	stored.ReorderQuantity = inv.ReorderQuantity
	stored.RestockDate = inv.RestockDate
	stored.Version++
	m.inventory[inv.Key()] = stored
	return nil
}

func (m *mockInventoryRepo) DeleteInventory(ctx context.Context, key domain.InventoryKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.inventory[key]; !ok {
		return port.ErrNotFound
	}
	delete(m.inventory, key)

	kept := m.journal[:0]
	for _, e := range m.journal {
		if e.Key() != key {
			kept = append(kept, e)
		}
	}
	m.journal = kept
	return nil
}

func (m *mockInventoryRepo) AppendJournal(ctx context.Context, entry domain.JournalEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return 0, m.failWith
	}
	m.nextID++
	entry.ID = m.nextID
	m.journal = append(m.journal, entry)
	return entry.ID, nil
}

func (m *mockInventoryRepo) AppendJournalIf(ctx context.Context, entry domain.JournalEntry, check func(current domain.Inventory) error) (*domain.Inventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return nil, m.failWith
	}

	key := entry.Key()
	sum := m.sumLocked(key)
	inv, ok := m.inventory[key]
	if !ok {
		if sum.Rows == 0 {
			return nil, fmt.Errorf("append journal: %w", port.ErrNotFound)
		}
		inv = domain.NewInventory(key)
	}

	current := inv.Apply(sum.Delta)
	if err := check(current); err != nil {
		return nil, err
	}

	m.nextID++
	entry.ID = m.nextID
	m.journal = append(m.journal, entry)

	updated := current.Apply(entry.Delta())
	return &updated, nil
}

func (m *mockInventoryRepo) SumJournal(ctx context.Context, key domain.InventoryKey) (domain.JournalSum, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sumLocked(key), nil
}

func (m *mockInventoryRepo) sumLocked(key domain.InventoryKey) domain.JournalSum {
	var sum domain.JournalSum
	for _, e := range m.journal {
		if e.Key() == key {
			sum.Delta = sum.Delta.Add(e.Delta())
			sum.Rows++
			sum.MaxID = e.ID
		}
	}
	return sum
}

func (m *mockInventoryRepo) RollupJournal(ctx context.Context, key domain.InventoryKey) (domain.RollupResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum := m.sumLocked(key)
	result := domain.RollupResult{Key: key}
	if sum.Rows == 0 {
		return result, nil
	}

	inv, ok := m.inventory[key]
	if !ok {
		inv = domain.NewInventory(key)
	}
	inv = inv.Apply(sum.Delta)
	inv.Version++
	m.inventory[key] = inv

	kept := m.journal[:0]
	for _, e := range m.journal {
		if e.Key() != key {
			kept = append(kept, e)
		}
	}
	m.journal = kept

	result.Applied = sum.Delta
	result.RowsDeleted = sum.Rows
	result.Inventory = &inv
	return result, nil
}

func (m *mockInventoryRepo) PendingKeys(ctx context.Context, limit int) ([]domain.InventoryKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[domain.InventoryKey]bool)
	var keys []domain.InventoryKey
	for _, e := range m.journal {
		if !seen[e.Key()] && len(keys) < limit {
			seen[e.Key()] = true
			keys = append(keys, e.Key())
		}
	}
	return keys, nil
}

func (m *mockInventoryRepo) journalRows(key domain.InventoryKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sumLocked(key).Rows
}

// Mock LockRepository
type mockLocks struct {
	mu       sync.Mutex
	held     map[domain.InventoryKey]string
	acquired int
	released int
	err      error
}

func newMockLocks() *mockLocks {
	return &mockLocks{held: make(map[domain.InventoryKey]string)}
}

func (m *mockLocks) AcquireJournalLock(ctx context.Context, key domain.InventoryKey, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}
	if _, ok := m.held[key]; ok {
		return "", nil
	}
	m.acquired++
	token := fmt.Sprintf("token-%d", m.acquired)
	m.held[key] = token
	return token, nil
}

func (m *mockLocks) ReleaseJournalLock(ctx context.Context, key domain.InventoryKey, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held[key] == token {
		delete(m.held, key)
		m.released++
	}
	return nil
}

// Mock IdempotencyStore
type mockIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMockIdempotency() *mockIdempotency {
	return &mockIdempotency{keys: make(map[string]bool)}
}

func (m *mockIdempotency) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockIdempotency) ClearIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

// Mock EventPublisher
type mockPublisher struct {
	mu     sync.Mutex
	events []domain.RollupResult
	err    error
}

func (m *mockPublisher) PublishRollup(ctx context.Context, result domain.RollupResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, result)
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// Mock CatalogRepository
type mockCatalogRepo struct {
	mu         sync.Mutex
	stores     map[string]domain.Store
	catalogs   map[string]domain.Catalog
	values     map[string]domain.LocaleValues
	valueReads int
}

func newMockCatalogRepo() *mockCatalogRepo {
	return &mockCatalogRepo{
		stores:   make(map[string]domain.Store),
		catalogs: make(map[string]domain.Catalog),
		values:   make(map[string]domain.LocaleValues),
	}
}

func (m *mockCatalogRepo) GetStore(ctx context.Context, code string) (*domain.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stores[code]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *mockCatalogRepo) SaveStore(ctx context.Context, store domain.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[store.Code] = store
	return nil
}

func (m *mockCatalogRepo) GetCatalog(ctx context.Context, code string) (*domain.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.catalogs[code]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *mockCatalogRepo) SaveCatalog(ctx context.Context, catalog domain.Catalog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalogs[catalog.Code] = catalog
	return nil
}

func (m *mockCatalogRepo) GetAttributeValues(ctx context.Context, catalogCode, attributeKey string) (domain.LocaleValues, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.valueReads++
	out := make(domain.LocaleValues)
	for k, v := range m.values[catalogCode+"/"+attributeKey] {
		out[k] = v
	}
	return out, nil
}

func (m *mockCatalogRepo) SaveAttributeValues(ctx context.Context, catalogCode, attributeKey string, values domain.LocaleValues) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := catalogCode + "/" + attributeKey
	if m.values[key] == nil {
		m.values[key] = make(domain.LocaleValues)
	}
	for k, v := range values {
		m.values[key][k] = v
	}
	return nil
}

// Mock ProjectionCache
type mockProjectionCache struct {
	mu          sync.Mutex
	projections map[string]domain.AttributeProjection
	err         error
}

func newMockProjectionCache() *mockProjectionCache {
	return &mockProjectionCache{projections: make(map[string]domain.AttributeProjection)}
}

func (m *mockProjectionCache) GetProjection(ctx context.Context, storeCode, attributeKey string) (*domain.AttributeProjection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.projections[storeCode+"/"+attributeKey]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockProjectionCache) SetProjection(ctx context.Context, projection domain.AttributeProjection, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.projections[projection.Store+"/"+projection.Attribute] = projection
	return nil
}

func (m *mockProjectionCache) DeleteProjection(ctx context.Context, storeCode, attributeKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projections, storeCode+"/"+attributeKey)
	return nil
}

var errBoom = errors.New("boom")
