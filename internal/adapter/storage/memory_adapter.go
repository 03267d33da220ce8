package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/commerce-core/internal/core/domain"
)

type memoryEntry struct {
	value     string
	projected *domain.AttributeProjection
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryAdapter is a single-process stand-in for RedisAdapter, used by the
// CLI and by servers started without REDIS_ADDR.
type MemoryAdapter struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{entries: make(map[string]memoryEntry), now: time.Now}
}

// setNX stores e under key unless a live entry exists. Callers hold mu.
func (m *MemoryAdapter) setNX(key string, e memoryEntry) bool {
	if existing, ok := m.entries[key]; ok && !existing.expired(m.now()) {
		return false
	}
	m.entries[key] = e
	return true
}

func (m *MemoryAdapter) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *MemoryAdapter) AcquireJournalLock(ctx context.Context, key domain.InventoryKey, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := uuid.NewString()
	if !m.setNX(journalLockKey(key), memoryEntry{value: token, expiresAt: m.expiry(ttl)}) {
		return "", nil
	}
	return token, nil
}

func (m *MemoryAdapter) ReleaseJournalLock(ctx context.Context, key domain.InventoryKey, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := journalLockKey(key)
	if e, ok := m.entries[k]; ok && e.value == token {
		delete(m.entries, k)
	}
	return nil
}

func (m *MemoryAdapter) GetProjection(ctx context.Context, storeCode, attributeKey string) (*domain.AttributeProjection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[projectionKey(storeCode, attributeKey)]
	if !ok || e.expired(m.now()) || e.projected == nil {
		return nil, nil
	}
	p := *e.projected
	return &p, nil
}

func (m *MemoryAdapter) SetProjection(ctx context.Context, projection domain.AttributeProjection, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[projectionKey(projection.Store, projection.Attribute)] = memoryEntry{
		projected: &projection,
		expiresAt: m.expiry(ttl),
	}
	return nil
}

func (m *MemoryAdapter) DeleteProjection(ctx context.Context, storeCode, attributeKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, projectionKey(storeCode, attributeKey))
	return nil
}

func (m *MemoryAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setNX(key, memoryEntry{value: "1", expiresAt: m.expiry(idempotencyKeyTTL)}), nil
}

func (m *MemoryAdapter) ClearIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
