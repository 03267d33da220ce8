package port

import (
	"context"
	"time"

	"github.com/rl1809/commerce-core/internal/core/domain"
)

type LockRepository interface {
	// AcquireJournalLock takes the rollup lock for key, returns a release token or "" if held elsewhere
	AcquireJournalLock(ctx context.Context, key domain.InventoryKey, ttl time.Duration) (string, error)

	// ReleaseJournalLock drops the lock only if token still owns it
	ReleaseJournalLock(ctx context.Context, key domain.InventoryKey, token string) error
}

type ProjectionCache interface {
	// GetProjection returns the cached projection, or nil on a miss
	GetProjection(ctx context.Context, storeCode, attributeKey string) (*domain.AttributeProjection, error)

	SetProjection(ctx context.Context, projection domain.AttributeProjection, ttl time.Duration) error

	DeleteProjection(ctx context.Context, storeCode, attributeKey string) error
}

type IdempotencyStore interface {
	// SetIdempotency records key, returns false if it already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ClearIdempotency forgets key so the request can be retried
	ClearIdempotency(ctx context.Context, key string) error
}
