package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/commerce-core/internal/core/domain"
)

var testKey = domain.InventoryKey{SkuCode: "sku-1", WarehouseID: 1}

type inventoryFixture struct {
	svc    *InventoryService
	repo   *mockInventoryRepo
	locks  *mockLocks
	idem   *mockIdempotency
	events *mockPublisher
}

func newInventoryFixture(t *testing.T, queueSize int) *inventoryFixture {
	t.Helper()

	f := &inventoryFixture{
		repo:   newMockInventoryRepo(),
		locks:  newMockLocks(),
		idem:   newMockIdempotency(),
		events: &mockPublisher{},
	}
	f.svc = NewInventoryService(f.repo, f.locks, f.idem, f.events, zap.NewNop(), queueSize, time.Minute)
	t.Cleanup(f.svc.Close)
	return f
}

func (f *inventoryFixture) seed(t *testing.T, onHand int) {
	t.Helper()
	_, err := f.svc.CreateInventory(context.Background(), domain.Inventory{
		SkuCode:        testKey.SkuCode,
		WarehouseID:    testKey.WarehouseID,
		QuantityOnHand: onHand,
	})
	require.NoError(t, err)
}

func TestCreateInventory(t *testing.T) {
	f := newInventoryFixture(t, 100)
	ctx := context.Background()

	f.seed(t, 10)

	_, err := f.svc.CreateInventory(ctx, domain.Inventory{SkuCode: "sku-1", WarehouseID: 1})
	assert.ErrorIs(t, err, ErrInventoryExists)

	_, err = f.svc.CreateInventory(ctx, domain.Inventory{SkuCode: "sku-2", WarehouseID: 1, QuantityOnHand: 1, ReservedQuantity: 2})
	assert.ErrorIs(t, err, domain.ErrInvalidInventory)

	// creation journals a zero row and schedules a rollup
	assert.Equal(t, 1, f.repo.journalRows(testKey))
	assert.Equal(t, testKey, <-f.svc.GetRollupQueue())
}

func TestGetInventory_AppliesPendingJournal(t *testing.T) {
	f := newInventoryFixture(t, 100)
	ctx := context.Background()
	f.seed(t, 10)

	_, err := f.svc.Allocate(ctx, testKey, 4)
	require.NoError(t, err)
	_, err = f.svc.AdjustQuantityOnHand(ctx, testKey, 5)
	require.NoError(t, err)

	inv, err := f.svc.GetInventory(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 15, inv.QuantityOnHand)
	assert.Equal(t, 4, inv.AllocatedQuantity)
	assert.Equal(t, 11, inv.AvailableQuantity())

	_, err = f.svc.GetInventory(ctx, domain.InventoryKey{SkuCode: "missing", WarehouseID: 1})
	assert.ErrorIs(t, err, ErrInventoryNotFound)

	_, err = f.svc.GetInventory(ctx, domain.InventoryKey{SkuCode: "", WarehouseID: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInventory)
}

func TestGetInventory_RepositoryError(t *testing.T) {
	f := newInventoryFixture(t, 100)
	f.repo.failWith = errBoom

	_, err := f.svc.GetInventory(context.Background(), testKey)
	assert.ErrorIs(t, err, errBoom)
}

func TestJournalCommands(t *testing.T) {
	tests := []struct {
		name    string
		run     func(s *InventoryService) (*domain.Inventory, error)
		wantErr error
		onHand  int
		alloc   int
	}{
		{
			name:   "allocate",
			run:    func(s *InventoryService) (*domain.Inventory, error) { return s.Allocate(context.Background(), testKey, 3) },
			onHand: 10, alloc: 5,
		},
		{
			name:    "allocate more than available",
			run:     func(s *InventoryService) (*domain.Inventory, error) { return s.Allocate(context.Background(), testKey, 9) },
			wantErr: ErrInsufficientStock,
		},
		{
			name:    "allocate zero",
			run:     func(s *InventoryService) (*domain.Inventory, error) { return s.Allocate(context.Background(), testKey, 0) },
			wantErr: ErrInvalidQuantity,
		},
		{
			name:   "deallocate",
			run:    func(s *InventoryService) (*domain.Inventory, error) { return s.Deallocate(context.Background(), testKey, 2) },
			onHand: 10, alloc: 0,
		},
		{
			name:    "deallocate more than allocated",
			run:     func(s *InventoryService) (*domain.Inventory, error) { return s.Deallocate(context.Background(), testKey, 3) },
			wantErr: ErrInsufficientStock,
		},
		{
			name:   "release",
			run:    func(s *InventoryService) (*domain.Inventory, error) { return s.Release(context.Background(), testKey, 2) },
			onHand: 8, alloc: 0,
		},
		{
			name:    "release negative",
			run:     func(s *InventoryService) (*domain.Inventory, error) { return s.Release(context.Background(), testKey, -1) },
			wantErr: ErrInvalidQuantity,
		},
		{
			name:   "adjust down",
			run:    func(s *InventoryService) (*domain.Inventory, error) { return s.AdjustQuantityOnHand(context.Background(), testKey, -8) },
			onHand: 2, alloc: 2,
		},
		{
			name:    "adjust below allocated",
			run:     func(s *InventoryService) (*domain.Inventory, error) { return s.AdjustQuantityOnHand(context.Background(), testKey, -9) },
			wantErr: ErrInsufficientStock,
		},
		{
			name:    "adjust by zero",
			run:     func(s *InventoryService) (*domain.Inventory, error) { return s.AdjustQuantityOnHand(context.Background(), testKey, 0) },
			wantErr: ErrInvalidQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInventoryFixture(t, 100)
			f.seed(t, 10)
			_, err := f.svc.Allocate(context.Background(), testKey, 2)
			require.NoError(t, err)

			inv, err := tt.run(f.svc)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, inv)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.onHand, inv.QuantityOnHand)
			assert.Equal(t, tt.alloc, inv.AllocatedQuantity)

			current, err := f.svc.GetInventory(context.Background(), testKey)
			require.NoError(t, err)
			assert.Equal(t, *inv, *current)
		})
	}
}

func TestJournalCommands_UnknownKey(t *testing.T) {
	f := newInventoryFixture(t, 100)

	_, err := f.svc.Allocate(context.Background(), testKey, 1)
	assert.ErrorIs(t, err, ErrInventoryNotFound)
}

func TestAllocateOnce(t *testing.T) {
	f := newInventoryFixture(t, 100)
	ctx := context.Background()
	f.seed(t, 3)

	_, err := f.svc.AllocateOnce(ctx, "req-1", testKey, 2)
	require.NoError(t, err)

	_, err = f.svc.AllocateOnce(ctx, "req-1", testKey, 2)
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	// a failed allocation frees the request id
	_, err = f.svc.AllocateOnce(ctx, "req-2", testKey, 5)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	_, err = f.svc.AllocateOnce(ctx, "req-2", testKey, 1)
	require.NoError(t, err)

	inv, err := f.svc.GetInventory(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 3, inv.AllocatedQuantity)
}

func TestAllocateOnce_Concurrent(t *testing.T) {
	f := newInventoryFixture(t, 1000)
	f.seed(t, 50)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.AllocateOnce(context.Background(), "same-request", testKey, 1); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load())
}

func TestUpdateInventory(t *testing.T) {
	f := newInventoryFixture(t, 100)
	ctx := context.Background()
	f.seed(t, 10)

	restock := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	inv, err := f.svc.UpdateInventory(ctx, domain.Inventory{
		SkuCode: testKey.SkuCode, WarehouseID: testKey.WarehouseID,
		ReservedQuantity: 4, ReorderMinimum: 2, ReorderQuantity: 20, RestockDate: &restock,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, inv.ReservedQuantity)
	assert.Equal(t, 1, inv.Version)
	assert.Equal(t, 6, inv.AvailableQuantity())

	// stale version
	_, err = f.svc.UpdateInventory(ctx, domain.Inventory{SkuCode: testKey.SkuCode, WarehouseID: testKey.WarehouseID})
	assert.ErrorIs(t, err, ErrStaleInventory)

	// reserved may not exceed on hand
	_, err = f.svc.UpdateInventory(ctx, domain.Inventory{
		SkuCode: testKey.SkuCode, WarehouseID: testKey.WarehouseID, ReservedQuantity: 11, Version: 1,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInventory)
}

func TestDeleteInventory(t *testing.T) {
	f := newInventoryFixture(t, 100)
	ctx := context.Background()
	f.seed(t, 10)

	require.NoError(t, f.svc.DeleteInventory(ctx, testKey))
	assert.Equal(t, 0, f.repo.journalRows(testKey))

	assert.ErrorIs(t, f.svc.DeleteInventory(ctx, testKey), ErrInventoryNotFound)
}

func TestEnqueue_FullQueueAndClose(t *testing.T) {
	f := newInventoryFixture(t, 1)

	assert.True(t, f.svc.Enqueue(testKey))
	assert.False(t, f.svc.Enqueue(testKey), "queue of one is full")

	f.svc.Close()
	f.svc.Close()
	assert.False(t, f.svc.Enqueue(testKey), "closed queue rejects keys")

	_, open := <-f.svc.GetRollupQueue()
	assert.True(t, open, "buffered key still drains")
	_, open = <-f.svc.GetRollupQueue()
	assert.False(t, open)
}

func TestAllocate_ConcurrentNeverOversells(t *testing.T) {
	f := newInventoryFixture(t, 1000)
	f.seed(t, 10)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Allocate(context.Background(), testKey, 1)
			switch {
			case err == nil:
				successCount.Add(1)
			case !errors.Is(err, ErrInsufficientStock):
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), successCount.Load())

	inv, err := f.svc.GetInventory(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, 10, inv.AllocatedQuantity)
	assert.Equal(t, 0, inv.AvailableQuantity())
}

func TestAllocate_AvailabilityCriteria(t *testing.T) {
	tests := []struct {
		criteria domain.AvailabilityCriteria
		wantErr  error
	}{
		{criteria: domain.AvailableWhenInStock, wantErr: ErrInsufficientStock},
		{criteria: domain.AlwaysAvailable},
		{criteria: domain.AvailableForPreOrder},
		{criteria: domain.AvailableForBackOrder},
	}

	for _, tt := range tests {
		t.Run(tt.criteria.String(), func(t *testing.T) {
			f := newInventoryFixture(t, 100)
			ctx := context.Background()

			_, err := f.svc.CreateInventory(ctx, domain.Inventory{
				SkuCode: testKey.SkuCode, WarehouseID: testKey.WarehouseID,
				QuantityOnHand: 2, AvailabilityCriteria: tt.criteria,
			})
			require.NoError(t, err)

			inv, err := f.svc.Allocate(ctx, testKey, 5)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 5, inv.AllocatedQuantity)

			// receipts still land when allocations exceed stock
			inv, err = f.svc.AdjustQuantityOnHand(ctx, testKey, 1)
			require.NoError(t, err)
			assert.Equal(t, 3, inv.QuantityOnHand)
		})
	}
}

func TestCreateInventory_DefaultsAvailability(t *testing.T) {
	f := newInventoryFixture(t, 100)
	f.seed(t, 1)

	inv, err := f.svc.GetInventory(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, domain.AvailableWhenInStock, inv.AvailabilityCriteria)
}

func TestDeleteInventory_WhileRollupLocked(t *testing.T) {
	f := newInventoryFixture(t, 100)
	ctx := context.Background()
	f.seed(t, 10)

	token, err := f.locks.AcquireJournalLock(ctx, testKey, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.ErrorIs(t, f.svc.DeleteInventory(ctx, testKey), ErrRollupLocked)

	_, err = f.svc.GetInventory(ctx, testKey)
	require.NoError(t, err, "row survives a refused delete")

	require.NoError(t, f.locks.ReleaseJournalLock(ctx, testKey, token))
	require.NoError(t, f.svc.DeleteInventory(ctx, testKey))

	again, err := f.locks.AcquireJournalLock(ctx, testKey, time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, again, "delete releases its own lock")
}
