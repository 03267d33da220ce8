package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/commerce-core/internal/core/domain"
	"github.com/rl1809/commerce-core/internal/port"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInventoryNotFound = errors.New("inventory not found")
	ErrInventoryExists   = errors.New("inventory already exists")
	ErrStaleInventory    = errors.New("inventory was modified concurrently")
	ErrDuplicateRequest  = errors.New("duplicate request")
)

type InventoryService struct {
	repo    port.InventoryRepository
	locks   port.LockRepository
	idem    port.IdempotencyStore
	events  port.EventPublisher
	logger  *zap.Logger
	lockTTL time.Duration
	now     func() time.Time

	mu          sync.RWMutex
	closed      bool
	rollupQueue chan domain.InventoryKey
}

func NewInventoryService(
	repo port.InventoryRepository,
	locks port.LockRepository,
	idem port.IdempotencyStore,
	events port.EventPublisher,
	logger *zap.Logger,
	queueSize int,
	lockTTL time.Duration,
) *InventoryService {
	return &InventoryService{
		repo:        repo,
		locks:       locks,
		idem:        idem,
		events:      events,
		logger:      logger,
		lockTTL:     lockTTL,
		now:         time.Now,
		rollupQueue: make(chan domain.InventoryKey, queueSize),
	}
}

func (s *InventoryService) CreateInventory(ctx context.Context, inv domain.Inventory) (*domain.Inventory, error) {
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	if inv.AvailabilityCriteria == 0 {
		inv.AvailabilityCriteria = domain.AvailableWhenInStock
	}

	now := s.now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	inv.Version = 0

	if err := s.repo.CreateInventory(ctx, inv); err != nil {
		if errors.Is(err, port.ErrAlreadyExists) {
			return nil, ErrInventoryExists
		}
		return nil, fmt.Errorf("create inventory %s: %w", inv.Key(), err)
	}

	if err := s.appendJournal(ctx, inv.Key(), domain.EventInventoryCreated, domain.InventoryDelta{}); err != nil {
		return nil, err
	}

	s.logger.Info("inventory created",
		zap.String("sku", inv.SkuCode),
		zap.Int64("warehouse", inv.WarehouseID),
		zap.Int("quantity_on_hand", inv.QuantityOnHand),
	)
	return &inv, nil
}

// GetInventory returns the materialized row with pending journal deltas applied.
func (s *InventoryService) GetInventory(ctx context.Context, key domain.InventoryKey) (*domain.Inventory, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	inv, err := s.repo.GetInventory(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get inventory %s: %w", key, err)
	}

	sum, err := s.repo.SumJournal(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("sum journal %s: %w", key, err)
	}

	if inv == nil {
		if sum.Rows == 0 {
			return nil, ErrInventoryNotFound
		}
		blank := domain.NewInventory(key)
		inv = &blank
	}

	current := inv.Apply(sum.Delta)
	return &current, nil
}

// UpdateInventory changes reserved quantity and reorder settings.
// inv.Version must match the stored row.
func (s *InventoryService) UpdateInventory(ctx context.Context, inv domain.Inventory) (*domain.Inventory, error) {
	current, err := s.GetInventory(ctx, inv.Key())
	if err != nil {
		return nil, err
	}

	merged := *current
	merged.ReservedQuantity = inv.ReservedQuantity
	merged.ReorderMinimum = inv.ReorderMinimum
	merged.ReorderQuantity = inv.ReorderQuantity
	merged.RestockDate = inv.RestockDate
	if inv.AvailabilityCriteria != 0 {
		merged.AvailabilityCriteria = inv.AvailabilityCriteria
	}
	merged.Version = inv.Version
	merged.UpdatedAt = s.now().UTC()

	if err := merged.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateInventory(ctx, merged); err != nil {
		switch {
		case errors.Is(err, port.ErrVersionConflict):
			return nil, ErrStaleInventory
		case errors.Is(err, port.ErrNotFound):
			return nil, ErrInventoryNotFound
		}
		return nil, fmt.Errorf("update inventory %s: %w", inv.Key(), err)
	}

	merged.Version++
	return &merged, nil
}

// DeleteInventory removes the row and its journal under the journal lock, so
// an in-flight rollup cannot write the row back. Fails with ErrRollupLocked
// while a rollup holds the lock.
func (s *InventoryService) DeleteInventory(ctx context.Context, key domain.InventoryKey) error {
	if err := key.Validate(); err != nil {
		return err
	}

	err := s.withJournalLock(ctx, key, func() error {
		return s.repo.DeleteInventory(ctx, key)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrRollupLocked):
			return err
		case errors.Is(err, port.ErrNotFound):
			return ErrInventoryNotFound
		}
		return fmt.Errorf("delete inventory %s: %w", key, err)
	}

	s.logger.Info("inventory deleted", zap.String("sku", key.SkuCode), zap.Int64("warehouse", key.WarehouseID))
	return nil
}

// AdjustQuantityOnHand records a receipt (positive) or write-off (negative).
// A write-off may not take on-hand below reserved plus allocated.
func (s *InventoryService) AdjustQuantityOnHand(ctx context.Context, key domain.InventoryKey, delta int) (*domain.Inventory, error) {
	if delta == 0 {
		return nil, ErrInvalidQuantity
	}

	return s.record(ctx, key, domain.EventStockAdjustment, domain.InventoryDelta{QuantityOnHand: delta}, func(current domain.Inventory) error {
		if delta < 0 && current.QuantityOnHand+delta < current.ReservedQuantity+current.AllocatedQuantity {
			return ErrInsufficientStock
		}
		return nil
	})
}

// Allocate commits qty units to an order. Only AVAILABLE_WHEN_IN_STOCK rows
// need available stock; pre-order, back-order and always-available rows may
// allocate beyond it.
func (s *InventoryService) Allocate(ctx context.Context, key domain.InventoryKey, qty int) (*domain.Inventory, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	return s.record(ctx, key, domain.EventStockAllocate, domain.InventoryDelta{Allocated: qty}, func(current domain.Inventory) error {
		if !current.CanAllocate(qty) {
			return ErrInsufficientStock
		}
		return nil
	})
}

// AllocateOnce is Allocate guarded by a request ID. A repeated ID fails with
// ErrDuplicateRequest; a failed allocation frees the ID for a retry.
func (s *InventoryService) AllocateOnce(ctx context.Context, requestID string, key domain.InventoryKey, qty int) (*domain.Inventory, error) {
	idempotencyKey := fmt.Sprintf("allocate:%s:%s", requestID, key)

	ok, err := s.idem.SetIdempotency(ctx, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return nil, ErrDuplicateRequest
	}

	inv, err := s.Allocate(ctx, key, qty)
	if err != nil {
		if clearErr := s.idem.ClearIdempotency(context.WithoutCancel(ctx), idempotencyKey); clearErr != nil {
			s.logger.Warn("failed to clear idempotency key", zap.String("key", idempotencyKey), zap.Error(clearErr))
		}
		return nil, err
	}
	return inv, nil
}

func (s *InventoryService) Deallocate(ctx context.Context, key domain.InventoryKey, qty int) (*domain.Inventory, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	return s.record(ctx, key, domain.EventStockDeallocate, domain.InventoryDelta{Allocated: -qty}, func(current domain.Inventory) error {
		if current.AllocatedQuantity < qty {
			return ErrInsufficientStock
		}
		return nil
	})
}

// Release ships allocated stock: both on-hand and allocated drop by qty.
func (s *InventoryService) Release(ctx context.Context, key domain.InventoryKey, qty int) (*domain.Inventory, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	return s.record(ctx, key, domain.EventStockRelease, domain.InventoryDelta{QuantityOnHand: -qty, Allocated: -qty}, func(current domain.Inventory) error {
		if current.AllocatedQuantity < qty || current.QuantityOnHand < qty {
			return ErrInsufficientStock
		}
		return nil
	})
}

// record appends one journal row if check accepts the current inventory.
// The repository serializes check and append per key.
func (s *InventoryService) record(
	ctx context.Context,
	key domain.InventoryKey,
	event domain.InventoryEventType,
	delta domain.InventoryDelta,
	check func(current domain.Inventory) error,
) (*domain.Inventory, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	updated, err := s.repo.AppendJournalIf(ctx, s.journalEntry(key, event, delta), check)
	if err != nil {
		switch {
		case errors.Is(err, port.ErrNotFound):
			return nil, ErrInventoryNotFound
		case errors.Is(err, ErrInsufficientStock):
			return nil, err
		}
		return nil, fmt.Errorf("append journal %s: %w", key, err)
	}

	s.logger.Debug("journal entry recorded",
		zap.String("sku", key.SkuCode),
		zap.Int64("warehouse", key.WarehouseID),
		zap.Stringer("event", event),
		zap.Int("quantity_on_hand_delta", delta.QuantityOnHand),
		zap.Int("allocated_delta", delta.Allocated),
	)

	s.Enqueue(key)
	return updated, nil
}

func (s *InventoryService) journalEntry(key domain.InventoryKey, event domain.InventoryEventType, delta domain.InventoryDelta) domain.JournalEntry {
	return domain.JournalEntry{
		SkuCode:                key.SkuCode,
		WarehouseID:            key.WarehouseID,
		QuantityOnHandDelta:    delta.QuantityOnHand,
		AllocatedQuantityDelta: delta.Allocated,
		EventType:              event,
		CreatedAt:              s.now().UTC(),
	}
}

// appendJournal stores an unconditional row, used for lifecycle events.
func (s *InventoryService) appendJournal(ctx context.Context, key domain.InventoryKey, event domain.InventoryEventType, delta domain.InventoryDelta) error {
	if _, err := s.repo.AppendJournal(ctx, s.journalEntry(key, event, delta)); err != nil {
		return fmt.Errorf("append journal %s: %w", key, err)
	}

	s.Enqueue(key)
	return nil
}

// Enqueue schedules a rollup for key. A full queue leaves the key to the sweeper.
func (s *InventoryService) Enqueue(key domain.InventoryKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.rollupQueue <- key:
		return true
	default:
		s.logger.Debug("rollup queue full", zap.String("key", key.String()))
		return false
	}
}

func (s *InventoryService) GetRollupQueue() <-chan domain.InventoryKey {
	return s.rollupQueue
}

func (s *InventoryService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.rollupQueue)
	}
}
