package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/commerce-core/internal/core/domain"
)

var ErrRollupLocked = errors.New("rollup already in progress")

const lockReleaseTimeout = 2 * time.Second

// ProcessRollup folds the pending journal rows of key into its materialized row.
// Rollups of the same key are serialized through the journal lock; merge and
// delete share one storage transaction.
func (s *InventoryService) ProcessRollup(ctx context.Context, key domain.InventoryKey) (domain.RollupResult, error) {
	if err := key.Validate(); err != nil {
		return domain.RollupResult{}, err
	}

	var result domain.RollupResult
	err := s.withJournalLock(ctx, key, func() error {
		var err error
		result, err = s.repo.RollupJournal(ctx, key)
		if err != nil {
			return fmt.Errorf("rollup %s: %w", key, err)
		}
		if result.RowsDeleted == 0 {
			return nil
		}

		s.logger.Info("journal rolled up",
			zap.String("sku", key.SkuCode),
			zap.Int64("warehouse", key.WarehouseID),
			zap.Int("rows", result.RowsDeleted),
			zap.Int("quantity_on_hand_delta", result.Applied.QuantityOnHand),
			zap.Int("allocated_delta", result.Applied.Allocated),
		)
		if result.Inventory != nil && result.Inventory.NeedsReorder() {
			s.logger.Warn("inventory at reorder point",
				zap.String("key", key.String()),
				zap.Int("quantity_on_hand", result.Inventory.QuantityOnHand),
				zap.Int("reorder_minimum", result.Inventory.ReorderMinimum),
				zap.Int("reorder_quantity", result.Inventory.ReorderQuantity),
			)
		}

		// The rollup is committed at this point; a lost event is not a rollup failure.
		if err := s.events.PublishRollup(ctx, result); err != nil {
			s.logger.Error("failed to publish rollup event", zap.String("key", key.String()), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return domain.RollupResult{}, err
	}
	return result, nil
}

// withJournalLock runs fn while holding the journal lock for key, failing
// with ErrRollupLocked when another holder has it.
func (s *InventoryService) withJournalLock(ctx context.Context, key domain.InventoryKey, fn func() error) error {
	token, err := s.locks.AcquireJournalLock(ctx, key, s.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire journal lock %s: %w", key, err)
	}
	if token == "" {
		return ErrRollupLocked
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
		defer cancel()
		if err := s.locks.ReleaseJournalLock(releaseCtx, key, token); err != nil {
			s.logger.Warn("failed to release journal lock", zap.String("key", key.String()), zap.Error(err))
		}
	}()

	return fn()
}

// SweepPending enqueues up to limit keys that still have journal rows.
func (s *InventoryService) SweepPending(ctx context.Context, limit int) (int, error) {
	keys, err := s.repo.PendingKeys(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending keys: %w", err)
	}

	queued := 0
	for _, key := range keys {
		if s.Enqueue(key) {
			queued++
		}
	}
	return queued, nil
}

// RunSweeper calls SweepPending every interval until ctx is done.
func (s *InventoryService) RunSweeper(ctx context.Context, interval time.Duration, limit int) {
	s.logger.Info("starting rollup sweeper", zap.Duration("interval", interval), zap.Int("limit", limit))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("rollup sweeper stopped")
			return
		case <-ticker.C:
			n, err := s.SweepPending(ctx, limit)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("rollup sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Debug("rollup sweep queued keys", zap.Int("count", n))
			}
		}
	}
}
