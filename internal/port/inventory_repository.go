package port

import (
	"context"

	"github.com/rl1809/commerce-core/internal/core/domain"
)

type InventoryRepository interface {
	// CreateInventory inserts a materialized row, failing if the key already exists
	CreateInventory(ctx context.Context, inv domain.Inventory) error

	// GetInventory returns the materialized row, or nil when absent
	GetInventory(ctx context.Context, key domain.InventoryKey) (*domain.Inventory, error)

	// UpdateInventory writes reserved and reorder settings with a version check
	UpdateInventory(ctx context.Context, inv domain.Inventory) error

	// DeleteInventory removes the materialized row and any pending journal rows
	DeleteInventory(ctx context.Context, key domain.InventoryKey) error

	// AppendJournal stores one delta row and returns its ID
	AppendJournal(ctx context.Context, entry domain.JournalEntry) (int64, error)

	// AppendJournalIf stores entry only if check accepts the current inventory
	// (materialized row plus pending journal). Read, check and insert are
	// serialized per key; returns the inventory with entry applied, or
	// ErrNotFound when the key has neither row nor journal.
	AppendJournalIf(ctx context.Context, entry domain.JournalEntry, check func(current domain.Inventory) error) (*domain.Inventory, error)

	// SumJournal folds the pending rows for key without consuming them
	SumJournal(ctx context.Context, key domain.InventoryKey) (domain.JournalSum, error)

	// RollupJournal merges the pending rows into the materialized row and deletes them in one transaction
	RollupJournal(ctx context.Context, key domain.InventoryKey) (domain.RollupResult, error)

	// PendingKeys lists keys that have journal rows waiting for rollup
	PendingKeys(ctx context.Context, limit int) ([]domain.InventoryKey, error)
}
