package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidInventory = errors.New("invalid inventory")

type InventoryKey struct {
	SkuCode     string `json:"sku_code"`
	WarehouseID int64  `json:"warehouse_id"`
}

func (k InventoryKey) String() string {
	return fmt.Sprintf("%s:%d", k.SkuCode, k.WarehouseID)
}

func (k InventoryKey) Validate() error {
	if k.SkuCode == "" {
		return fmt.Errorf("%w: sku code is required", ErrInvalidInventory)
	}
	if k.WarehouseID <= 0 {
		return fmt.Errorf("%w: warehouse id must be positive", ErrInvalidInventory)
	}
	return nil
}

// Inventory is the materialized stock row for one SKU in one warehouse.
type Inventory struct {
	SkuCode           string     `json:"sku_code"`
	WarehouseID       int64      `json:"warehouse_id"`
	QuantityOnHand    int        `json:"quantity_on_hand"`
	ReservedQuantity  int        `json:"reserved_quantity"`
	AllocatedQuantity int        `json:"allocated_quantity"`
	ReorderMinimum    int        `json:"reorder_minimum"`
	ReorderQuantity   int        `json:"reorder_quantity"`
	RestockDate       *time.Time `json:"restock_date,omitempty"`

	AvailabilityCriteria AvailabilityCriteria `json:"availability_criteria,omitempty"`

	Version   int       `json:"version"` // bumped on every rollup
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewInventory returns an empty row for key, sold only when in stock.
func NewInventory(key InventoryKey) Inventory {
	return Inventory{
		SkuCode:              key.SkuCode,
		WarehouseID:          key.WarehouseID,
		AvailabilityCriteria: AvailableWhenInStock,
	}
}

func (i Inventory) Key() InventoryKey {
	return InventoryKey{SkuCode: i.SkuCode, WarehouseID: i.WarehouseID}
}

// AvailableQuantity is on-hand minus reserved and allocated, floored at zero.
func (i Inventory) AvailableQuantity() int {
	available := i.QuantityOnHand - i.ReservedQuantity - i.AllocatedQuantity
	if available < 0 {
		return 0
	}
	return available
}

// CanAllocate reports whether qty more units may be allocated. An unset
// criteria behaves as AvailableWhenInStock.
func (i Inventory) CanAllocate(qty int) bool {
	criteria := i.AvailabilityCriteria
	if criteria == 0 {
		criteria = AvailableWhenInStock
	}
	return criteria.IsAvailable(i, qty)
}

// NeedsReorder reports whether on-hand stock fell to the reorder minimum.
// A zero minimum disables reordering.
func (i Inventory) NeedsReorder() bool {
	return i.ReorderMinimum > 0 && i.QuantityOnHand <= i.ReorderMinimum
}

// Apply returns a copy with d added to on-hand and allocated quantities.
func (i Inventory) Apply(d InventoryDelta) Inventory {
	i.QuantityOnHand += d.QuantityOnHand
	i.AllocatedQuantity += d.Allocated
	return i
}

func (i Inventory) Validate() error {
	if err := i.Key().Validate(); err != nil {
		return err
	}
	if i.QuantityOnHand < 0 || i.ReservedQuantity < 0 || i.AllocatedQuantity < 0 {
		return fmt.Errorf("%w: quantities must not be negative", ErrInvalidInventory)
	}
	if i.ReorderMinimum < 0 || i.ReorderQuantity < 0 {
		return fmt.Errorf("%w: reorder settings must not be negative", ErrInvalidInventory)
	}
	if i.AvailabilityCriteria != 0 && availabilityCriteria.NameOf(int(i.AvailabilityCriteria)) == "" {
		return fmt.Errorf("%w: unknown availability criteria %d", ErrInvalidInventory, i.AvailabilityCriteria)
	}
	if i.ReservedQuantity > i.QuantityOnHand {
		return fmt.Errorf("%w: reserved quantity %d exceeds quantity on hand %d",
			ErrInvalidInventory, i.ReservedQuantity, i.QuantityOnHand)
	}
	return nil
}

type InventoryDelta struct {
	QuantityOnHand int `json:"quantity_on_hand"`
	Allocated      int `json:"allocated"`
}

func (d InventoryDelta) Add(o InventoryDelta) InventoryDelta {
	return InventoryDelta{
		QuantityOnHand: d.QuantityOnHand + o.QuantityOnHand,
		Allocated:      d.Allocated + o.Allocated,
	}
}

func (d InventoryDelta) IsZero() bool {
	return d.QuantityOnHand == 0 && d.Allocated == 0
}

// JournalEntry is one append-only delta row waiting for rollup.
type JournalEntry struct {
	ID                     int64
	SkuCode                string
	WarehouseID            int64
	QuantityOnHandDelta    int
	AllocatedQuantityDelta int
	EventType              InventoryEventType
	CreatedAt              time.Time
}

func (e JournalEntry) Key() InventoryKey {
	return InventoryKey{SkuCode: e.SkuCode, WarehouseID: e.WarehouseID}
}

func (e JournalEntry) Delta() InventoryDelta {
	return InventoryDelta{QuantityOnHand: e.QuantityOnHandDelta, Allocated: e.AllocatedQuantityDelta}
}

// JournalSum is the folded journal for one key.
type JournalSum struct {
	Delta InventoryDelta
	Rows  int
	MaxID int64
}

// RollupResult reports what a rollup applied.
type RollupResult struct {
	Key         InventoryKey   `json:"key"`
	Applied     InventoryDelta `json:"applied"`
	RowsDeleted int            `json:"rows_deleted"`
	Inventory   *Inventory     `json:"inventory,omitempty"`
}
