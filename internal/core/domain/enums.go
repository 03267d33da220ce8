package domain

import (
	"fmt"

	"github.com/rl1809/commerce-core/internal/enum"
)

// InventoryEventType names the command that produced a journal row.
type InventoryEventType uint8

const (
	EventStockAdjustment InventoryEventType = iota + 1
	EventStockAllocate
	EventStockDeallocate
	EventStockRelease
	EventInventoryCreated
	EventInventoryDeleted
)

var inventoryEventTypes = enum.NewRegistry[InventoryEventType]("InventoryEventType")

func init() {
	inventoryEventTypes.MustRegister(int(EventStockAdjustment), "STOCK_ADJUSTMENT", EventStockAdjustment)
	inventoryEventTypes.MustRegister(int(EventStockAllocate), "STOCK_ALLOCATE", EventStockAllocate)
	inventoryEventTypes.MustRegister(int(EventStockDeallocate), "STOCK_DEALLOCATE", EventStockDeallocate)
	inventoryEventTypes.MustRegister(int(EventStockRelease), "STOCK_RELEASE", EventStockRelease)
	inventoryEventTypes.MustRegister(int(EventInventoryCreated), "INVENTORY_CREATED", EventInventoryCreated)
	inventoryEventTypes.MustRegister(int(EventInventoryDeleted), "INVENTORY_DELETED", EventInventoryDeleted)
}

func ParseInventoryEventType(name string) (InventoryEventType, error) {
	return inventoryEventTypes.ByName(name)
}

func InventoryEventTypes() []InventoryEventType {
	return inventoryEventTypes.Values()
}

func (t InventoryEventType) String() string {
	if name := inventoryEventTypes.NameOf(int(t)); name != "" {
		return name
	}
	return fmt.Sprintf("InventoryEventType(%d)", uint8(t))
}

func (t InventoryEventType) MarshalText() ([]byte, error) {
	name := inventoryEventTypes.NameOf(int(t))
	if name == "" {
		return nil, fmt.Errorf("unknown inventory event type %d", uint8(t))
	}
	return []byte(name), nil
}

func (t *InventoryEventType) UnmarshalText(text []byte) error {
	v, err := ParseInventoryEventType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// AvailabilityCriteria decides whether a SKU can be sold given its stock.
type AvailabilityCriteria uint8

const (
	AlwaysAvailable AvailabilityCriteria = iota + 1
	AvailableWhenInStock
	AvailableForPreOrder
	AvailableForBackOrder
)

var availabilityCriteria = enum.NewRegistry[AvailabilityCriteria]("AvailabilityCriteria")

func init() {
	availabilityCriteria.MustRegister(int(AlwaysAvailable), "ALWAYS_AVAILABLE", AlwaysAvailable)
	availabilityCriteria.MustRegister(int(AvailableWhenInStock), "AVAILABLE_WHEN_IN_STOCK", AvailableWhenInStock)
	availabilityCriteria.MustRegister(int(AvailableForPreOrder), "AVAILABLE_FOR_PRE_ORDER", AvailableForPreOrder)
	availabilityCriteria.MustRegister(int(AvailableForBackOrder), "AVAILABLE_FOR_BACK_ORDER", AvailableForBackOrder)
}

func ParseAvailabilityCriteria(name string) (AvailabilityCriteria, error) {
	return availabilityCriteria.ByName(name)
}

func (c AvailabilityCriteria) String() string {
	if name := availabilityCriteria.NameOf(int(c)); name != "" {
		return name
	}
	return fmt.Sprintf("AvailabilityCriteria(%d)", uint8(c))
}

func (c AvailabilityCriteria) MarshalText() ([]byte, error) {
	name := availabilityCriteria.NameOf(int(c))
	if name == "" {
		return nil, fmt.Errorf("unknown availability criteria %d", uint8(c))
	}
	return []byte(name), nil
}

func (c *AvailabilityCriteria) UnmarshalText(text []byte) error {
	v, err := ParseAvailabilityCriteria(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// IsAvailable reports whether qty units can be sold under c.
// Pre-order and back-order sell regardless of stock.
func (c AvailabilityCriteria) IsAvailable(inv Inventory, qty int) bool {
	switch c {
	case AlwaysAvailable, AvailableForPreOrder, AvailableForBackOrder:
		return true
	case AvailableWhenInStock:
		return inv.AvailableQuantity() >= qty
	default:
		return false
	}
}
