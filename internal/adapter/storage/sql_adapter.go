package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/commerce-core/internal/core/domain"
	"github.com/rl1809/commerce-core/internal/port"
)

var ErrOptimisticLock = fmt.Errorf("optimistic lock conflict: %w", port.ErrVersionConflict)

// deleteBatchSize bounds the IN list of a single journal delete.
const deleteBatchSize = 500

const inventoryColumns = `sku_code, warehouse_id, quantity_on_hand, reserved_quantity, allocated_quantity,
	reorder_minimum, reorder_quantity, restock_date, availability_criteria, version, created_at, updated_at`

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLAdapter implements the inventory and catalog repositories on MySQL or SQLite.
// Queries stick to the dialect subset both engines share.
type SQLAdapter struct {
	db  *sql.DB
	now func() time.Time

	// forUpdate suffixes reads that must lock within a transaction. SQLite
	// has no row locks; its pool holds a single connection, so a
	// transaction already excludes every other writer.
	forUpdate string
}

func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	s := &SQLAdapter{db: db, now: func() time.Time { return time.Now().UTC() }}
	if _, ok := db.Driver().(*mysql.MySQLDriver); ok {
		s.forUpdate = " FOR UPDATE"
	}
	return s
}

func criteriaName(c domain.AvailabilityCriteria) string {
	if c == 0 {
		c = domain.AvailableWhenInStock
	}
	return c.String()
}

func (s *SQLAdapter) CreateInventory(ctx context.Context, inv domain.Inventory) error {
	now := s.now()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory (`+inventoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.SkuCode, inv.WarehouseID, inv.QuantityOnHand, inv.ReservedQuantity, inv.AllocatedQuantity,
		inv.ReorderMinimum, inv.ReorderQuantity, nullTime(inv.RestockDate), criteriaName(inv.AvailabilityCriteria),
		inv.Version, inv.CreatedAt, inv.UpdatedAt,
	)
	if isDuplicateKey(err) {
		return fmt.Errorf("insert inventory %s: %w", inv.Key(), port.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert inventory: %w", err)
	}
	return nil
}

func (s *SQLAdapter) GetInventory(ctx context.Context, key domain.InventoryKey) (*domain.Inventory, error) {
	return getInventory(ctx, s.db, key, "")
}

func getInventory(ctx context.Context, q queryer, key domain.InventoryKey, lock string) (*domain.Inventory, error) {
	var (
		inv      domain.Inventory
		restock  sql.NullTime
		criteria string
	)
	err := q.QueryRowContext(ctx, `
		SELECT `+inventoryColumns+`
		FROM inventory WHERE sku_code = ? AND warehouse_id = ?`+lock,
		key.SkuCode, key.WarehouseID,
	).Scan(&inv.SkuCode, &inv.WarehouseID, &inv.QuantityOnHand, &inv.ReservedQuantity, &inv.AllocatedQuantity,
		&inv.ReorderMinimum, &inv.ReorderQuantity, &restock, &criteria, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}

	inv.AvailabilityCriteria, err = domain.ParseAvailabilityCriteria(criteria)
	if err != nil {
		return nil, fmt.Errorf("inventory %s: %w", key, err)
	}
	if restock.Valid {
		t := restock.Time
		inv.RestockDate = &t
	}
	return &inv, nil
}

func (s *SQLAdapter) UpdateInventory(ctx context.Context, inv domain.Inventory) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE inventory
		SET reserved_quantity = ?, reorder_minimum = ?, reorder_quantity = ?, restock_date = ?,
			availability_criteria = ?, version = version + 1, updated_at = ?
		WHERE sku_code = ? AND warehouse_id = ? AND version = ?`,
		inv.ReservedQuantity, inv.ReorderMinimum, inv.ReorderQuantity, nullTime(inv.RestockDate),
		criteriaName(inv.AvailabilityCriteria), s.now(), inv.SkuCode, inv.WarehouseID, inv.Version,
	)
	if err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	existing, err := s.GetInventory(ctx, inv.Key())
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("update inventory %s: %w", inv.Key(), port.ErrNotFound)
	}
	return ErrOptimisticLock
}

func (s *SQLAdapter) DeleteInventory(ctx context.Context, key domain.InventoryKey) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM inventory WHERE sku_code = ? AND warehouse_id = ?`,
		key.SkuCode, key.WarehouseID,
	)
	if err != nil {
		return fmt.Errorf("delete inventory: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("delete inventory %s: %w", key, port.ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM inventory_journal WHERE sku_code = ? AND warehouse_id = ?`,
		key.SkuCode, key.WarehouseID,
	)
	if err != nil {
		return fmt.Errorf("delete journal: %w", err)
	}

	return tx.Commit()
}

func (s *SQLAdapter) AppendJournal(ctx context.Context, entry domain.JournalEntry) (int64, error) {
	return s.insertJournal(ctx, s.db, entry)
}

func (s *SQLAdapter) insertJournal(ctx context.Context, e execer, entry domain.JournalEntry) (int64, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	result, err := e.ExecContext(ctx, `
		INSERT INTO inventory_journal
			(sku_code, warehouse_id, quantity_on_hand_delta, allocated_quantity_delta, event_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.SkuCode, entry.WarehouseID, entry.QuantityOnHandDelta, entry.AllocatedQuantityDelta,
		entry.EventType.String(), entry.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert journal: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("journal id: %w", err)
	}
	return id, nil
}

// AppendJournalIf locks the materialized row, folds the pending journal into
// it and runs check before inserting entry, all in one transaction. A
// concurrent command for the same key waits on the row lock and sees entry.
func (s *SQLAdapter) AppendJournalIf(ctx context.Context, entry domain.JournalEntry, check func(current domain.Inventory) error) (*domain.Inventory, error) {
	key := entry.Key()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inv, err := getInventory(ctx, tx, key, s.forUpdate)
	if err != nil {
		return nil, err
	}
	sum, err := sumJournal(ctx, tx, key, s.forUpdate)
	if err != nil {
		return nil, err
	}

	if inv == nil {
		if sum.Rows == 0 {
			return nil, fmt.Errorf("append journal %s: %w", key, port.ErrNotFound)
		}
		blank := domain.NewInventory(key)
		inv = &blank
	}

	current := inv.Apply(sum.Delta)
	if err := check(current); err != nil {
		return nil, err
	}

	if _, err := s.insertJournal(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit journal: %w", err)
	}

	updated := current.Apply(entry.Delta())
	return &updated, nil
}

func (s *SQLAdapter) SumJournal(ctx context.Context, key domain.InventoryKey) (domain.JournalSum, error) {
	return sumJournal(ctx, s.db, key, "")
}

func sumJournal(ctx context.Context, q queryer, key domain.InventoryKey, lock string) (domain.JournalSum, error) {
	var (
		sum   domain.JournalSum
		maxID sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity_on_hand_delta), 0), COALESCE(SUM(allocated_quantity_delta), 0),
			COUNT(*), MAX(id)
		FROM inventory_journal WHERE sku_code = ? AND warehouse_id = ?`+lock,
		key.SkuCode, key.WarehouseID,
	).Scan(&sum.Delta.QuantityOnHand, &sum.Delta.Allocated, &sum.Rows, &maxID)
	if err != nil {
		return domain.JournalSum{}, fmt.Errorf("sum journal: %w", err)
	}

	sum.MaxID = maxID.Int64
	return sum, nil
}

// RollupJournal folds the journal rows for key into the materialized row and
// deletes exactly the rows it folded. Rows appended after the select survive
// for the next rollup.
func (s *SQLAdapter) RollupJournal(ctx context.Context, key domain.InventoryKey) (domain.RollupResult, error) {
	result := domain.RollupResult{Key: key}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, quantity_on_hand_delta, allocated_quantity_delta
		FROM inventory_journal WHERE sku_code = ? AND warehouse_id = ?
		ORDER BY id`,
		key.SkuCode, key.WarehouseID,
	)
	if err != nil {
		return result, fmt.Errorf("select journal: %w", err)
	}

	var (
		ids   []int64
		delta domain.InventoryDelta
	)
	for rows.Next() {
		var (
			id int64
			d  domain.InventoryDelta
		)
		if err := rows.Scan(&id, &d.QuantityOnHand, &d.Allocated); err != nil {
			rows.Close()
			return result, fmt.Errorf("scan journal: %w", err)
		}
		ids = append(ids, id)
		delta = delta.Add(d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return result, fmt.Errorf("iterate journal: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return result, tx.Commit()
	}

	now := s.now()
	res, err := tx.ExecContext(ctx, `
		UPDATE inventory
		SET quantity_on_hand = quantity_on_hand + ?, allocated_quantity = allocated_quantity + ?,
			version = version + 1, updated_at = ?
		WHERE sku_code = ? AND warehouse_id = ?`,
		delta.QuantityOnHand, delta.Allocated, now, key.SkuCode, key.WarehouseID,
	)
	if err != nil {
		return result, fmt.Errorf("apply journal: %w", err)
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO inventory (sku_code, warehouse_id, quantity_on_hand, allocated_quantity, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, ?, ?)`,
			key.SkuCode, key.WarehouseID, delta.QuantityOnHand, delta.Allocated, now, now,
		)
		if err != nil {
			return result, fmt.Errorf("insert inventory from journal: %w", err)
		}
	}

	for start := 0; start < len(ids); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(ids))
		batch := ids[start:end]

		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM inventory_journal WHERE id IN (`+placeholders+`)`, args...); err != nil {
			return result, fmt.Errorf("delete journal: %w", err)
		}
	}

	inv, err := getInventory(ctx, tx, key, "")
	if err != nil {
		return result, err
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("commit rollup: %w", err)
	}

	result.Applied = delta
	result.RowsDeleted = len(ids)
	result.Inventory = inv
	return result, nil
}

// PendingKeys returns keys with journal rows, oldest first.
func (s *SQLAdapter) PendingKeys(ctx context.Context, limit int) ([]domain.InventoryKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sku_code, warehouse_id
		FROM inventory_journal
		GROUP BY sku_code, warehouse_id
		ORDER BY MIN(id)
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending keys: %w", err)
	}
	defer rows.Close()

	var keys []domain.InventoryKey
	for rows.Next() {
		var key domain.InventoryKey
		if err := rows.Scan(&key.SkuCode, &key.WarehouseID); err != nil {
			return nil, fmt.Errorf("scan pending key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
