package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/commerce-core/internal/adapter/messaging"
	"github.com/rl1809/commerce-core/internal/adapter/storage"
	"github.com/rl1809/commerce-core/internal/core/domain"
	"github.com/rl1809/commerce-core/internal/core/service"
)

const (
	initialOnHand = 1000
	totalRequests = 2000
	rollupWorkers = 4
	queueSize     = 100
)

var key = domain.InventoryKey{SkuCode: "stress-sku", WarehouseID: 1}

func main() {
	ctx := context.Background()

	db, err := storage.OpenDatabase(ctx, storage.DriverSQLite, ":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	if _, err := storage.Migrate(ctx, db, storage.DriverSQLite); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	repo := storage.NewSQLAdapter(db)
	cache := storage.NewMemoryAdapter()
	inventoryService := service.NewInventoryService(repo, cache, cache, messaging.NopPublisher{}, zap.NewNop(), queueSize, time.Minute)

	if err := repo.CreateInventory(ctx, domain.Inventory{SkuCode: key.SkuCode, WarehouseID: key.WarehouseID, QuantityOnHand: initialOnHand}); err != nil {
		log.Fatalf("failed to create inventory: %v", err)
	}

	// Roll up concurrently with the writers
	var rollups atomic.Int32
	var workers sync.WaitGroup
	for i := 0; i < rollupWorkers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for k := range inventoryService.GetRollupQueue() {
				if _, err := inventoryService.ProcessRollup(ctx, k); err == nil {
					rollups.Add(1)
				} else if !errors.Is(err, service.ErrRollupLocked) {
					log.Printf("rollup failed: %v", err)
				}
			}
		}()
	}

	// Counters
	var received atomic.Int32
	var allocated atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			var err error
			if n%2 == 0 {
				_, err = inventoryService.AdjustQuantityOnHand(ctx, key, 1)
				if err == nil {
					received.Add(1)
				}
			} else {
				_, err = inventoryService.Allocate(ctx, key, 1)
				if err == nil {
					allocated.Add(1)
				}
			}
			if err != nil {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	inventoryService.Close()
	workers.Wait()

	// Fold whatever the workers skipped
	final, err := inventoryService.ProcessRollup(ctx, key)
	if err != nil {
		log.Fatalf("final rollup failed: %v", err)
	}
	elapsed := time.Since(start)

	inv, err := repo.GetInventory(ctx, key)
	if err != nil {
		log.Fatalf("failed to read inventory: %v", err)
	}
	sum, err := repo.SumJournal(ctx, key)
	if err != nil {
		log.Fatalf("failed to sum journal: %v", err)
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial On Hand:  %d\n", initialOnHand)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Receipts:         %d\n", received.Load())
	fmt.Printf("Allocations:      %d\n", allocated.Load())
	fmt.Printf("Failed:           %d\n", failCount.Load())
	fmt.Printf("Rollups:          %d (+%d rows in final pass)\n", rollups.Load(), final.RowsDeleted)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	wantOnHand := initialOnHand + int(received.Load())
	wantAllocated := int(allocated.Load())

	if inv.QuantityOnHand == wantOnHand && inv.AllocatedQuantity == wantAllocated {
		fmt.Printf("PASS: on_hand=%d allocated=%d\n", inv.QuantityOnHand, inv.AllocatedQuantity)
	} else {
		fmt.Printf("FAIL: expected on_hand=%d allocated=%d, got %d/%d\n",
			wantOnHand, wantAllocated, inv.QuantityOnHand, inv.AllocatedQuantity)
	}

	if sum.Rows == 0 {
		fmt.Println("PASS: journal drained")
	} else {
		fmt.Printf("FAIL: %d journal rows left\n", sum.Rows)
	}
}
