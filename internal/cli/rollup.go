package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rl1809/commerce-core/internal/adapter/messaging"
	"github.com/rl1809/commerce-core/internal/adapter/storage"
	"github.com/rl1809/commerce-core/internal/core/domain"
	"github.com/rl1809/commerce-core/internal/core/service"
	"github.com/rl1809/commerce-core/internal/logging"
)

type RollupOptions struct {
	SkuCode     string
	WarehouseID int64
	Pending     bool
	Limit       int
	LockTTL     time.Duration
}

type RollupOutput struct {
	Results []domain.RollupResult `json:"results"`
}

func NewRollupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RollupOptions{}

	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "Fold pending inventory journal rows into the materialized rows",
		Long: `Roll up the journal for one key (--sku and --warehouse) or for every key
with pending rows (--pending). Rollups are serialized within this process only;
do not run against a database a server is rolling up at the same time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollup(cmd.Context(), rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SkuCode, "sku", "", "SKU code")
	cmd.Flags().Int64Var(&opts.WarehouseID, "warehouse", 0, "warehouse ID")
	cmd.Flags().BoolVar(&opts.Pending, "pending", false, "roll up every key with pending rows")
	cmd.Flags().IntVar(&opts.Limit, "limit", 1000, "maximum keys for --pending")
	cmd.Flags().DurationVar(&opts.LockTTL, "lock-ttl", 30*time.Second, "rollup lock TTL")
	cmd.MarkFlagsMutuallyExclusive("pending", "sku")
	return cmd
}

func runRollup(ctx context.Context, rootOpts *RootOptions, opts *RollupOptions, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if !opts.Pending && opts.SkuCode == "" {
		return formatter.Error(errors.New("either --sku with --warehouse or --pending is required"))
	}

	level := "warn"
	if rootOpts.Verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{ServiceName: "commercectl", Env: "local", Level: level})
	if err != nil {
		return formatter.Error(err)
	}
	defer logging.Sync(logger)

	db, err := storage.OpenDatabase(ctx, rootOpts.DBDriver, rootOpts.DBDSN)
	if err != nil {
		return formatter.Error(err)
	}
	defer db.Close()

	repo := storage.NewSQLAdapter(db)
	locks := storage.NewMemoryAdapter()
	svc := service.NewInventoryService(repo, locks, locks, messaging.NopPublisher{}, logger, 1, opts.LockTTL)
	defer svc.Close()

	keys := []domain.InventoryKey{{SkuCode: opts.SkuCode, WarehouseID: opts.WarehouseID}}
	if opts.Pending {
		if keys, err = repo.PendingKeys(ctx, opts.Limit); err != nil {
			return formatter.Error(err)
		}
		formatter.VerboseLog("found %d keys with pending journal rows", len(keys))
	}

	results := make([]domain.RollupResult, 0, len(keys))
	for _, key := range keys {
		result, err := svc.ProcessRollup(ctx, key)
		if err != nil {
			return formatter.Error(fmt.Errorf("rollup %s: %w", key, err))
		}
		results = append(results, result)
	}

	return formatter.Success(RollupOutput{Results: results}, func(w io.Writer) {
		rolled := 0
		for _, r := range results {
			if r.RowsDeleted == 0 {
				continue
			}
			rolled++
			fmt.Fprintf(w, "%s\trows=%d\ton_hand=%+d\tallocated=%+d\n",
				r.Key, r.RowsDeleted, r.Applied.QuantityOnHand, r.Applied.Allocated)
		}
		if rolled == 0 {
			fmt.Fprintln(w, "nothing to roll up")
		}
	})
}
