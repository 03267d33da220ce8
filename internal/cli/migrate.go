package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rl1809/commerce-core/internal/adapter/storage"
)

type MigrateOutput struct {
	Applied []int64 `json:"applied"`
}

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), rootOpts, cmd)
		},
	}
}

func runMigrate(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	db, err := storage.OpenDatabase(ctx, opts.DBDriver, opts.DBDSN)
	if err != nil {
		return formatter.Error(err)
	}
	defer db.Close()

	applied, err := storage.Migrate(ctx, db, opts.DBDriver)
	if err != nil {
		return formatter.Error(err)
	}
	if applied == nil {
		applied = []int64{}
	}

	return formatter.Success(MigrateOutput{Applied: applied}, func(w io.Writer) {
		if len(applied) == 0 {
			fmt.Fprintln(w, "no migrations to apply")
			return
		}
		for _, v := range applied {
			fmt.Fprintf(w, "applied migration %05d\n", v)
		}
	})
}
