package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/rl1809/commerce-core/internal/adapter/storage"
)

type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	DBDriver string
	DBDSN    string
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "commercectl",
		Short: "Operate the commerce core: resolve translations, roll up inventory, migrate",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DBDriver, "driver", storage.DriverSQLite, "database driver (mysql|sqlite3)")
	cmd.PersistentFlags().StringVar(&opts.DBDSN, "dsn", "file:commerce.db", "database DSN")

	cmd.AddCommand(NewTranslateCommand(opts))
	cmd.AddCommand(NewRollupCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}
