package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/commerce-core/internal/adapter/storage"
	"github.com/rl1809/commerce-core/internal/core/domain"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"translate", "rollup", "migrate"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "translate", "--file", "testdata/translate.yaml", "--format", "xml")
	assert.ErrorContains(t, err, "invalid format")
}

func TestTranslate_Golden(t *testing.T) {
	g := newGoldie(t)

	out, _, err := execute(t, "translate", "--file", "testdata/translate.yaml")
	require.NoError(t, err)
	g.Assert(t, "translate_text", []byte(out))

	out, _, err = execute(t, "translate", "--file", "testdata/translate.yaml", "--format", "json")
	require.NoError(t, err)
	g.Assert(t, "translate_json", []byte(out))
}

func TestTranslate_JSONInput(t *testing.T) {
	fromYAML, _, err := execute(t, "translate", "--file", "testdata/translate.yaml")
	require.NoError(t, err)

	fromJSON, _, err := execute(t, "translate", "--file", "testdata/translate.json")
	require.NoError(t, err)
	assert.Equal(t, fromYAML, fromJSON)
}

func TestTranslate_Errors(t *testing.T) {
	_, stderr, err := execute(t, "translate", "--file", "testdata/empty_values.yaml")
	require.Error(t, err)
	var reported *ReportedError
	assert.ErrorAs(t, err, &reported)
	assert.Contains(t, stderr, "locale values not found")

	out, _, err := execute(t, "translate", "--file", "testdata/missing.yaml", "--format", "json")
	require.Error(t, err)
	assert.Contains(t, out, `"status":"error"`)

	_, _, err = execute(t, "translate")
	assert.Error(t, err, "--file is required")
}

func TestMigrateAndRollup_Golden(t *testing.T) {
	g := newGoldie(t)
	dsn := "file:" + filepath.Join(t.TempDir(), "commerce.db")

	out, _, err := execute(t, "migrate", "--dsn", dsn)
	require.NoError(t, err)
	g.Assert(t, "migrate_text", []byte(out))

	out, _, err = execute(t, "migrate", "--dsn", dsn)
	require.NoError(t, err)
	assert.Equal(t, "no migrations to apply\n", out)

	seedJournal(t, dsn)

	out, _, err = execute(t, "rollup", "--dsn", dsn, "--sku", "sku-1", "--warehouse", "1")
	require.NoError(t, err)
	g.Assert(t, "rollup_text", []byte(out))

	out, _, err = execute(t, "rollup", "--dsn", dsn, "--pending")
	require.NoError(t, err)
	assert.Equal(t, "nothing to roll up\n", out)
}

func TestRollup_RequiresKey(t *testing.T) {
	_, _, err := execute(t, "rollup", "--dsn", "file:"+filepath.Join(t.TempDir(), "x.db"))
	assert.ErrorContains(t, err, "--pending")
}

func seedJournal(t *testing.T, dsn string) {
	t.Helper()

	ctx := context.Background()
	db, err := storage.OpenDatabase(ctx, storage.DriverSQLite, dsn)
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewSQLAdapter(db)
	require.NoError(t, repo.CreateInventory(ctx, domain.Inventory{SkuCode: "sku-1", WarehouseID: 1, QuantityOnHand: 10}))
	for _, d := range []domain.InventoryDelta{{QuantityOnHand: 5, Allocated: 2}, {QuantityOnHand: -2}} {
		_, err := repo.AppendJournal(ctx, domain.JournalEntry{
			SkuCode:                "sku-1",
			WarehouseID:            1,
			QuantityOnHandDelta:    d.QuantityOnHand,
			AllocatedQuantityDelta: d.Allocated,
			EventType:              domain.EventStockAdjustment,
		})
		require.NoError(t, err)
	}
}
