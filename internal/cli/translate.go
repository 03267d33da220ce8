package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rl1809/commerce-core/internal/core/domain"
	"github.com/rl1809/commerce-core/internal/core/service"
)

// TranslateInput is the YAML (or JSON) document read by translate.
type TranslateInput struct {
	CatalogLocale    string            `yaml:"catalog_locale"`
	StoreLocale      string            `yaml:"store_locale"`
	SupportedLocales []string          `yaml:"supported_locales"`
	Values           map[string]string `yaml:"values"`
}

type TranslateOutput struct {
	Translations []domain.Translation `json:"translations"`
}

func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Resolve attribute values for a store's supported locales",
		Long: `Resolve one value per supported store locale from a YAML or JSON file
holding catalog_locale, store_locale, supported_locales and values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(rootOpts, file, cmd)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "input file (YAML or JSON)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func runTranslate(opts *RootOptions, file string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	input, err := readTranslateInput(file)
	if err != nil {
		return formatter.Error(err)
	}
	formatter.VerboseLog("resolving %d supported locales against %d values", len(input.SupportedLocales), len(input.Values))

	catalogLocale, err := domain.ParseLocale(input.CatalogLocale)
	if err != nil {
		return formatter.Error(fmt.Errorf("catalog_locale: %w", err))
	}
	storeLocale, err := domain.ParseLocale(input.StoreLocale)
	if err != nil {
		return formatter.Error(fmt.Errorf("store_locale: %w", err))
	}
	supported, err := domain.ParseLocales(input.SupportedLocales)
	if err != nil {
		return formatter.Error(fmt.Errorf("supported_locales: %w", err))
	}
	values, err := domain.ParseLocaleValues(input.Values)
	if err != nil {
		return formatter.Error(fmt.Errorf("values: %w", err))
	}

	translations, err := service.ResolveTranslations(catalogLocale, storeLocale, supported, values)
	if err != nil {
		return formatter.Error(err)
	}

	return formatter.Success(TranslateOutput{Translations: translations}, func(w io.Writer) {
		for _, t := range translations {
			fmt.Fprintf(w, "%s\t%s\n", t.Language, t.Value)
		}
	})
}

func readTranslateInput(file string) (TranslateInput, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return TranslateInput{}, fmt.Errorf("read input: %w", err)
	}

	// JSON is valid YAML, so one decoder serves both.
	var input TranslateInput
	if err := yaml.Unmarshal(data, &input); err != nil {
		return TranslateInput{}, fmt.Errorf("parse input %s: %w", file, err)
	}
	return input, nil
}
