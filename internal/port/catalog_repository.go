package port

import (
	"context"

	"github.com/rl1809/commerce-core/internal/core/domain"
)

type CatalogRepository interface {
	// GetStore returns the store configuration, or nil when absent
	GetStore(ctx context.Context, code string) (*domain.Store, error)

	SaveStore(ctx context.Context, store domain.Store) error

	// GetCatalog returns the catalog, or nil when absent
	GetCatalog(ctx context.Context, code string) (*domain.Catalog, error)

	SaveCatalog(ctx context.Context, catalog domain.Catalog) error

	// GetAttributeValues returns every stored translation of an attribute in a catalog
	GetAttributeValues(ctx context.Context, catalogCode, attributeKey string) (domain.LocaleValues, error)

	// SaveAttributeValues upserts translations of an attribute
	SaveAttributeValues(ctx context.Context, catalogCode, attributeKey string, values domain.LocaleValues) error
}
