package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/commerce-core/internal/core/domain"
	"github.com/rl1809/commerce-core/internal/port"
)

var (
	ErrStoreNotFound   = errors.New("store not found")
	ErrCatalogNotFound = errors.New("catalog not found")
	ErrInvalidStore    = errors.New("invalid store")
)

// ProjectionService builds localized catalog attribute projections for stores.
type ProjectionService struct {
	catalog  port.CatalogRepository
	cache    port.ProjectionCache
	logger   *zap.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

func NewProjectionService(catalog port.CatalogRepository, cache port.ProjectionCache, logger *zap.Logger, cacheTTL time.Duration) *ProjectionService {
	return &ProjectionService{
		catalog:  catalog,
		cache:    cache,
		logger:   logger,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// AttributeTranslations resolves attributeKey for every locale storeCode supports.
func (s *ProjectionService) AttributeTranslations(ctx context.Context, storeCode, attributeKey string) (*domain.AttributeProjection, error) {
	if cached, err := s.cache.GetProjection(ctx, storeCode, attributeKey); err != nil {
		s.logger.Warn("projection cache read failed",
			zap.String("store", storeCode), zap.String("attribute", attributeKey), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	store, err := s.catalog.GetStore(ctx, storeCode)
	if err != nil {
		return nil, fmt.Errorf("get store %s: %w", storeCode, err)
	}
	if store == nil {
		return nil, ErrStoreNotFound
	}

	catalog, err := s.catalog.GetCatalog(ctx, store.CatalogCode)
	if err != nil {
		return nil, fmt.Errorf("get catalog %s: %w", store.CatalogCode, err)
	}
	if catalog == nil {
		return nil, ErrCatalogNotFound
	}

	values, err := s.catalog.GetAttributeValues(ctx, catalog.Code, attributeKey)
	if err != nil {
		return nil, fmt.Errorf("get attribute values %s/%s: %w", catalog.Code, attributeKey, err)
	}

	translations, err := ResolveTranslations(catalog.DefaultLocale, store.DefaultLocale, store.SupportedLocales, values)
	if err != nil {
		s.logger.Error("attribute translation failed",
			zap.String("store", storeCode),
			zap.String("catalog", catalog.Code),
			zap.String("attribute", attributeKey),
			zap.Error(err),
		)
		return nil, err
	}

	projection := domain.AttributeProjection{
		Store:        store.Code,
		Attribute:    attributeKey,
		Translations: translations,
		BuiltAt:      s.now().UTC(),
	}

	if err := s.cache.SetProjection(ctx, projection, s.cacheTTL); err != nil {
		s.logger.Warn("projection cache write failed",
			zap.String("store", storeCode), zap.String("attribute", attributeKey), zap.Error(err))
	}

	return &projection, nil
}

func (s *ProjectionService) Invalidate(ctx context.Context, storeCode, attributeKey string) error {
	return s.cache.DeleteProjection(ctx, storeCode, attributeKey)
}

// SaveAttributeValues stores translations for an attribute. Cached projections
// that include it expire by TTL.
func (s *ProjectionService) SaveAttributeValues(ctx context.Context, catalogCode, attributeKey string, values domain.LocaleValues) error {
	if attributeKey == "" {
		return fmt.Errorf("%w: attribute key is required", ErrInvalidStore)
	}

	catalog, err := s.catalog.GetCatalog(ctx, catalogCode)
	if err != nil {
		return fmt.Errorf("get catalog %s: %w", catalogCode, err)
	}
	if catalog == nil {
		return ErrCatalogNotFound
	}

	if err := s.catalog.SaveAttributeValues(ctx, catalogCode, attributeKey, values); err != nil {
		return fmt.Errorf("save attribute values %s/%s: %w", catalogCode, attributeKey, err)
	}

	s.logger.Info("attribute values saved",
		zap.String("catalog", catalogCode), zap.String("attribute", attributeKey), zap.Int("locales", len(values)))
	return nil
}

func (s *ProjectionService) SaveCatalog(ctx context.Context, catalog domain.Catalog) error {
	if catalog.Code == "" || catalog.DefaultLocale.IsZero() {
		return fmt.Errorf("%w: catalog code and default locale are required", ErrInvalidStore)
	}
	return s.catalog.SaveCatalog(ctx, catalog)
}

// SaveStore validates that the store's default locale is one it supports.
func (s *ProjectionService) SaveStore(ctx context.Context, store domain.Store) error {
	if store.Code == "" || store.CatalogCode == "" {
		return fmt.Errorf("%w: store and catalog codes are required", ErrInvalidStore)
	}
	if store.DefaultLocale.IsZero() {
		return fmt.Errorf("%w: default locale is required", ErrInvalidStore)
	}

	supported := false
	for _, l := range store.SupportedLocales {
		if l == store.DefaultLocale {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w: default locale %s is not a supported locale", ErrInvalidStore, store.DefaultLocale)
	}

	catalog, err := s.catalog.GetCatalog(ctx, store.CatalogCode)
	if err != nil {
		return fmt.Errorf("get catalog %s: %w", store.CatalogCode, err)
	}
	if catalog == nil {
		return ErrCatalogNotFound
	}

	return s.catalog.SaveStore(ctx, store)
}
