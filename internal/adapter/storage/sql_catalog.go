package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rl1809/commerce-core/internal/core/domain"
)

func (s *SQLAdapter) GetStore(ctx context.Context, code string) (*domain.Store, error) {
	var (
		store               domain.Store
		defaultTag, tagList string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT code, catalog_code, default_locale, supported_locales
		FROM stores WHERE code = ?`, code,
	).Scan(&store.Code, &store.CatalogCode, &defaultTag, &tagList)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}

	if store.DefaultLocale, err = domain.ParseLocale(defaultTag); err != nil {
		return nil, fmt.Errorf("store %s default locale: %w", code, err)
	}
	if tagList != "" {
		if store.SupportedLocales, err = domain.ParseLocales(strings.Split(tagList, ",")); err != nil {
			return nil, fmt.Errorf("store %s supported locales: %w", code, err)
		}
	}
	return &store, nil
}

func (s *SQLAdapter) SaveStore(ctx context.Context, store domain.Store) error {
	tags := make([]string, len(store.SupportedLocales))
	for i, l := range store.SupportedLocales {
		tags[i] = l.Tag()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM stores WHERE code = ?`, store.Code); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO stores (code, catalog_code, default_locale, supported_locales)
		VALUES (?, ?, ?, ?)`,
		store.Code, store.CatalogCode, store.DefaultLocale.Tag(), strings.Join(tags, ","),
	)
	if err != nil {
		return fmt.Errorf("insert store: %w", err)
	}

	return tx.Commit()
}

func (s *SQLAdapter) GetCatalog(ctx context.Context, code string) (*domain.Catalog, error) {
	var (
		catalog    domain.Catalog
		defaultTag string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT code, default_locale FROM catalogs WHERE code = ?`, code,
	).Scan(&catalog.Code, &defaultTag)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}

	if catalog.DefaultLocale, err = domain.ParseLocale(defaultTag); err != nil {
		return nil, fmt.Errorf("catalog %s default locale: %w", code, err)
	}
	return &catalog, nil
}

func (s *SQLAdapter) SaveCatalog(ctx context.Context, catalog domain.Catalog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalogs WHERE code = ?`, catalog.Code); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO catalogs (code, default_locale) VALUES (?, ?)`,
		catalog.Code, catalog.DefaultLocale.Tag(),
	)
	if err != nil {
		return fmt.Errorf("insert catalog: %w", err)
	}

	return tx.Commit()
}

func (s *SQLAdapter) GetAttributeValues(ctx context.Context, catalogCode, attributeKey string) (domain.LocaleValues, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT locale, value FROM attribute_translations
		WHERE catalog_code = ? AND attribute_key = ?`,
		catalogCode, attributeKey,
	)
	if err != nil {
		return nil, fmt.Errorf("query attribute values: %w", err)
	}
	defer rows.Close()

	values := make(domain.LocaleValues)
	for rows.Next() {
		var tag, value string
		if err := rows.Scan(&tag, &value); err != nil {
			return nil, fmt.Errorf("scan attribute value: %w", err)
		}
		loc, err := domain.ParseLocale(tag)
		if err != nil {
			return nil, fmt.Errorf("attribute %s/%s: %w", catalogCode, attributeKey, err)
		}
		values[loc] = value
	}
	return values, rows.Err()
}

func (s *SQLAdapter) SaveAttributeValues(ctx context.Context, catalogCode, attributeKey string, values domain.LocaleValues) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for loc, value := range values {
		tag := loc.Tag()
		_, err := tx.ExecContext(ctx, `
			DELETE FROM attribute_translations
			WHERE catalog_code = ? AND attribute_key = ? AND locale = ?`,
			catalogCode, attributeKey, tag,
		)
		if err != nil {
			return fmt.Errorf("replace attribute value: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO attribute_translations (catalog_code, attribute_key, locale, value)
			VALUES (?, ?, ?, ?)`,
			catalogCode, attributeKey, tag, value,
		)
		if err != nil {
			return fmt.Errorf("insert attribute value: %w", err)
		}
	}

	return tx.Commit()
}
