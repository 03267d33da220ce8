package service

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rl1809/commerce-core/internal/core/domain"
)

var ErrLocaleValueNotFound = errors.New("locale values not found")

// LocaleValueNotFoundError reports a locale for which no value could be resolved.
// Values is the map that was searched.
type LocaleValueNotFoundError struct {
	Locale domain.Locale
	Values domain.LocaleValues
}

func (e *LocaleValueNotFoundError) Error() string {
	return fmt.Sprintf("%v for locale %s in %d values", ErrLocaleValueNotFound, e.Locale.Tag(), len(e.Values))
}

func (e *LocaleValueNotFoundError) Unwrap() error {
	return ErrLocaleValueNotFound
}

// ResolveTranslations picks one value per supported store locale.
//
// For each locale the first non-empty value among its similar candidates wins
// (see similarCandidates). Otherwise the default applies: the store default
// locale's value, then the catalog default locale's value, then the first
// non-empty value in tag order. Output follows supported order without duplicates.
func ResolveTranslations(
	defaultCatalogLocale, defaultStoreLocale domain.Locale,
	supportedStoreLocales []domain.Locale,
	values domain.LocaleValues,
) ([]domain.Translation, error) {
	supported := uniqueLocales(supportedStoreLocales)
	if len(values) == 0 {
		loc := defaultStoreLocale
		if len(supported) > 0 {
			loc = supported[0]
		}
		return nil, &LocaleValueNotFoundError{Locale: loc, Values: values}
	}

	keys := sortedLocales(values)
	fallback, hasFallback := defaultValue(defaultCatalogLocale, defaultStoreLocale, keys, values)

	translations := make([]domain.Translation, 0, len(supported))
	for _, loc := range supported {
		value := similarValue(loc, keys, values)
		if value == "" {
			if !hasFallback {
				return nil, &LocaleValueNotFoundError{Locale: loc, Values: values}
			}
			value = fallback
		}
		translations = append(translations, domain.Translation{Language: loc.Tag(), Value: value})
	}

	return translations, nil
}

func defaultValue(catalogLocale, storeLocale domain.Locale, keys []domain.Locale, values domain.LocaleValues) (string, bool) {
	if v := values[storeLocale]; v != "" {
		return v, true
	}
	if v := values[catalogLocale]; v != "" {
		return v, true
	}
	for _, k := range keys {
		if v := values[k]; v != "" {
			return v, true
		}
	}
	return "", false
}

func similarValue(loc domain.Locale, keys []domain.Locale, values domain.LocaleValues) string {
	for _, candidate := range similarCandidates(loc, keys) {
		if v := values[candidate]; v != "" {
			return v
		}
	}
	return ""
}

// similarCandidates ranks the keys that can stand in for loc:
// the exact locale, loc without its variant, the language-only entry, then any
// other entry of the same language in tag order. Entries written in a
// different script never stand in. keys must be sorted by tag.
func similarCandidates(loc domain.Locale, keys []domain.Locale) []domain.Locale {
	candidates := make([]domain.Locale, 0, 4)
	seen := make(map[domain.Locale]bool, 4)
	add := func(l domain.Locale) {
		if !seen[l] {
			seen[l] = true
			candidates = append(candidates, l)
		}
	}

	present := make(map[domain.Locale]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}

	// Exact match ranks first so region-specific values stay reachable.
	for _, l := range []domain.Locale{loc, loc.WithoutVariant(), loc.LanguageOnly()} {
		if present[l] {
			add(l)
		}
	}
	for _, k := range keys {
		if sameLanguage(k, loc) && k.Country == "" {
			add(k)
		}
	}
	for _, k := range keys {
		if sameLanguage(k, loc) {
			add(k)
		}
	}

	return candidates
}

func sameLanguage(a, b domain.Locale) bool {
	if a.Language != b.Language {
		return false
	}
	return a.Script == "" || b.Script == "" || a.Script == b.Script
}

func sortedLocales(values domain.LocaleValues) []domain.Locale {
	keys := make([]domain.Locale, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Tag() < keys[j].Tag() })
	return keys
}

func uniqueLocales(locales []domain.Locale) []domain.Locale {
	out := make([]domain.Locale, 0, len(locales))
	seen := make(map[domain.Locale]bool, len(locales))
	for _, l := range locales {
		if l.IsZero() || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
