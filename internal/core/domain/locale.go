package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

var ErrInvalidLocale = errors.New("invalid locale")

// Locale is a language with optional script, country and variant subtags.
// It is comparable and used as a map key.
type Locale struct {
	Language string
	Script   string
	Country  string
	Variant  string
}

// ParseLocale accepts "fr", "fr_CA", "fr-CA", "zh-Hant-TW" or "de-DE-1996"
// in any case.
func ParseLocale(s string) (Locale, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Locale{}, fmt.Errorf("%w: empty tag", ErrInvalidLocale)
	}

	tag, err := language.Raw.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return Locale{}, fmt.Errorf("%w: %q: %v", ErrInvalidLocale, s, err)
	}

	base, script, region := tag.Raw()
	loc := Locale{Language: base.String()}
	if script != (language.Script{}) {
		loc.Script = script.String()
	}
	if region != (language.Region{}) {
		loc.Country = region.String()
	}

	variants := tag.Variants()
	if len(variants) > 0 {
		parts := make([]string, len(variants))
		for i, v := range variants {
			parts[i] = v.String()
		}
		loc.Variant = strings.Join(parts, "-")
	}

	return loc, nil
}

// MustParseLocale panics on an invalid tag. Intended for constants and tests.
func MustParseLocale(s string) Locale {
	loc, err := ParseLocale(s)
	if err != nil {
		panic(err)
	}
	return loc
}

// ParseLocales parses every tag, failing on the first invalid one.
func ParseLocales(tags []string) ([]Locale, error) {
	locales := make([]Locale, 0, len(tags))
	for _, t := range tags {
		loc, err := ParseLocale(t)
		if err != nil {
			return nil, err
		}
		locales = append(locales, loc)
	}
	return locales, nil
}

// Tag renders the hyphenated form, e.g. "fr-CA" or "zh-Hant-TW".
func (l Locale) Tag() string {
	tag := l.Language
	if l.Script != "" {
		tag += "-" + l.Script
	}
	if l.Country != "" {
		tag += "-" + l.Country
	}
	if l.Variant != "" {
		tag += "-" + l.Variant
	}
	return tag
}

func (l Locale) String() string {
	return l.Tag()
}

func (l Locale) IsZero() bool {
	return l.Language == ""
}

// WithoutVariant drops the variant subtag.
func (l Locale) WithoutVariant() Locale {
	return Locale{Language: l.Language, Script: l.Script, Country: l.Country}
}

// LanguageOnly drops country and variant, keeping the script: "zh-Hant-TW"
// reduces to "zh-Hant", never to a value written in another script.
func (l Locale) LanguageOnly() Locale {
	return Locale{Language: l.Language, Script: l.Script}
}

func (l Locale) MarshalText() ([]byte, error) {
	return []byte(l.Tag()), nil
}

func (l *Locale) UnmarshalText(text []byte) error {
	loc, err := ParseLocale(string(text))
	if err != nil {
		return err
	}
	*l = loc
	return nil
}

// LocaleValues holds one attribute's translations keyed by locale.
type LocaleValues map[Locale]string

// ParseLocaleValues converts a tag-keyed map into LocaleValues. Two tags
// naming the same locale, such as "fr_CA" and "fr-CA", are rejected.
func ParseLocaleValues(values map[string]string) (LocaleValues, error) {
	tags := make([]string, 0, len(values))
	for tag := range values {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	out := make(LocaleValues, len(values))
	source := make(map[Locale]string, len(values))
	for _, tag := range tags {
		loc, err := ParseLocale(tag)
		if err != nil {
			return nil, err
		}
		if prev, ok := source[loc]; ok {
			return nil, fmt.Errorf("%w: %q and %q both name %s", ErrInvalidLocale, prev, tag, loc.Tag())
		}
		source[loc] = tag
		out[loc] = values[tag]
	}
	return out, nil
}
