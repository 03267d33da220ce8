package domain

import "time"

type Translation struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

type Store struct {
	Code             string   `json:"code"`
	CatalogCode      string   `json:"catalog_code"`
	DefaultLocale    Locale   `json:"default_locale"`
	SupportedLocales []Locale `json:"supported_locales"`
}

type Catalog struct {
	Code          string `json:"code"`
	DefaultLocale Locale `json:"default_locale"`
}

// AttributeProjection is the localized view of one catalog attribute for a store.
type AttributeProjection struct {
	Store        string        `json:"store"`
	Attribute    string        `json:"attribute"`
	Translations []Translation `json:"translations"`
	BuiltAt      time.Time     `json:"built_at"`
}
