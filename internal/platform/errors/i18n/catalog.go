// Package i18n provides internationalization support for error messages.
package i18n

import (
	"bytes"
	"sort"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// BaseLocale is the locale every lookup falls back to.
const BaseLocale = "en-US"

// Code is a machine-readable error code (duplicated from errors package to avoid cycle).
type Code = string

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{BaseLocale: enUSCatalog}
)

// GetCatalog returns the catalog that best matches locale. Region variants
// fall back to a registered catalog for the same language, and anything
// unmatched falls back to en-US.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}
	if c, ok := lookupCatalog(requested); ok {
		return c
	}

	tag, err := language.Parse(requested)
	if err != nil {
		return baseCatalog()
	}
	if c, ok := lookupCatalog(tag.String()); ok {
		return c
	}

	locales, tags := registeredTags()
	if len(tags) == 0 {
		return baseCatalog()
	}
	_, index, confidence := language.NewMatcher(tags).Match(tag)
	if confidence == language.No || index < 0 || index >= len(locales) {
		return baseCatalog()
	}
	if c, ok := lookupCatalog(locales[index]); ok {
		return c
	}
	return baseCatalog()
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template with the given metadata.
// Falls back to the error code itself if no template is found, and to the raw
// template when it fails to parse or execute.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return code
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	t, err := template.New("msg").Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

// RegisterCatalog registers a catalog for the given locale, replacing any
// existing one.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[locale] = cat
}

// NewCatalog creates a new catalog with the given locale and messages.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{
		locale:   locale,
		messages: cloned,
	}
}

func lookupCatalog(locale string) (*Catalog, bool) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	cat, ok := catalogs[locale]
	return cat, ok
}

func baseCatalog() *Catalog {
	if c, ok := lookupCatalog(BaseLocale); ok {
		return c
	}
	return enUSCatalog
}

// registeredTags lists registered locales with the base locale first, which
// makes it the matcher default.
func registeredTags() ([]string, []language.Tag) {
	catalogsMu.RLock()
	names := make([]string, 0, len(catalogs))
	for name := range catalogs {
		if name != BaseLocale {
			names = append(names, name)
		}
	}
	catalogsMu.RUnlock()
	sort.Strings(names)
	names = append([]string{BaseLocale}, names...)

	locales := make([]string, 0, len(names))
	tags := make([]language.Tag, 0, len(names))
	for _, name := range names {
		tag, err := language.Parse(name)
		if err != nil {
			continue
		}
		locales = append(locales, name)
		tags = append(tags, tag)
	}
	return locales, tags
}
