// Package locale holds the two site locales and the bilingual value type
// every user-facing field is stored as.
package locale

import "strings"

// Locale is one of the site languages.
type Locale string

// Supported locales.
const (
	AR Locale = "ar"
	EN Locale = "en"
)

// All lists the supported locales in display order.
var All = []Locale{AR, EN}

// Parse returns the locale for s ("ar", "EN", " en ").
func Parse(s string) (Locale, bool) {
	switch Locale(strings.ToLower(strings.TrimSpace(s))) {
	case AR:
		return AR, true
	case EN:
		return EN, true
	default:
		return "", false
	}
}

// Dir returns the text direction used by the locale.
func (l Locale) Dir() string {
	if l == AR {
		return "rtl"
	}

	return "ltr"
}

// Other returns the fallback locale.
func (l Locale) Other() Locale {
	if l == AR {
		return EN
	}

	return AR
}

func (l Locale) String() string {
	return string(l)
}
