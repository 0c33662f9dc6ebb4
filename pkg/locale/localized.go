package locale

// Localized holds one value per locale. Display code must go through
// Resolve so an empty variant falls back to the other locale.
type Localized[T comparable] struct {
	AR T `json:"ar"`
	EN T `json:"en"`
}

// Text is a bilingual string field.
type Text = Localized[string]

// New builds a Localized value.
func New[T comparable](ar, en T) Localized[T] {
	return Localized[T]{AR: ar, EN: en}
}

// Get returns the raw variant for l without fallback.
func (v Localized[T]) Get(l Locale) T {
	if l == AR {
		return v.AR
	}

	return v.EN
}

// Resolve returns the variant for l, or the other locale's variant when the
// requested one is the zero value.
func (v Localized[T]) Resolve(l Locale) T {
	var zero T

	if val := v.Get(l); val != zero {
		return val
	}

	return v.Get(l.Other())
}

// With returns a copy with the variant for l replaced.
func (v Localized[T]) With(l Locale, val T) Localized[T] {
	if l == AR {
		v.AR = val
	} else {
		v.EN = val
	}

	return v
}

// IsZero reports whether both variants are unset.
func (v Localized[T]) IsZero() bool {
	var zero T

	return v.AR == zero && v.EN == zero
}

// Complete reports whether both variants are set.
func (v Localized[T]) Complete() bool {
	var zero T

	return v.AR != zero && v.EN != zero
}

// Missing lists the locales whose variant is unset.
func (v Localized[T]) Missing() []Locale {
	var (
		zero    T
		missing []Locale
	)

	for _, l := range All {
		if v.Get(l) == zero {
			missing = append(missing, l)
		}
	}

	return missing
}
