package locale_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthassoc/bayan/pkg/locale"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want locale.Locale
		ok   bool
	}{
		{in: "ar", want: locale.AR, ok: true},
		{in: "EN", want: locale.EN, ok: true},
		{in: " en ", want: locale.EN, ok: true},
		{in: "fr", ok: false},
		{in: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := locale.Parse(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocale_DirAndOther(t *testing.T) {
	assert.Equal(t, "rtl", locale.AR.Dir())
	assert.Equal(t, "ltr", locale.EN.Dir())
	assert.Equal(t, locale.EN, locale.AR.Other())
	assert.Equal(t, locale.AR, locale.EN.Other())
}

func TestLocalized_ResolveFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		value locale.Text
		loc   locale.Locale
		want  string
	}{
		{name: "ar present", value: locale.New("برنامج", "Program"), loc: locale.AR, want: "برنامج"},
		{name: "en present", value: locale.New("برنامج", "Program"), loc: locale.EN, want: "Program"},
		{name: "ar empty falls back to en", value: locale.New("", "Program"), loc: locale.AR, want: "Program"},
		{name: "en empty falls back to ar", value: locale.New("برنامج", ""), loc: locale.EN, want: "برنامج"},
		{name: "both empty", value: locale.Text{}, loc: locale.EN, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.Resolve(tt.loc))
		})
	}
}

func TestLocalized_NeverEmptyWhenOneVariantSet(t *testing.T) {
	values := []locale.Text{
		locale.New("a", ""),
		locale.New("", "b"),
		locale.New("a", "b"),
	}

	for _, v := range values {
		for _, l := range locale.All {
			assert.NotEmpty(t, v.Resolve(l))
		}
	}
}

func TestLocalized_Generic(t *testing.T) {
	counts := locale.New(0, 7)
	assert.Equal(t, 7, counts.Resolve(locale.AR))
	assert.Equal(t, 0, counts.Get(locale.AR))

	updated := counts.With(locale.AR, 3)
	assert.Equal(t, 3, updated.Resolve(locale.AR))
	assert.Equal(t, 0, counts.AR, "With must not mutate the receiver")
}

func TestLocalized_CompleteAndMissing(t *testing.T) {
	assert.True(t, locale.New("a", "b").Complete())
	assert.False(t, locale.New("a", "").Complete())
	assert.True(t, locale.Text{}.IsZero())
	assert.Equal(t, []locale.Locale{locale.EN}, locale.New("a", "").Missing())
	assert.Nil(t, locale.New("a", "b").Missing())
}

func TestLocalized_JSON(t *testing.T) {
	data, err := json.Marshal(locale.New("مرحبا", "Hello"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ar":"مرحبا","en":"Hello"}`, string(data))
}

func TestCatalog_T(t *testing.T) {
	c := locale.Catalog{
		"greeting": locale.New("مرحبا", "Hello"),
		"only_en":  locale.New("", "English only"),
	}

	assert.Equal(t, "مرحبا", c.T(locale.AR, "greeting"))
	assert.Equal(t, "English only", c.T(locale.AR, "only_en"))
	assert.Equal(t, "missing.key", c.T(locale.EN, "missing.key"))
}

func TestMessages_AllBilingual(t *testing.T) {
	for key, msg := range locale.Messages {
		assert.Truef(t, msg.Complete(), "message %q must have both locales", key)
	}
}
