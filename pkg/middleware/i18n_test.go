package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestLocaleResolver(t *testing.T) {
	resolver := newLocaleResolver([]string{"en", "ru", "uz"})

	cases := []struct {
		name   string
		url    string
		cookie string
		accept string
		want   language.Tag
	}{
		{name: "fallback", url: "/login", want: language.English},
		{name: "accept-language", url: "/login", accept: "ru-RU,ru;q=0.9", want: language.Russian},
		{name: "unsupported accept-language", url: "/login", accept: "de-DE", want: language.English},
		{name: "cookie beats header", url: "/login", cookie: "uz", accept: "ru", want: language.Uzbek},
		{name: "query beats cookie", url: "/login?lang=ru", cookie: "uz", want: language.Russian},
		{name: "garbage query ignored", url: "/login?lang=not_a_tag!", accept: "uz", want: language.Uzbek},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tc.url, nil)
			if tc.cookie != "" {
				r.AddCookie(&http.Cookie{Name: LangCookie, Value: tc.cookie})
			}
			if tc.accept != "" {
				r.Header.Set("Accept-Language", tc.accept)
			}
			assert.Equal(t, tc.want, resolver.resolve(r))
		})
	}
}

func TestLocaleResolver_Whitelist(t *testing.T) {
	resolver := newLocaleResolver([]string{"ru"})
	r := httptest.NewRequest(http.MethodGet, "/login?lang=en", nil)
	assert.Equal(t, language.Russian, resolver.resolve(r))
}
