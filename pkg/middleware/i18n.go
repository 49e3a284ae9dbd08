package middleware

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/iota-uz/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/intl"
)

// LangCookie remembers the language picked on pages served before sign-in.
const LangCookie = "lang"

// LocaleSource is the part of the application the localizer needs.
type LocaleSource interface {
	Bundle() *i18n.Bundle
	GetSupportedLanguages() []string
}

type localeResolver struct {
	fallback language.Tag
	matcher  language.Matcher
	tags     []language.Tag
}

func newLocaleResolver(codes []string) *localeResolver {
	supported := intl.GetSupportedLanguages(codes)
	tags := make([]language.Tag, 0, len(supported))
	for _, lang := range supported {
		tags = append(tags, lang.Tag)
	}
	if len(tags) == 0 {
		tags = []language.Tag{language.English}
	}
	return &localeResolver{fallback: tags[0], matcher: language.NewMatcher(tags), tags: tags}
}

func (l *localeResolver) match(candidates ...language.Tag) language.Tag {
	if len(candidates) == 0 {
		return l.fallback
	}
	_, idx, conf := l.matcher.Match(candidates...)
	if conf == language.No {
		return l.fallback
	}
	return l.tags[idx]
}

// resolve prefers, in order, the signed-in user's UI language, an explicit
// ?lang= parameter, the lang cookie and Accept-Language.
func (l *localeResolver) resolve(r *http.Request) language.Tag {
	if u, err := composables.UseUser(r.Context()); err == nil {
		if tag, err := language.Parse(string(u.UILanguage())); err == nil {
			return l.match(tag)
		}
	}
	if v := r.URL.Query().Get("lang"); v != "" {
		if tag, err := language.Parse(v); err == nil {
			return l.match(tag)
		}
	}
	if c, err := r.Cookie(LangCookie); err == nil {
		if tag, err := language.Parse(c.Value); err == nil {
			return l.match(tag)
		}
	}
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil {
		return l.fallback
	}
	return l.match(tags...)
}

func ProvideLocalizer(app LocaleSource) mux.MiddlewareFunc {
	bundle := app.Bundle()
	resolver := newLocaleResolver(app.GetSupportedLanguages())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := resolver.resolve(r)
			if r.URL.Query().Has("lang") {
				http.SetCookie(w, &http.Cookie{
					Name:     LangCookie,
					Value:    locale.String(),
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := intl.WithLocalizer(r.Context(), i18n.NewLocalizer(bundle, locale.String()))
			next.ServeHTTP(w, r.WithContext(intl.WithLocale(ctx, locale)))
		})
	}
}
