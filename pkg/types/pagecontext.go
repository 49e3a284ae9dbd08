package types

import (
	"net/url"

	"github.com/iota-uz/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// PageContext provides localization and page metadata for template rendering.
type PageContext struct {
	Locale    language.Tag
	URL       *url.URL
	Localizer *i18n.Localizer
	// Resources granted to the signed-in user; nil for anonymous pages.
	Resources  map[string]bool
	Superadmin bool
	prefix     string
}

func (p *PageContext) messageID(k string) string {
	if p.prefix != "" {
		return p.prefix + "." + k
	}
	return k
}

func (p *PageContext) T(k string, args ...map[string]interface{}) string {
	if len(args) > 1 {
		panic("T(): too many arguments")
	}
	cfg := &i18n.LocalizeConfig{MessageID: p.messageID(k)}
	if len(args) == 1 {
		cfg.TemplateData = args[0]
	}
	return p.Localizer.MustLocalize(cfg)
}

// TSafe is like T but falls back to the message id instead of panicking.
func (p *PageContext) TSafe(k string, args ...map[string]interface{}) string {
	if len(args) > 1 {
		panic("T(): too many arguments")
	}
	if p.Localizer == nil {
		return p.messageID(k)
	}
	cfg := &i18n.LocalizeConfig{MessageID: p.messageID(k)}
	if len(args) == 1 {
		cfg.TemplateData = args[0]
	}
	result, err := p.Localizer.Localize(cfg)
	if err != nil {
		return p.messageID(k)
	}
	return result
}

// Namespace returns a copy whose translation keys are prefixed with prefix.
func (p *PageContext) Namespace(prefix string) *PageContext {
	cp := *p
	cp.prefix = prefix
	return &cp
}

// ToJSLocale converts the page locale to a locale string for Intl APIs.
func (p *PageContext) ToJSLocale() string {
	switch base, _ := p.Locale.Base(); base.String() {
	case "ru":
		return "ru-RU"
	case "uz":
		return "uz-UZ"
	default:
		return "en-US"
	}
}

func (p *PageContext) Can(resource string) bool {
	return p.Superadmin || p.Resources[resource]
}
