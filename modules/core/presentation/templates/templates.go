package templates

import (
	"embed"
	"sync"

	"github.com/iota-uz/admin-portal/components"
	"github.com/iota-uz/admin-portal/internal/assets"
)

//go:embed pages/*.html
var FS embed.FS

var pages = sync.OnceValue(func() *components.Renderer {
	return components.MustRenderer(FS, "pages/*.html", assets.FS)
})

// Pages returns the renderer for the core pages.
func Pages() *components.Renderer {
	return pages()
}
