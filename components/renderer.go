package components

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/benbjohnson/hashfs"

	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/types"
)

type navContext struct {
	View *View
	Item types.NavigationItem
}

//go:embed base/*.html
var baseFS embed.FS

// Renderer holds one parsed template set per page. Each set contains the
// shared layout plus the page file, which must define "content".
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every file matching pattern in fsys as a page keyed by
// its base name without extension. Asset paths resolve through assets when given.
func NewRenderer(fsys fs.FS, pattern string, assets *hashfs.FS) (*Renderer, error) {
	base, err := template.New("base").Funcs(Funcs(assets)).ParseFS(baseFS, "base/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	files, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(fsys, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		name := strings.TrimSuffix(path.Base(file), path.Ext(file))
		r.pages[name] = t
	}
	return r, nil
}

func MustRenderer(fsys fs.FS, pattern string, assets *hashfs.FS) *Renderer {
	r, err := NewRenderer(fsys, pattern, assets)
	if err != nil {
		panic(err)
	}
	return r
}

// Component wraps a page as a templ component rendered through the layout.
func (r *Renderer) Component(page string, v *View) templ.Component {
	t, ok := r.pages[page]
	if !ok {
		return templ.ComponentFunc(func(_ context.Context, _ io.Writer) error {
			return fmt.Errorf("unknown page %q", page)
		})
	}
	return templ.FromGoHTML(t.Lookup("layout"), v)
}

// Render writes the page with status 200, or status when given.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, page string, v *View, status ...int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if len(status) > 0 {
		w.WriteHeader(status[0])
	}
	if err := r.Component(page, v).Render(req.Context(), w); err != nil {
		composables.UseLogger(req.Context()).WithError(err).WithField("page", page).Error("render page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// Funcs are the helpers available to every page template.
func Funcs(assets *hashfs.FS) template.FuncMap {
	return template.FuncMap{
		"icon": func(c templ.Component) template.HTML {
			if c == nil {
				return ""
			}
			h, err := templ.ToGoHTML(context.Background(), c)
			if err != nil {
				return ""
			}
			return h
		},
		"asset": func(name string) string {
			if assets == nil {
				return "/assets/" + name
			}
			return "/assets/" + assets.HashName(name)
		},
		"datetime": func(t any) string {
			switch v := t.(type) {
			case time.Time:
				if v.IsZero() {
					return ""
				}
				return v.Format("2006-01-02 15:04")
			case *time.Time:
				if v == nil || v.IsZero() {
					return ""
				}
				return v.Format("2006-01-02 15:04")
			}
			return ""
		},
		"inputTime": func(t any) string {
			switch v := t.(type) {
			case time.Time:
				if v.IsZero() {
					return ""
				}
				return v.Format("2006-01-02T15:04")
			case *time.Time:
				if v == nil {
					return ""
				}
				return v.Format("2006-01-02T15:04")
			}
			return ""
		},
		"json": func(v any) (template.JS, error) {
			b, err := json.Marshal(v)
			return template.JS(b), err
		},
		"contains": func(list any, v string) bool {
			switch l := list.(type) {
			case []string:
				for _, s := range l {
					if s == v {
						return true
					}
				}
			case map[string]bool:
				return l[v]
			}
			return false
		},
		"navCtx": func(v *View, item types.NavigationItem) navContext {
			return navContext{View: v, Item: item}
		},
		"dict": func(kv ...any) (map[string]interface{}, error) {
			if len(kv)%2 != 0 {
				return nil, fmt.Errorf("dict: odd number of arguments")
			}
			m := make(map[string]interface{}, len(kv)/2)
			for i := 0; i < len(kv); i += 2 {
				k, ok := kv[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
				}
				m[k] = kv[i+1]
			}
			return m, nil
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
		"str": func(v any) string {
			return fmt.Sprint(v)
		},
	}
}
