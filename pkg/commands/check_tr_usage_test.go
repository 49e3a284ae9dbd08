package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCollectTrUsages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page.html", `<h1>{{.T "Users.Title"}}</h1>
<p>{{$.T "Common.Empty"}} {{.T (printf "Dynamic.%s" .Key)}}</p>`)
	writeFile(t, dir, "links.go", `package x

var link = Item{Name: "Nav.Users", Href: "/users"}
var other = Item{Name: "plain"}
var errX = serrors.NewError(serrors.Forbidden, "forbidden", "Errors.Forbidden")

func f(ctx context.Context, p *PageContext) {
	_ = intl.T(ctx, "Users.Saved")
	_ = p.T("Users.List")
	_ = fmt.Sprintf("%s", "not.a.key")
}
`)
	writeFile(t, dir, "links_test.go", `package x

var _ = Item{Name: "Nav.Ignored"}
`)
	writeFile(t, dir, "node_modules/pkg/index.html", `{{.T "Vendor.Key"}}`)

	usages, err := collectTrUsages(dir)
	require.NoError(t, err)

	keys := make([]string, 0, len(usages))
	for _, u := range usages {
		keys = append(keys, u.Key)
	}
	assert.ElementsMatch(t, []string{
		"Users.Title", "Common.Empty",
		"Nav.Users", "Errors.Forbidden", "Users.Saved", "Users.List",
	}, keys)
}

func TestMissingKeys(t *testing.T) {
	usages := []trUsage{
		{Key: "A.One", File: "a.html", Line: 1},
		{Key: "A.One", File: "b.html", Line: 7},
		{Key: "A.Two", File: "c.go", Line: 3},
	}
	tags := map[string]language.Tag{"en": language.English, "ru": language.Russian}
	present := map[language.Tag]map[string]bool{
		language.English: {"A.One": true, "A.Two": true},
		language.Russian: {"A.Two": true},
	}

	missing := missingKeys(usages, tags, func(tag language.Tag, key string) bool {
		return present[tag][key]
	})
	require.Len(t, missing, 1)
	assert.Equal(t, "ru", missing[0].locale)
	assert.Equal(t, "A.One", missing[0].Key)
	assert.Equal(t, "a.html", missing[0].File)
}
