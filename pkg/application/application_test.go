package application

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/iota-uz/go-i18n/v2/i18n"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/pkg/types"
)

func TestSeeder_StopsAtFirstFailure(t *testing.T) {
	var ran []int
	step := func(n int, err error) SeedFunc {
		return func(context.Context, Application) error {
			ran = append(ran, n)
			return err
		}
	}
	boom := errors.New("boom")
	s := NewSeeder(logrus.New())
	s.Register(step(1, nil), step(2, boom), step(3, nil))

	err := s.Seed(context.Background(), nil)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "seed step 2/3")
	assert.Equal(t, []int{1, 2}, ran)
}

func TestRegisterLocaleFiles_TranslatesNav(t *testing.T) {
	app := New(&ApplicationOptions{Bundle: LoadBundle()})
	app.RegisterLocaleFiles(fstest.MapFS{
		"en.toml":   {Data: []byte(`"Nav.Users" = "Users"`)},
		"ru.toml":   {Data: []byte(`"Nav.Users" = "Пользователи"`)},
		"README.md": {Data: []byte("not a locale")},
	})
	app.RegisterNavItems(types.NavigationItem{Name: "Nav.Users", Href: "/users"}, types.NavigationItem{Name: "Nav.Missing"})

	items := app.NavItems(i18n.NewLocalizer(app.Bundle(), "ru"))
	require.Len(t, items, 2)
	assert.Equal(t, "Пользователи", items[0].Name)
	assert.Equal(t, "/users", items[0].Href)
	assert.Equal(t, "Nav.Missing", items[1].Name)
}

func TestRegisterLocaleFiles_PanicsOnBrokenFile(t *testing.T) {
	app := New(&ApplicationOptions{Bundle: LoadBundle()})
	assert.Panics(t, func() {
		app.RegisterLocaleFiles(fstest.MapFS{"en.toml": {Data: []byte(`= broken`)}})
	})
}
