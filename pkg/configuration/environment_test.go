package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_ReadsExistingFilesOnly(t *testing.T) {
	tmp := t.TempDir()
	t.Chdir(tmp)

	require.NoError(t, os.WriteFile(filepath.Join(tmp, ".env.local"), []byte("ADMIN_PORTAL_TEST_ENV=ok\n"), 0o644))
	t.Setenv("ADMIN_PORTAL_TEST_ENV", "")
	require.NoError(t, os.Unsetenv("ADMIN_PORTAL_TEST_ENV"))

	n, err := LoadEnv([]string{".env", ".env.local"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "ok", os.Getenv("ADMIN_PORTAL_TEST_ENV"))
}

func TestConfiguration_Validate(t *testing.T) {
	t.Setenv("RATE_LIMIT_STORAGE", "memory")

	newConf := func(t *testing.T) *Configuration {
		t.Helper()
		c := &Configuration{}
		require.NoError(t, env.Parse(c))
		return c
	}

	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, newConf(t).Validate())
	})

	t.Run("unknown cache driver", func(t *testing.T) {
		c := newConf(t)
		c.Cache.Driver = "memcached"
		require.Error(t, c.Validate())
	})

	t.Run("redis limiter requires url", func(t *testing.T) {
		c := newConf(t)
		c.RateLimit.Storage = "redis"
		c.RateLimit.RedisURL = ""
		require.Error(t, c.Validate())
	})

	t.Run("short signing key in production", func(t *testing.T) {
		c := newConf(t)
		c.GoAppEnvironment = Production
		c.Auth.SigningKey = "short"
		require.Error(t, c.Validate())
	})

	t.Run("finalize fills webauthn origins", func(t *testing.T) {
		c := newConf(t)
		c.Origin = "https://portal.example.com"
		t.Setenv("ORIGIN", "https://portal.example.com")
		c.finalize()
		require.Equal(t, []string{"https://portal.example.com"}, c.Auth.WebAuthnOrigins)
		require.Equal(t, "localhost:3200", c.SocketAddress)
	})
}
