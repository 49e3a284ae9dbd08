package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashedNames(t *testing.T) {
	for _, name := range []string{"app.css", "app.js"} {
		hashed := FS.HashName(name)
		assert.NotEqual(t, name, hashed, name)

		f, err := FS.Open(hashed)
		require.NoError(t, err, hashed)
		require.NoError(t, f.Close())
	}
}
