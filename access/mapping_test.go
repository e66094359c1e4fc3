package access

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/ragfence/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMapping(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "role_mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadRoleMapping(t *testing.T) {
	t.Run("well-formed mapping", func(t *testing.T) {
		path := writeMapping(t, `{
			"Finance_Manager": ["Finance", "Internal", "Reports"],
			"Engineer": ["Technical"]
		}`)

		mapping, err := LoadRoleMapping(path)
		require.NoError(t, err)
		assert.Equal(t, core.RoleMapping{
			"Finance_Manager": {"Finance", "Internal", "Reports"},
			"Engineer":        {"Technical"},
		}, mapping)
	})

	t.Run("missing file is an empty mapping", func(t *testing.T) {
		mapping, err := LoadRoleMapping(filepath.Join(t.TempDir(), "absent.json"))
		require.NoError(t, err)
		assert.NotNil(t, mapping)
		assert.Empty(t, mapping)
	})

	t.Run("empty object", func(t *testing.T) {
		path := writeMapping(t, `{}`)
		mapping, err := LoadRoleMapping(path)
		require.NoError(t, err)
		assert.Empty(t, mapping)
	})

	t.Run("invalid JSON fails with ErrConfiguration", func(t *testing.T) {
		path := writeMapping(t, `{"Finance_Manager": [`)
		mapping, err := LoadRoleMapping(path)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Nil(t, mapping)
	})

	t.Run("role mapped to a non-list fails", func(t *testing.T) {
		path := writeMapping(t, `{"Finance_Manager": "Finance"}`)
		mapping, err := LoadRoleMapping(path)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Nil(t, mapping)
	})

	t.Run("role mapped to non-string entries fails", func(t *testing.T) {
		path := writeMapping(t, `{"Finance_Manager": [1, 2]}`)
		mapping, err := LoadRoleMapping(path)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Nil(t, mapping)
	})

	t.Run("null document fails", func(t *testing.T) {
		path := writeMapping(t, `null`)
		mapping, err := LoadRoleMapping(path)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Nil(t, mapping)
	})
}
