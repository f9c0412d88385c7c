package enrichment

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nephroseq/genevidence-cli/api/schemas"
)

func writeTermFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terms.tsv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTermFile(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves known terms", func(t *testing.T) {
		path := writeTermFile(t, "# id\tname\nHP:0000107\tRenal cyst\nHP:0000113\tPolycystic kidney dysplasia\n\n")
		tf, err := LoadTermFile(path, zap.NewNop())
		require.NoError(t, err)

		info, err := tf.GetTerm(ctx, "HP:0000107")
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, "Renal cyst", info.Name)
	})

	t.Run("unknown term resolves to nil", func(t *testing.T) {
		path := writeTermFile(t, "HP:0000107\tRenal cyst\n")
		tf, err := LoadTermFile(path, zap.NewNop())
		require.NoError(t, err)

		info, err := tf.GetTerm(ctx, "HP:9999999")
		require.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("extra columns are ignored", func(t *testing.T) {
		path := writeTermFile(t, "HP:0000107\tRenal cyst\tUBERON:0002113\n")
		tf, err := LoadTermFile(path, zap.NewNop())
		require.NoError(t, err)

		info, err := tf.GetTerm(ctx, "HP:0000107")
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, "Renal cyst", info.Name)
	})

	t.Run("malformed line fails loudly", func(t *testing.T) {
		path := writeTermFile(t, "HP:0000107 Renal cyst\n")
		_, err := LoadTermFile(path, zap.NewNop())
		require.Error(t, err)
		assert.True(t, schemas.IsConfiguration(err))
	})

	t.Run("missing file is a configuration error", func(t *testing.T) {
		_, err := LoadTermFile(filepath.Join(t.TempDir(), "absent.tsv"), zap.NewNop())
		require.Error(t, err)
		assert.True(t, schemas.IsConfiguration(err))
	})
}
