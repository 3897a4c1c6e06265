package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_PreservesFileOrder(t *testing.T) {
	path := writeCatalog(t, `models:
  - id: claude-3-5-haiku-20241022
    name: Claude 3.5 Haiku
    description: Fast and cheap
    default: true
  - id: claude-sonnet-4-20250514
    name: Claude Sonnet 4
    description: Balanced
  - id: claude-opus-4-20250514
    name: Claude Opus 4
    description: Most capable
`)

	models, warnings := Load(path)
	require.Empty(t, warnings)
	require.Len(t, models, 3)
	assert.Equal(t, "claude-3-5-haiku-20241022", models[0].ID)
	assert.Equal(t, "claude-sonnet-4-20250514", models[1].ID)
	assert.Equal(t, "claude-opus-4-20250514", models[2].ID)
	assert.True(t, models[0].Default)
}

func TestLoad_AbsentFileFallsBack(t *testing.T) {
	models, warnings := Load(filepath.Join(t.TempDir(), "models.yaml"))
	assert.Empty(t, warnings)
	require.Len(t, models, 1)
	assert.Equal(t, FallbackModel, models[0])
}

func TestLoad_UnparsableFileFallsBack(t *testing.T) {
	path := writeCatalog(t, "models: [not\n  yaml: {{{\n")

	models, warnings := Load(path)
	require.Len(t, models, 1)
	assert.Equal(t, FallbackModel, models[0])
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Reason, "unparsable")
}

func TestLoad_EmptyListFallsBack(t *testing.T) {
	path := writeCatalog(t, "models: []\n")

	models, warnings := Load(path)
	assert.Empty(t, warnings)
	require.Len(t, models, 1)
	assert.Equal(t, FallbackModel.ID, models[0].ID)
}

func TestLoad_DuplicateDefaultFirstWins(t *testing.T) {
	path := writeCatalog(t, `models:
  - id: first
    name: First
    default: true
  - id: second
    name: Second
    default: true
`)

	models, warnings := Load(path)
	require.Len(t, models, 2)
	assert.True(t, models[0].Default)
	assert.False(t, models[1].Default)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Reason, "second")
}

func TestDefaultModel(t *testing.T) {
	tests := []struct {
		name   string
		models []Model
		want   string
	}{
		{"marked default", []Model{{ID: "a"}, {ID: "b", Default: true}}, "b"},
		{"no default falls back to first", []Model{{ID: "a"}, {ID: "b"}}, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultModel(tt.models).ID)
		})
	}
}
