package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDiscover_ClassifiesPythonProjects(t *testing.T) {
	parent := t.TempDir()

	writeFile(t, filepath.Join(parent, "api", "pyproject.toml"), `[project]
name = "api-service"
dependencies = ["flask>=2.0", "pytest>=8.0"]
`)
	writeFile(t, filepath.Join(parent, "worker", "requirements.txt"), "celery\nredis\n")
	writeFile(t, filepath.Join(parent, "frontend", "package.json"), "{}")
	require.NoError(t, os.MkdirAll(filepath.Join(parent, "empty"), 0o750))

	candidates, err := Discover(parent)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	// Sorted by name.
	assert.Equal(t, "api", candidates[0].Name)
	assert.Equal(t, "worker", candidates[1].Name)

	api := candidates[0]
	assert.Equal(t, "pip", api.Kind)
	assert.Equal(t, "api-service", api.ProjectName)
	assert.True(t, api.UsesPytest)

	worker := candidates[1]
	assert.Equal(t, "pip", worker.Kind)
	assert.False(t, worker.UsesPytest)
}

func TestDiscover_SkipsHiddenDirectories(t *testing.T) {
	parent := t.TempDir()
	writeFile(t, filepath.Join(parent, ".cache", "requirements.txt"), "pytest\n")

	candidates, err := Discover(parent)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestDiscover_PoetryProject(t *testing.T) {
	parent := t.TempDir()
	writeFile(t, filepath.Join(parent, "svc", "pyproject.toml"), `[tool.poetry]
name = "svc"

[tool.poetry.dependencies]
python = "^3.12"

[tool.poetry.group.dev.dependencies]
pytest = "^8.0"
`)

	candidates, err := Discover(parent)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "poetry", candidates[0].Kind)
	assert.Equal(t, "svc", candidates[0].ProjectName)
	assert.True(t, candidates[0].UsesPytest)
}

func TestDiscover_PipenvProject(t *testing.T) {
	parent := t.TempDir()
	writeFile(t, filepath.Join(parent, "legacy", "Pipfile"), `[packages]
requests = "*"

[dev-packages]
pytest = "*"
`)

	candidates, err := Discover(parent)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "pipenv", candidates[0].Kind)
	assert.True(t, candidates[0].UsesPytest)
}

func TestDiscover_VenvDetection(t *testing.T) {
	parent := t.TempDir()
	project := filepath.Join(parent, "svc")
	writeFile(t, filepath.Join(project, "requirements.txt"), "flask\n")
	writeFile(t, filepath.Join(project, ".venv", "bin", "python"), "")

	candidates, err := Discover(parent)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.True(t, candidates[0].HasVenv())
	assert.Equal(t, filepath.Join(project, ".venv"), candidates[0].VenvPath)
}

func TestDiscover_NoVenv(t *testing.T) {
	parent := t.TempDir()
	writeFile(t, filepath.Join(parent, "svc", "requirements.txt"), "flask\n")

	candidates, err := Discover(parent)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.False(t, candidates[0].HasVenv())
}

func TestDiscover_GuardAlreadyInstalled(t *testing.T) {
	parent := t.TempDir()
	project := filepath.Join(parent, "svc")
	writeFile(t, filepath.Join(project, "requirements.txt"), "flask\n")
	require.NoError(t, os.MkdirAll(filepath.Join(project, ".claude", "tdd-guard", "data"), 0o750))

	candidates, err := Discover(parent)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.True(t, candidates[0].GuardInstalled)
}

func TestDiscover_PytestFromDevRequirements(t *testing.T) {
	parent := t.TempDir()
	writeFile(t, filepath.Join(parent, "svc", "requirements.txt"), "flask\n")
	writeFile(t, filepath.Join(parent, "svc", "requirements-dev.txt"), "# dev deps\npytest>=8\n")

	candidates, err := Discover(parent)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.True(t, candidates[0].UsesPytest)
}

func TestDiscover_MissingParent(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestDiscover_Deterministic(t *testing.T) {
	parent := t.TempDir()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		writeFile(t, filepath.Join(parent, name, "requirements.txt"), "flask\n")
	}

	first, err := Discover(parent)
	require.NoError(t, err)
	second, err := Discover(parent)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "alpha", first[0].Name)
}

func TestDependencyIs(t *testing.T) {
	tests := []struct {
		requirement string
		want        bool
	}{
		{"pytest", true},
		{"pytest>=8.0", true},
		{"pytest[cov]", true},
		{"pytest-asyncio", false},
		{"flask", false},
		{"Pytest ~= 8.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.requirement, func(t *testing.T) {
			assert.Equal(t, tt.want, dependencyIs(tt.requirement, "pytest"))
		})
	}
}
