package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardkit/guardkit/internal/configstore"
	"github.com/guardkit/guardkit/internal/ide"
	"github.com/guardkit/guardkit/internal/selection"
)

func writeModule(t *testing.T, root, id string, priority int, extra, instructions, scenarios string) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	meta := fmt.Sprintf("name: %s\npriority: %d\n%s", id, priority, extra)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.yaml"), []byte(meta), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "instructions.md"), []byte(instructions), 0o644))
	if scenarios != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "test-scenarios.md"), []byte(scenarios), 0o644))
	}
}

func modulesFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeModule(t, root, "core", 1, "default: true\n",
		"# Core\n## Rules\nAlways test first.\n", "# Core Scenarios\n## Phase Red\nWrite a failing test.\n")
	writeModule(t, root, "pytest", 2, "default: true\n",
		"# Pytest\n## Runner\nUse pytest.\n", "")
	writeModule(t, root, "flask", 3, "",
		"# Flask\n## Views\nTest views.\n", "")
	return root
}

// scriptedInput returns an *os.File that yields the given lines as stdin.
func scriptedInput(t *testing.T, lines ...string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func discardOutput(t *testing.T) *os.File {
	t.Helper()
	f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestRun_AllMode(t *testing.T) {
	out := t.TempDir()

	summary, err := Run(context.Background(), Options{
		ModulesDir: modulesFixture(t),
		OutputDir:  out,
		Mode:       selection.ModeAll,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"core", "pytest", "flask"}, summary.Selected)
	assert.Empty(t, summary.TargetPath)
	assert.Nil(t, summary.Apply)

	data, err := os.ReadFile(summary.InstructionsPath)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "# TDD Guard Rules"))
	assert.Contains(t, text, "Always test first.")
	assert.Contains(t, text, "Test views.")
	assert.Less(t, strings.Index(text, "Always test first."), strings.Index(text, "Test views."))

	scen, err := os.ReadFile(summary.ScenariosPath)
	require.NoError(t, err)
	assert.Contains(t, string(scen), "Write a failing test.")
}

func TestRun_AllModeSavesConfig(t *testing.T) {
	out := t.TempDir()

	summary, err := Run(context.Background(), Options{
		ModulesDir: modulesFixture(t),
		OutputDir:  out,
		Mode:       selection.ModeAll,
	})
	require.NoError(t, err)
	assert.True(t, summary.ConfigSaved)

	data, err := os.ReadFile(filepath.Join(out, configstore.FileName))
	require.NoError(t, err)

	var cfg configstore.Config
	require.NoError(t, json.Unmarshal(data, &cfg))
	assert.Equal(t, []string{"core", "pytest", "flask"}, cfg.SelectedModules)
	assert.NotEmpty(t, cfg.RunID)
	assert.True(t, cfg.EnableHooks)
}

func TestRun_ListMode(t *testing.T) {
	summary, err := Run(context.Background(), Options{
		ModulesDir: modulesFixture(t),
		OutputDir:  t.TempDir(),
		Mode:       selection.ModeList,
		IDs:        []string{"flask", "core"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"core", "flask"}, summary.Selected)
}

func TestRun_ListModeUnknownModule(t *testing.T) {
	_, err := Run(context.Background(), Options{
		ModulesDir: modulesFixture(t),
		OutputDir:  t.TempDir(),
		Mode:       selection.ModeList,
		IDs:        []string{"nope"},
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNothingProduced)
	assert.Contains(t, err.Error(), "nope")
}

func TestRun_MissingModulesDir(t *testing.T) {
	_, err := Run(context.Background(), Options{
		ModulesDir: filepath.Join(t.TempDir(), "absent"),
		OutputDir:  t.TempDir(),
		Mode:       selection.ModeAll,
	})
	assert.ErrorIs(t, err, ErrNothingProduced)
}

func TestRun_EmptyModulesDir(t *testing.T) {
	_, err := Run(context.Background(), Options{
		ModulesDir: t.TempDir(),
		OutputDir:  t.TempDir(),
		Mode:       selection.ModeAll,
	})
	assert.ErrorIs(t, err, ErrNothingProduced)
}

func TestRun_MandatoryModuleForcedHeadless(t *testing.T) {
	root := modulesFixture(t)
	writeModule(t, root, "haiku-fix", 9, "mandatory_for_model: claude-3-5-haiku-20241022\n",
		"# Haiku Fix\n## Output\nEmit strict JSON.\n", "")

	summary, err := Run(context.Background(), Options{
		ModulesDir: root,
		OutputDir:  t.TempDir(),
		Mode:       selection.ModeList,
		IDs:        []string{"core"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"core", "haiku-fix"}, summary.Selected)
	assert.Equal(t, []string{"haiku-fix"}, summary.ForcedMandatory)
}

func TestRun_TargetIntegration(t *testing.T) {
	target := t.TempDir()

	summary, err := Run(context.Background(), Options{
		ModulesDir: modulesFixture(t),
		OutputDir:  t.TempDir(),
		Mode:       selection.ModeAll,
		Target:     target,
	})
	require.NoError(t, err)

	require.NotNil(t, summary.Apply)
	assert.True(t, summary.Apply.OK())
	assert.Empty(t, summary.Apply.Errors)

	settings, err := os.ReadFile(filepath.Join(target, ide.SettingsFile))
	require.NoError(t, err)
	assert.Contains(t, string(settings), "tdd-guard")

	instr, err := os.ReadFile(filepath.Join(target, ide.GuardInstructionsFile))
	require.NoError(t, err)
	assert.Contains(t, string(instr), "Always test first.")
}

func TestRun_InteractiveDefaults(t *testing.T) {
	out := t.TempDir()

	// Blank answers take every default: keep default-enabled modules, the
	// default model, and all integration defaults.
	in := scriptedInput(t, "", "", "", "", "", "", "", "", "", "")

	summary, err := Run(context.Background(), Options{
		ModulesDir: modulesFixture(t),
		OutputDir:  out,
		Mode:       selection.ModeInteractive,
		Plain:      true,
		In:         in,
		Out:        discardOutput(t),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"core", "pytest"}, summary.Selected)
	assert.Equal(t, "claude-3-5-haiku-20241022", summary.ModelID)
	assert.FileExists(t, summary.InstructionsPath)
}

func TestRun_InteractiveReusePrevious(t *testing.T) {
	out := t.TempDir()
	prev := configstore.Defaults()
	prev.SelectedModules = []string{"flask"}
	prev.ModelID = "claude-sonnet-4"
	require.NoError(t, configstore.Save(prev, filepath.Join(out, configstore.FileName)))

	// Single "y" accepts the previous configuration; no further questions.
	in := scriptedInput(t, "y")

	summary, err := Run(context.Background(), Options{
		ModulesDir: modulesFixture(t),
		OutputDir:  out,
		Mode:       selection.ModeInteractive,
		Plain:      true,
		In:         in,
		Out:        discardOutput(t),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"flask"}, summary.Selected)
	assert.Equal(t, "claude-sonnet-4", summary.ModelID)
}

func TestRun_InteractiveCorruptPreviousStartsFresh(t *testing.T) {
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, configstore.FileName), []byte("{broken"), 0o644))

	in := scriptedInput(t, "", "", "", "", "", "", "", "", "", "")

	summary, err := Run(context.Background(), Options{
		ModulesDir: modulesFixture(t),
		OutputDir:  out,
		Mode:       selection.ModeInteractive,
		Plain:      true,
		In:         in,
		Out:        discardOutput(t),
	})
	require.NoError(t, err)

	// Fresh defaults, not the corrupt file's contents.
	assert.Equal(t, []string{"core", "pytest"}, summary.Selected)
}

func TestRun_SizeWarning(t *testing.T) {
	root := t.TempDir()
	var b strings.Builder
	b.WriteString("# Big\n## Rules\n")
	for i := 0; i < 400; i++ {
		fmt.Fprintf(&b, "Rule number %d.\n", i)
	}
	writeModule(t, root, "big", 1, "default: true\n", b.String(), "")

	summary, err := Run(context.Background(), Options{
		ModulesDir: root,
		OutputDir:  t.TempDir(),
		Mode:       selection.ModeAll,
	})
	require.NoError(t, err)
	assert.True(t, summary.SizeWarning)
	assert.Greater(t, summary.LineCount, 300)
}

func TestRun_NoScenariosFileWhenNoneShip(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "solo", 1, "default: true\n", "# Solo\n## Rules\nOne rule.\n", "")

	summary, err := Run(context.Background(), Options{
		ModulesDir: root,
		OutputDir:  t.TempDir(),
		Mode:       selection.ModeAll,
	})
	require.NoError(t, err)
	assert.Empty(t, summary.ScenariosPath)
}
