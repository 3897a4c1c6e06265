package ide

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/guardkit/guardkit/internal/modules"
)

// TestRunnerModuleID is the module whose selection marks the companion test
// runner as in play, enabling the auto-approve allow rules.
const TestRunnerModuleID = "pytest"

// protectDenyRule blocks agents from reading the guard's own configuration.
const protectDenyRule = "Read(.claude/tdd-guard/**)"

// bypassDenyRules block shell commands that can rewrite files without going
// through the guarded Write/Edit tools.
var bypassDenyRules = []string{
	"Bash(echo:*)",
	"Bash(printf:*)",
	"Bash(sed:*)",
	"Bash(awk:*)",
	"Bash(perl:*)",
}

// testRunnerAllowRules pre-approve the companion test runner's invocations.
var testRunnerAllowRules = []string{
	"Bash(pytest:*)",
	"Bash(python -m pytest:*)",
}

// DefaultIgnorePatterns is the fixed base ignore list the guard ships with.
// Configuration only ever removes entries from it, never adds.
var DefaultIgnorePatterns = []string{
	"*.log", "**/*.json", "**/*.yml", "**/*.yaml",
	"**/*.xml", "**/*.html", "**/*.css", "**/*.rst",
	"*.md", "*.txt",
}

// guardConfig is the on-disk schema of the guard's data/config.json.
type guardConfig struct {
	GuardEnabled   bool     `json:"guardEnabled"`
	IgnorePatterns []string `json:"ignorePatterns"`
}

// Input carries the answers that drive the integration.
type Input struct {
	ModelID               string
	EnableHooks           bool
	CopyInstructions      bool
	ConfigureIgnore       bool
	ProtectGuardSettings  bool
	BlockFileBypass       bool
	AutoApproveTestRunner bool

	// Instructions is the assembled document copied into the IDE data dir.
	Instructions string

	// Selected is the final module selection; it feeds remove_from_ignore
	// and the test-runner detection.
	Selected []modules.Module
}

// ApplyResult reports the outcome of each sub-step. A disabled sub-step
// counts as OK.
type ApplyResult struct {
	HooksOK        bool
	ModelOK        bool
	InstructionsOK bool
	IgnoreOK       bool
	EnforcementOK  bool

	// BackupPath is where a corrupt settings file was preserved, when one was.
	BackupPath string

	// RemovedIgnorePatterns lists patterns dropped from the ignore list on
	// behalf of selected modules.
	RemovedIgnorePatterns []string

	// Errors holds one message per failed sub-step.
	Errors []string
}

// OK reports whether every sub-step succeeded.
func (r ApplyResult) OK() bool {
	return r.HooksOK && r.ModelOK && r.InstructionsOK && r.IgnoreOK && r.EnforcementOK
}

// Apply merges the requested integration into the project rooted at root.
// Sub-steps are applied independently: a failure in one is recorded and the
// rest still run. Apply itself only fails for conditions that prevent any
// settings work at all (e.g. the settings file unreadable for non-parse
// reasons).
func Apply(root string, in Input) (ApplyResult, error) {
	result := ApplyResult{}

	settingsPath := filepath.Join(root, filepath.FromSlash(SettingsFile))
	doc, backup, err := loadSettings(settingsPath)
	if err != nil {
		return result, err
	}
	result.BackupPath = backup

	result.HooksOK = step(&result, "hooks", func() error {
		if !in.EnableHooks {
			return nil
		}
		return ensureHooks(doc)
	})

	result.ModelOK = step(&result, "model", func() error {
		if in.ModelID == "" {
			return nil
		}
		return setModel(doc, in.ModelID)
	})

	result.EnforcementOK = step(&result, "enforcement", func() error {
		return applyEnforcement(doc, in)
	})

	// The in-memory merge lands in one write; a save failure fails every
	// settings-backed sub-step.
	if err := saveSettings(doc, settingsPath); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("settings: %v", err))
		result.HooksOK = false
		result.ModelOK = false
		result.EnforcementOK = false
	}

	result.InstructionsOK = step(&result, "instructions", func() error {
		if !in.CopyInstructions {
			return nil
		}
		return copyInstructions(root, in.Instructions)
	})

	result.IgnoreOK = step(&result, "ignore patterns", func() error {
		if !in.ConfigureIgnore {
			return nil
		}
		removed, err := configureIgnore(root, in.Selected)
		result.RemovedIgnorePatterns = removed
		return err
	})

	return result, nil
}

// step runs one sub-step, converting its error into a recorded failure.
func step(result *ApplyResult, name string, fn func() error) bool {
	if err := fn(); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
		return false
	}
	return true
}

// ensureHooks guarantees exactly one guard hook entry per event, preserving
// entries belonging to other tools. Re-running never duplicates.
func ensureHooks(doc document) error {
	var hooks map[string][]HookEntry
	if err := doc.section("hooks", &hooks); err != nil {
		return err
	}
	if hooks == nil {
		hooks = map[string][]HookEntry{}
	}

	for _, ev := range hookEvents {
		entries := hooks[ev.Event]

		// Drop existing guard entries, keep foreign ones.
		kept := entries[:0]
		for _, e := range entries {
			if !referencesGuard(e) {
				kept = append(kept, e)
			}
		}

		kept = append(kept, HookEntry{
			Matcher: ev.Matcher,
			Hooks:   []HookCommand{{Type: "command", Command: GuardCommand}},
		})
		hooks[ev.Event] = kept
	}

	return doc.setSection("hooks", hooks)
}

func referencesGuard(e HookEntry) bool {
	for _, h := range e.Hooks {
		if h.Command == GuardCommand {
			return true
		}
	}
	return false
}

// setModel overwrites the guard's model env var, preserving other env keys.
func setModel(doc document, modelID string) error {
	var env map[string]string
	if err := doc.section("env", &env); err != nil {
		return err
	}
	if env == nil {
		env = map[string]string{}
	}
	env[ModelEnvKey] = modelID
	return doc.setSection("env", env)
}

// applyEnforcement merges deny/allow rules into the permissions section.
// Rules are deduplicated and the lists sorted so repeated applies produce
// identical documents.
func applyEnforcement(doc document, in Input) error {
	if !in.ProtectGuardSettings && !in.BlockFileBypass && !in.AutoApproveTestRunner {
		return nil
	}

	perms, err := doc.permissions()
	if err != nil {
		return err
	}

	var deny []string
	if in.ProtectGuardSettings {
		deny = append(deny, protectDenyRule)
	}
	if in.BlockFileBypass {
		deny = append(deny, bypassDenyRules...)
	}
	perms.Deny = mergeRules(perms.Deny, deny)

	if in.AutoApproveTestRunner && testRunnerSelected(in.Selected) {
		perms.Allow = mergeRules(perms.Allow, testRunnerAllowRules)
	}

	return doc.setSection("permissions", perms)
}

func testRunnerSelected(selected []modules.Module) bool {
	for _, m := range selected {
		if m.ID == TestRunnerModuleID {
			return true
		}
	}
	return false
}

// mergeRules unions existing and added rules, deduplicated and sorted.
func mergeRules(existing, added []string) []string {
	seen := map[string]bool{}
	merged := make([]string, 0, len(existing)+len(added))
	for _, lists := range [][]string{existing, added} {
		for _, r := range lists {
			if !seen[r] {
				seen[r] = true
				merged = append(merged, r)
			}
		}
	}
	sort.Strings(merged)
	return merged
}

// copyInstructions places the assembled document where the guard hook reads
// custom instructions from.
func copyInstructions(root, instructions string) error {
	dir := filepath.Join(root, filepath.FromSlash(GuardDataDir))
	if err := FS.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(root, filepath.FromSlash(GuardInstructionsFile))
	if err := FS.WriteFile(path, []byte(instructions), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// configureIgnore rewrites the guard's ignore list: the fixed defaults (or
// the existing list when one parses) minus every pattern the selected
// modules need visible. Returns the patterns actually removed.
func configureIgnore(root string, selected []modules.Module) ([]string, error) {
	dir := filepath.Join(root, filepath.FromSlash(GuardDataDir))
	if err := FS.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	path := filepath.Join(root, filepath.FromSlash(GuardConfigFile))
	base := DefaultIgnorePatterns
	if raw, err := FS.ReadFile(path); err == nil {
		var existing guardConfig
		if json.Unmarshal(raw, &existing) == nil && existing.IgnorePatterns != nil {
			base = existing.IgnorePatterns
		}
	}

	toRemove := map[string]bool{}
	for _, m := range selected {
		for _, p := range m.RemoveFromIgnore {
			toRemove[p] = true
		}
	}

	var patterns, removed []string
	for _, p := range base {
		if toRemove[p] {
			removed = append(removed, p)
			continue
		}
		patterns = append(patterns, p)
	}
	sort.Strings(removed)
	if patterns == nil {
		patterns = []string{}
	}

	cfg := guardConfig{GuardEnabled: true, IgnorePatterns: patterns}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return removed, fmt.Errorf("marshaling guard config: %w", err)
	}
	data = append(data, '\n')
	if err := FS.WriteFile(path, data, 0o644); err != nil {
		return removed, fmt.Errorf("writing %s: %w", path, err)
	}
	return removed, nil
}
