// Package wizard ties module loading, selection, assembly, persistence, and
// IDE integration into the interactive install flow.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/guardkit/guardkit/internal/assemble"
	"github.com/guardkit/guardkit/internal/catalog"
	"github.com/guardkit/guardkit/internal/configstore"
	"github.com/guardkit/guardkit/internal/discovery"
	"github.com/guardkit/guardkit/internal/ide"
	"github.com/guardkit/guardkit/internal/modules"
	"github.com/guardkit/guardkit/internal/prompt"
	"github.com/guardkit/guardkit/internal/pyinstall"
	"github.com/guardkit/guardkit/internal/selection"
	"github.com/guardkit/guardkit/internal/testable"
)

// ErrNothingProduced means the run could not produce any output because no
// usable modules were available.
var ErrNothingProduced = errors.New("nothing to generate")

// FS is the file system implementation used by this package.
var FS testable.FileSystem = testable.DefaultFS

// Output file names under the generated directory.
const (
	InstructionsName = "instructions.md"
	ScenariosName    = "tests.md"
)

// Options configures a wizard run.
type Options struct {
	// ModulesDir is the rule module repository root.
	ModulesDir string

	// OutputDir receives the generated documents and the saved
	// configuration. Created when missing.
	OutputDir string

	// Target, when set, is the project to integrate with. It suppresses
	// sibling discovery.
	Target string

	// Mode selects how modules are chosen. ModeInteractive runs the full
	// question flow; ModeAll and ModeList run headless.
	Mode selection.Mode

	// IDs is the explicit module list for ModeList.
	IDs []string

	// Plain forces the text prompter even on a TTY.
	Plain bool

	In  *os.File
	Out *os.File
}

// Summary reports everything a run did, for the CLI to present.
type Summary struct {
	Selected        []string
	ForcedAuto      []string
	ForcedMandatory []string
	ModelID         string

	InstructionsPath string
	ScenariosPath    string
	LineCount        int
	SizeWarning      bool

	ConfigPath  string
	ConfigSaved bool

	TargetPath string
	Apply      *ide.ApplyResult

	PipPackage string
	Pip        *pyinstall.Result
}

// Run drives the install flow and returns what happened. Prompt
// interruption and invalid explicit module lists surface as errors; IDE
// sub-step failures do not, they are reported in the Summary.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	mods, warns, err := modules.Load(opts.ModulesDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNothingProduced, err)
	}
	for _, w := range warns {
		slog.Warn("skipping module", "id", w.ModuleID, "reason", w.Reason)
	}
	if len(mods) == 0 {
		return nil, fmt.Errorf("%w: no valid modules in %s", ErrNothingProduced, opts.ModulesDir)
	}

	models, catWarns := catalog.Load(filepath.Join(opts.ModulesDir, "models.yaml"))
	for _, w := range catWarns {
		slog.Warn(w.String())
	}

	prompter := prompt.New(opts.In, opts.Out, opts.Plain)
	interactiveRun := opts.Mode == selection.ModeInteractive

	cfg := configstore.Defaults()
	cfgPath := filepath.Join(opts.OutputDir, configstore.FileName)
	var saved *configstore.Config
	if interactiveRun {
		saved, err = offerPrevious(cfgPath, prompter)
		if err != nil {
			return nil, err
		}
		if saved != nil {
			cfg = *saved
			cfg.RunID = ""
		}
	}

	res, modelID, err := chooseModules(opts, mods, models, saved, prompter)
	if err != nil {
		return nil, err
	}
	for _, id := range res.ForcedAuto {
		slog.Info("module auto-included for model", "id", id, "model", modelID)
	}
	for _, id := range res.ForcedMandatory {
		slog.Info("module mandatory for model", "id", id, "model", modelID)
	}
	cfg.ModelID = modelID
	cfg.SelectedModules = res.IDs()

	if interactiveRun && saved == nil {
		if err := askIntegration(&cfg, res.Modules, prompter); err != nil {
			return nil, err
		}
	}

	summary := &Summary{
		Selected:        res.IDs(),
		ForcedAuto:      res.ForcedAuto,
		ForcedMandatory: res.ForcedMandatory,
		ModelID:         modelID,
		ConfigPath:      cfgPath,
	}

	target, err := chooseTarget(opts, saved, interactiveRun, prompter)
	if err != nil {
		return nil, err
	}
	cfg.TargetProjectPath = target
	summary.TargetPath = target

	if interactiveRun && target != "" {
		if err := offerCompanion(ctx, target, summary, prompter); err != nil {
			return nil, err
		}
	}

	docs := assemble.Assemble(res.Modules)
	if err := writeDocs(opts.OutputDir, docs, cfg.GenerateScenarios, summary); err != nil {
		return nil, err
	}

	if err := configstore.Save(cfg, cfgPath); err != nil {
		slog.Warn("could not save configuration", "path", cfgPath, "error", err)
	} else {
		summary.ConfigSaved = true
	}

	if target != "" {
		applyRes, err := ide.Apply(target, ide.Input{
			ModelID:               modelID,
			EnableHooks:           cfg.EnableHooks,
			CopyInstructions:      cfg.CopyInstructions,
			ConfigureIgnore:       cfg.ConfigureIgnore,
			ProtectGuardSettings:  cfg.ProtectGuardSettings,
			BlockFileBypass:       cfg.BlockFileBypass,
			AutoApproveTestRunner: cfg.AutoApproveTestRunner,
			Instructions:          docs.Instructions,
			Selected:              res.Modules,
		})
		if err != nil {
			slog.Error("ide integration failed", "target", target, "error", err)
			applyRes.Errors = append(applyRes.Errors, err.Error())
		}
		if applyRes.BackupPath != "" {
			slog.Warn("settings file was unreadable, preserved and reset", "backup", applyRes.BackupPath)
		}
		summary.Apply = &applyRes
	}

	return summary, nil
}

// offerPrevious loads the saved configuration and asks whether to reuse it.
// A corrupt file is reported and treated as absent.
func offerPrevious(path string, p prompt.Prompter) (*configstore.Config, error) {
	prev, corrupt, _ := configstore.Load(path)
	if corrupt {
		slog.Warn("previous configuration is unreadable, starting fresh", "path", path)
		return nil, nil
	}
	if prev == nil {
		return nil, nil
	}

	reuse, err := p.AskYesNo("Use the settings from your previous run?", true)
	if err != nil {
		return nil, err
	}
	if !reuse {
		return nil, nil
	}
	return prev, nil
}

// chooseModules runs selection for the requested mode and settles the model.
// Interactive runs pick modules first, then the model, then re-apply the
// selection so model-forced modules land with both invariants intact.
func chooseModules(opts Options, mods []modules.Module, models []catalog.Model, saved *configstore.Config, p prompt.Prompter) (selection.Result, string, error) {
	defaultModel := catalog.DefaultModel(models).ID

	if opts.Mode != selection.ModeInteractive {
		res, err := selection.Select(selection.Input{
			Modules: mods,
			Mode:    opts.Mode,
			IDs:     opts.IDs,
			ModelID: defaultModel,
		})
		return res, defaultModel, err
	}

	in := selection.Input{Modules: mods, Mode: selection.ModeInteractive, Prompter: p}
	if saved != nil {
		in.Mode = selection.ModeSavedConfig
		in.SavedIDs = saved.SelectedModules
	}
	res, err := selection.Select(in)
	if err != nil {
		return res, "", err
	}

	modelID := defaultModel
	if saved != nil && saved.ModelID != "" {
		modelID = saved.ModelID
	} else {
		modelID, err = askModel(models, p)
		if err != nil {
			return res, "", err
		}
	}

	res, err = selection.Select(selection.Input{
		Modules: mods,
		Mode:    selection.ModeList,
		IDs:     res.IDs(),
		ModelID: modelID,
	})
	return res, modelID, err
}

func askModel(models []catalog.Model, p prompt.Prompter) (string, error) {
	options := make([]prompt.Option, len(models))
	defIndex := 0
	for i, m := range models {
		options[i] = prompt.Option{Label: m.DisplayName, Detail: m.Description}
		if m.Default {
			defIndex = i
		}
	}

	idx, err := p.AskOneOf("Which model should review your changes?", options, defIndex)
	if err != nil {
		return "", err
	}
	return models[idx].ID, nil
}

// askIntegration walks the yes/no questions that shape IDE integration.
func askIntegration(cfg *configstore.Config, selected []modules.Module, p prompt.Prompter) error {
	questions := []struct {
		text string
		dst  *bool
		skip bool
	}{
		{"Enable TDD Guard hooks in the target project?", &cfg.EnableHooks, false},
		{"Copy the combined instructions into the target's guard data directory?", &cfg.CopyInstructions, false},
		{"Configure guard ignore patterns?", &cfg.ConfigureIgnore, false},
		{"Protect guard settings from agent edits?", &cfg.ProtectGuardSettings, false},
		{"Block shell commands that bypass file change tracking?", &cfg.BlockFileBypass, false},
		{"Auto-approve test runner commands?", &cfg.AutoApproveTestRunner, !hasTestRunner(selected)},
		{"Generate the combined test-scenarios document?", &cfg.GenerateScenarios, false},
	}

	for _, q := range questions {
		if q.skip {
			continue
		}
		answer, err := p.AskYesNo(q.text, *q.dst)
		if err != nil {
			return err
		}
		*q.dst = answer
	}
	return nil
}

func hasTestRunner(selected []modules.Module) bool {
	for _, m := range selected {
		if m.ID == ide.TestRunnerModuleID {
			return true
		}
	}
	return false
}

// chooseTarget resolves the project to integrate with. An explicit --target
// wins; otherwise interactive runs discover siblings of the parent
// directory and ask, and headless runs stay local-only.
func chooseTarget(opts Options, saved *configstore.Config, interactiveRun bool, p prompt.Prompter) (string, error) {
	if opts.Target != "" {
		return FS.Abs(opts.Target)
	}
	if !interactiveRun {
		return "", nil
	}
	if saved != nil && saved.TargetProjectPath != "" {
		return saved.TargetProjectPath, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", nil
	}
	candidates, err := discovery.Discover(filepath.Dir(wd))
	if err != nil {
		slog.Warn("project discovery failed", "error", err)
		return "", nil
	}
	if len(candidates) == 0 {
		return "", nil
	}

	options := make([]prompt.Option, 0, len(candidates)+1)
	for _, c := range candidates {
		options = append(options, prompt.Option{Label: c.Name, Detail: candidateDetail(c)})
	}
	localOnly := len(options)
	options = append(options, prompt.Option{Label: "Local only", Detail: "skip project integration"})

	defIndex := localOnly
	for i, c := range candidates {
		if c.UsesPytest {
			defIndex = i
			break
		}
	}

	idx, err := p.AskOneOf("Which project should TDD Guard watch?", options, defIndex)
	if err != nil {
		return "", err
	}
	if idx == localOnly {
		return "", nil
	}
	return candidates[idx].Path, nil
}

func candidateDetail(c discovery.Candidate) string {
	detail := c.Kind
	if c.UsesPytest {
		detail += ", pytest"
	}
	if c.HasVenv() {
		detail += ", venv"
	}
	if c.GuardInstalled {
		detail += ", guard installed"
	}
	return detail
}

// offerCompanion installs the pytest reporter into the target's venv when
// it is missing or too old, with the user's consent.
func offerCompanion(ctx context.Context, target string, summary *Summary, p prompt.Prompter) error {
	venv := findTargetVenv(target)
	if venv == "" {
		return nil
	}

	installed, ok := pyinstall.InstalledVersion(ctx, venv, pyinstall.CompanionPackage)
	if ok && !pyinstall.NeedsUpgrade(installed, pyinstall.MinimumVersion) {
		slog.Info("companion package up to date", "package", pyinstall.CompanionPackage, "version", installed)
		return nil
	}

	question := fmt.Sprintf("Install %s into %s?", pyinstall.CompanionPackage, venv)
	install, err := p.AskYesNo(question, true)
	if err != nil {
		return err
	}
	if !install {
		return nil
	}

	res := pyinstall.Install(ctx, venv, pyinstall.CompanionPackage)
	if !res.OK {
		slog.Warn("companion package install failed", "package", pyinstall.CompanionPackage)
	}
	summary.PipPackage = pyinstall.CompanionPackage
	summary.Pip = &res
	return nil
}

var targetVenvNames = []string{".venv", "venv", "env"}

func findTargetVenv(dir string) string {
	for _, name := range targetVenvNames {
		venv := filepath.Join(dir, name)
		if _, err := FS.Stat(filepath.Join(venv, "bin", "python")); err == nil {
			return venv
		}
		if _, err := FS.Stat(filepath.Join(venv, "Scripts", "python.exe")); err == nil {
			return venv
		}
	}
	return ""
}

// writeDocs writes the generated documents and flags oversized output.
func writeDocs(outputDir string, docs assemble.Docs, scenarios bool, summary *Summary) error {
	if err := FS.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	instrPath := filepath.Join(outputDir, InstructionsName)
	if err := FS.WriteFile(instrPath, []byte(docs.Instructions), 0o644); err != nil {
		return fmt.Errorf("writing instructions: %w", err)
	}
	summary.InstructionsPath = instrPath
	summary.LineCount = docs.LineCount

	if docs.LineCount > assemble.SizeWarningThreshold {
		summary.SizeWarning = true
		slog.Warn("generated instructions are large",
			"lines", docs.LineCount, "threshold", assemble.SizeWarningThreshold)
	}

	if scenarios && docs.HasScenarios() {
		scenPath := filepath.Join(outputDir, ScenariosName)
		if err := FS.WriteFile(scenPath, []byte(docs.Scenarios), 0o644); err != nil {
			return fmt.Errorf("writing scenarios: %w", err)
		}
		summary.ScenariosPath = scenPath
	}
	return nil
}
