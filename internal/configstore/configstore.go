// Package configstore persists the wizard's answer-set between runs.
//
// The store owns the Configuration record: components receive values and
// return answers, and the orchestrator assembles the record once at the end
// of a run. A corrupt saved file must never block the wizard from running
// with fresh defaults.
package configstore

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/guardkit/guardkit/internal/testable"
)

// FS is the file system implementation used by this package.
// Override in tests with a testable.MockFileSystem.
var FS testable.FileSystem = testable.DefaultFS

// FileName is the saved configuration file inside the generated directory.
const FileName = ".last-config.json"

// Config is the persisted answer-set from the most recent run.
type Config struct {
	RunID                 string   `json:"run_id,omitempty"`
	SelectedModules       []string `json:"selected_modules"`
	GenerateScenarios     bool     `json:"generate_scenarios"`
	TargetProjectPath     string   `json:"target_project_path,omitempty"`
	ModelID               string   `json:"model_id,omitempty"`
	EnableHooks           bool     `json:"enable_hooks"`
	CopyInstructions      bool     `json:"copy_instructions"`
	ConfigureIgnore       bool     `json:"configure_ignore_patterns"`
	ProtectGuardSettings  bool     `json:"protect_guard_settings"`
	BlockFileBypass       bool     `json:"block_file_bypass"`
	AutoApproveTestRunner bool     `json:"auto_approve_test_runner"`
}

// Defaults returns the answer-set a fresh wizard run starts from.
func Defaults() Config {
	return Config{
		GenerateScenarios:    true,
		EnableHooks:          true,
		CopyInstructions:     true,
		ConfigureIgnore:      true,
		ProtectGuardSettings: true,
	}
}

// Save writes cfg to path, overwriting any existing file. The write is
// atomic from the caller's perspective: data goes to a temp file in the
// same directory which is then renamed into place, so a partial write never
// leaves a truncated file behind. A fresh run id is stamped when missing.
func Save(cfg Config, path string) error {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling configuration: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := FS.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := FS.CreateTemp(dir, FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp config: %w", err)
	}

	if err := FS.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration at path. An absent file returns (nil, false,
// nil). A present but unparsable file returns (nil, true, nil): the caller
// should warn and proceed with fresh defaults, never fail.
func Load(path string) (cfg *Config, corrupt bool, err error) {
	data, err := FS.ReadFile(path)
	if err != nil {
		return nil, false, nil
	}

	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, true, nil
	}
	return &c, false, nil
}
