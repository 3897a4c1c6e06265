// Package modules loads rule modules from the module repository directory.
//
// A rule module is a subdirectory holding a metadata.yaml record, an
// instructions.md body, and an optional test-scenarios.md body. Malformed
// modules are skipped with a warning rather than failing the whole load.
package modules

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/guardkit/guardkit/internal/testable"
)

// FS is the file system implementation used by this package.
// Override in tests with a testable.MockFileSystem.
var FS testable.FileSystem = testable.DefaultFS

// File names expected inside each module directory.
const (
	MetadataFile     = "metadata.yaml"
	InstructionsFile = "instructions.md"
	ScenariosFile    = "test-scenarios.md"
)

// Module is one self-contained rule unit.
type Module struct {
	ID                  string   // directory name, unique within the repository
	Name                string   // display name from metadata
	Description         string
	Priority            int    // lower loads first in the assembled document
	DefaultEnabled      bool   // pre-selected on a fresh wizard run
	ExclusiveGroup      string // non-empty: radio semantics within the group
	AutoIncludeForModel string // model id that pulls this module in
	MandatoryForModel   string // model id that makes this module non-removable
	RemoveFromIgnore    []string
	Instructions        string
	Scenarios           string // empty when the module ships no scenarios
	LineCount           int    // non-empty instruction lines, for size estimates
}

// HasScenarios reports whether the module ships scenario text.
func (m Module) HasScenarios() bool { return m.Scenarios != "" }

// LoadWarning records a module directory that could not be loaded.
type LoadWarning struct {
	ModuleID string
	Reason   string
}

func (w LoadWarning) String() string {
	return fmt.Sprintf("module %q skipped: %s", w.ModuleID, w.Reason)
}

// metadata is the on-disk schema of metadata.yaml. Loosely-typed source
// fields are pinned to explicit types here and validated at load time.
type metadata struct {
	Name                string   `yaml:"name"`
	Description         string   `yaml:"description"`
	Priority            *int     `yaml:"priority"`
	Default             bool     `yaml:"default"`
	ExclusiveGroup      string   `yaml:"exclusive_group"`
	AutoIncludeForModel string   `yaml:"auto_include_with_model"`
	MandatoryForModel   string   `yaml:"mandatory_for_model"`
	RemoveFromIgnore    []string `yaml:"remove_from_ignore"`
}

// Load scans dir for module subdirectories and returns the valid modules
// sorted by (priority, id) ascending. Invalid modules produce warnings, not
// errors. The only error case is dir itself being unreadable.
func Load(dir string) ([]Module, []LoadWarning, error) {
	entries, err := FS.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading module repository %s: %w", dir, err)
	}

	var mods []Module
	var warnings []LoadWarning
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		mod, warn := loadOne(dir, e.Name())
		if warn != nil {
			warnings = append(warnings, *warn)
			continue
		}
		mods = append(mods, *mod)
	}

	SortByPriority(mods)
	return mods, warnings, nil
}

// loadOne reads a single module directory. Returns a warning (and no module)
// when required pieces are missing or malformed.
func loadOne(root, id string) (*Module, *LoadWarning) {
	dir := filepath.Join(root, id)

	raw, err := FS.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, &LoadWarning{ModuleID: id, Reason: "missing metadata.yaml"}
	}

	var meta metadata
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return nil, &LoadWarning{ModuleID: id, Reason: fmt.Sprintf("unparsable metadata.yaml: %v", err)}
	}
	if meta.Name == "" {
		return nil, &LoadWarning{ModuleID: id, Reason: "metadata.yaml missing required field: name"}
	}
	if meta.Priority == nil {
		return nil, &LoadWarning{ModuleID: id, Reason: "metadata.yaml missing required field: priority"}
	}

	instructions, err := FS.ReadFile(filepath.Join(dir, InstructionsFile))
	if err != nil {
		// A module with no rules is meaningless.
		return nil, &LoadWarning{ModuleID: id, Reason: "missing instructions.md"}
	}

	// Optional; absence is silently tolerated.
	scenarios, _ := FS.ReadFile(filepath.Join(dir, ScenariosFile))

	return &Module{
		ID:                  id,
		Name:                meta.Name,
		Description:         meta.Description,
		Priority:            *meta.Priority,
		DefaultEnabled:      meta.Default,
		ExclusiveGroup:      meta.ExclusiveGroup,
		AutoIncludeForModel: meta.AutoIncludeForModel,
		MandatoryForModel:   meta.MandatoryForModel,
		RemoveFromIgnore:    meta.RemoveFromIgnore,
		Instructions:        string(instructions),
		Scenarios:           string(scenarios),
		LineCount:           countContentLines(string(instructions)),
	}, nil
}

// SortByPriority sorts modules by priority ascending with id as tie-break,
// the order used for document assembly. The tie-break keeps output
// deterministic across runs on the same input.
func SortByPriority(mods []Module) {
	sort.SliceStable(mods, func(i, j int) bool {
		if mods[i].Priority != mods[j].Priority {
			return mods[i].Priority < mods[j].Priority
		}
		return mods[i].ID < mods[j].ID
	})
}

// countContentLines counts non-empty instruction lines, excluding the
// module title and the "Priority Level:" heading modules carry for human
// readers.
func countContentLines(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "# ") {
			continue
		}
		if strings.HasPrefix(line, "#") && strings.Contains(line, "Priority Level:") {
			continue
		}
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
