// Package ide merges guard hook registration, model selection, ignore
// patterns, and enforcement rules into a target project's Claude IDE
// configuration.
//
// The settings document is treated as a bag of top-level JSON sections:
// sections this tool owns are parsed into typed structs, everything else is
// preserved verbatim. A corrupt settings file is backed up and replaced by
// a fresh skeleton rather than aborting the installation.
package ide

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/guardkit/guardkit/internal/testable"
)

// FS is the file system implementation used by this package.
// Override in tests with a testable.MockFileSystem.
var FS testable.FileSystem = testable.DefaultFS

// Paths inside the target project, relative to its root.
const (
	SettingsFile          = ".claude/settings.local.json"
	GuardDataDir          = ".claude/tdd-guard/data"
	GuardConfigFile       = GuardDataDir + "/config.json"
	GuardInstructionsFile = GuardDataDir + "/instructions.md"
)

// GuardCommand is the guard hook binary registered in the hook entries.
const GuardCommand = "tdd-guard"

// ModelEnvKey is the settings env var the guard hook reads its model from.
const ModelEnvKey = "TDD_GUARD_MODEL_VERSION"

// document is a settings file split into raw top-level sections. Sections
// not owned by this tool round-trip untouched.
type document map[string]json.RawMessage

// Permissions is the settings permissions section.
type Permissions struct {
	Allow []string `json:"allow"`
	Deny  []string `json:"deny"`
	Ask   []string `json:"ask"`
}

// HookCommand is a single hook invocation.
type HookCommand struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

// HookEntry groups hook invocations under a tool-use matcher.
type HookEntry struct {
	Matcher string        `json:"matcher,omitempty"`
	Hooks   []HookCommand `json:"hooks"`
}

// hookEvents are the hook registration points the guard needs, with their
// tool-use matchers.
var hookEvents = []struct {
	Event   string
	Matcher string
}{
	{Event: "PreToolUse", Matcher: "Write|Edit|MultiEdit|TodoWrite"},
	{Event: "UserPromptSubmit", Matcher: ""},
	{Event: "SessionStart", Matcher: "startup|resume|clear"},
}

// skeleton returns the empty settings structure used when no valid settings
// file exists.
func skeleton() document {
	doc := document{}
	_ = doc.setSection("permissions", Permissions{Allow: []string{}, Deny: []string{}, Ask: []string{}})
	_ = doc.setSection("env", map[string]string{})
	return doc
}

// loadSettings reads the settings document at path. A corrupt file is
// renamed to a .backup sibling (preserving the original bytes for manual
// recovery) and a fresh skeleton is returned; backupPath is non-empty in
// that case.
func loadSettings(path string) (doc document, backupPath string, err error) {
	raw, err := FS.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return skeleton(), "", nil
		}
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}

	var d document
	if jsonErr := json.Unmarshal(raw, &d); jsonErr != nil {
		backup := path + ".backup"
		if renameErr := FS.Rename(path, backup); renameErr != nil {
			return nil, "", fmt.Errorf("backing up corrupt settings: %w", renameErr)
		}
		return skeleton(), backup, nil
	}
	return d, "", nil
}

// saveSettings writes the document back with stable formatting. Top-level
// keys marshal in sorted order, so repeated applies produce identical bytes.
func saveSettings(doc document, path string) error {
	if err := FS.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	data = append(data, '\n')
	if err := FS.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// section unmarshals one top-level section into out. A missing section
// leaves out at its zero value; a malformed section is reported.
func (d document) section(key string, out any) error {
	raw, ok := d[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("malformed %q section: %w", key, err)
	}
	return nil
}

func (d document) setSection(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %q section: %w", key, err)
	}
	d[key] = raw
	return nil
}

// permissions returns the permissions section, defaulting missing lists so
// callers can append without nil checks.
func (d document) permissions() (Permissions, error) {
	var p Permissions
	if err := d.section("permissions", &p); err != nil {
		return Permissions{}, err
	}
	if p.Allow == nil {
		p.Allow = []string{}
	}
	if p.Deny == nil {
		p.Deny = []string{}
	}
	if p.Ask == nil {
		p.Ask = []string{}
	}
	return p, nil
}
