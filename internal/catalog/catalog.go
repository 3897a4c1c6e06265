// Package catalog loads the list of selectable AI models from models.yaml.
package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/guardkit/guardkit/internal/testable"
)

// FS is the file system implementation used by this package.
// Override in tests with a testable.MockFileSystem.
var FS testable.FileSystem = testable.DefaultFS

// Model is one selectable AI model identifier with display metadata.
type Model struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"name"`
	Description string `yaml:"description"`
	Default     bool   `yaml:"default"`
}

// Warning records a data-quality problem found while loading the catalog.
type Warning struct {
	Reason string
}

func (w Warning) String() string { return "model catalog: " + w.Reason }

// FallbackModel is the built-in model offered when models.yaml is absent or
// unparsable. The wizard must always have at least one model to offer.
var FallbackModel = Model{
	ID:          "claude-3-5-haiku-20241022",
	DisplayName: "Claude 3.5 Haiku",
	Description: "Default model",
	Default:     true,
}

// catalogFile is the on-disk schema of models.yaml.
type catalogFile struct {
	Models []Model `yaml:"models"`
}

// Load parses models.yaml at path, preserving file order (file order is
// display order). An absent or unparsable file yields the built-in fallback
// model instead of an error. More than one model marked default is a
// data-quality warning; the first encountered wins.
func Load(path string) ([]Model, []Warning) {
	raw, err := FS.ReadFile(path)
	if err != nil {
		return []Model{FallbackModel}, nil
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return []Model{FallbackModel}, []Warning{{Reason: fmt.Sprintf("unparsable %s: %v", path, err)}}
	}
	if len(file.Models) == 0 {
		return []Model{FallbackModel}, nil
	}

	var warnings []Warning
	seenDefault := false
	for i := range file.Models {
		if !file.Models[i].Default {
			continue
		}
		if seenDefault {
			warnings = append(warnings, Warning{
				Reason: fmt.Sprintf("more than one default model; keeping the first, ignoring %q", file.Models[i].ID),
			})
			file.Models[i].Default = false
			continue
		}
		seenDefault = true
	}

	return file.Models, warnings
}

// DefaultModel returns the default model from the list, falling back to the
// first entry when none is marked default.
func DefaultModel(models []Model) Model {
	for _, m := range models {
		if m.Default {
			return m
		}
	}
	return models[0]
}
