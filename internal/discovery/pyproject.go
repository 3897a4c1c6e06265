package discovery

import (
	"strings"

	"github.com/BurntSushi/toml"
)

// pyprojectMeta is what classification needs from a pyproject.toml.
type pyprojectMeta struct {
	name       string
	kind       string
	usesPytest bool
}

// pyprojectFile mirrors the subset of pyproject.toml this tool reads. PEP 621
// metadata lives under [project]; poetry keeps its own table.
type pyprojectFile struct {
	Project struct {
		Name                 string              `toml:"name"`
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name         string         `toml:"name"`
			Dependencies map[string]any `toml:"dependencies"`
			Group        map[string]struct {
				Dependencies map[string]any `toml:"dependencies"`
			} `toml:"group"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// readPyproject parses path. Returns nil when the file is unparsable, which
// classification treats as "no pyproject metadata" rather than an error.
func readPyproject(path string) *pyprojectMeta {
	raw, err := FS.ReadFile(path)
	if err != nil {
		return nil
	}

	var file pyprojectFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil
	}

	meta := &pyprojectMeta{kind: "pip"}

	if file.Tool.Poetry.Name != "" || len(file.Tool.Poetry.Dependencies) > 0 {
		meta.kind = "poetry"
		meta.name = file.Tool.Poetry.Name
		meta.usesPytest = poetryUsesPytest(file)
	}
	if file.Project.Name != "" {
		meta.name = file.Project.Name
	}
	if !meta.usesPytest {
		meta.usesPytest = pep621UsesPytest(file)
	}
	return meta
}

func pep621UsesPytest(file pyprojectFile) bool {
	for _, dep := range file.Project.Dependencies {
		if dependencyIs(dep, "pytest") {
			return true
		}
	}
	for _, deps := range file.Project.OptionalDependencies {
		for _, dep := range deps {
			if dependencyIs(dep, "pytest") {
				return true
			}
		}
	}
	return false
}

func poetryUsesPytest(file pyprojectFile) bool {
	if _, ok := file.Tool.Poetry.Dependencies["pytest"]; ok {
		return true
	}
	for _, group := range file.Tool.Poetry.Group {
		if _, ok := group.Dependencies["pytest"]; ok {
			return true
		}
	}
	return false
}

// dependencyIs matches a PEP 508 requirement string against a package name,
// ignoring version specifiers and extras.
func dependencyIs(requirement, name string) bool {
	req := strings.ToLower(strings.TrimSpace(requirement))
	if !strings.HasPrefix(req, name) {
		return false
	}
	rest := req[len(name):]
	if rest == "" {
		return true
	}
	switch rest[0] {
	case ' ', '=', '>', '<', '~', '!', '[', ';':
		return true
	}
	return false
}
