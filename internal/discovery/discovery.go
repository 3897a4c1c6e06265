// Package discovery walks sibling directories and classifies each as a
// candidate Python project the guard can be installed into.
package discovery

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"golang.org/x/sync/errgroup"

	"github.com/guardkit/guardkit/internal/testable"
)

// FS is the file system implementation used by this package.
// Override in tests with a testable.MockFileSystem.
var FS testable.FileSystem = testable.DefaultFS

// classifyConcurrency bounds the parallel candidate classification. Results
// are re-sorted by name afterwards, so output order stays deterministic.
const classifyConcurrency = 4

// Candidate is one sibling directory classified as a Python project.
type Candidate struct {
	Name string
	Path string

	// Kind is the packaging flavor: "poetry", "pipenv", or "pip".
	Kind string

	// ProjectName is the declared name from pyproject.toml, when present.
	ProjectName string

	// VenvPath is the detected virtual environment, empty when none found.
	VenvPath string

	// UsesPytest reports whether pytest appears among the dependencies.
	UsesPytest bool

	// GitRemote is the origin remote URL when the directory is a git repo.
	GitRemote string

	// GuardInstalled reports whether guard data files already exist.
	GuardInstalled bool
}

// HasVenv reports whether a virtual environment was detected.
func (c Candidate) HasVenv() bool { return c.VenvPath != "" }

// Discover scans the immediate subdirectories of parent and returns the
// Python project candidates sorted by name. Hidden directories and
// directories with no Python markers are skipped.
func Discover(parent string) ([]Candidate, error) {
	entries, err := FS.ReadDir(parent)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", parent, err)
	}

	results := make([]*Candidate, len(entries))
	var g errgroup.Group
	g.SetLimit(classifyConcurrency)

	for i, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		g.Go(func() error {
			results[i] = classify(filepath.Join(parent, e.Name()), e.Name())
			return nil
		})
	}
	// Classification never fails a sibling; errors degrade to "not a
	// candidate".
	_ = g.Wait()

	var candidates []Candidate
	for _, c := range results {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	return candidates, nil
}

// classify inspects one directory. Returns nil when it is not a Python
// project.
func classify(dir, name string) *Candidate {
	c := &Candidate{Name: name, Path: dir}

	switch {
	case exists(filepath.Join(dir, "pyproject.toml")):
		meta := readPyproject(filepath.Join(dir, "pyproject.toml"))
		if meta == nil && !hasAnyMarker(dir) {
			return nil
		}
		if meta != nil {
			c.Kind = meta.kind
			c.ProjectName = meta.name
			c.UsesPytest = meta.usesPytest
		} else {
			c.Kind = "pip"
		}
	case exists(filepath.Join(dir, "Pipfile")):
		c.Kind = "pipenv"
		c.UsesPytest = fileMentions(filepath.Join(dir, "Pipfile"), "pytest")
	case exists(filepath.Join(dir, "requirements.txt")), exists(filepath.Join(dir, "setup.py")):
		c.Kind = "pip"
	default:
		return nil
	}

	if !c.UsesPytest {
		c.UsesPytest = fileMentions(filepath.Join(dir, "requirements.txt"), "pytest") ||
			fileMentions(filepath.Join(dir, "requirements-dev.txt"), "pytest")
	}

	c.VenvPath = findVenv(dir)
	c.GitRemote = originRemote(dir)
	c.GuardInstalled = exists(filepath.Join(dir, ".claude", "tdd-guard", "data"))
	return c
}

// venvNames are the conventional virtual environment directory names,
// checked in order.
var venvNames = []string{".venv", "venv", "env"}

// findVenv returns the first conventional venv directory containing a
// python interpreter.
func findVenv(dir string) string {
	for _, name := range venvNames {
		venv := filepath.Join(dir, name)
		if exists(filepath.Join(venv, "bin", "python")) ||
			exists(filepath.Join(venv, "Scripts", "python.exe")) {
			return venv
		}
	}
	return ""
}

// originRemote returns the origin remote URL, or "" when the directory is
// not a git repository or has no origin.
func originRemote(dir string) string {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return ""
	}
	remotes, err := repo.Remotes()
	if err != nil {
		return ""
	}
	for _, r := range remotes {
		if r.Config().Name == "origin" && len(r.Config().URLs) > 0 {
			return r.Config().URLs[0]
		}
	}
	return ""
}

func exists(path string) bool {
	_, err := FS.Stat(path)
	return err == nil
}

func hasAnyMarker(dir string) bool {
	for _, marker := range []string{"requirements.txt", "setup.py", "Pipfile"} {
		if exists(filepath.Join(dir, marker)) {
			return true
		}
	}
	return false
}

// fileMentions reports whether the file exists and contains needle on a
// non-comment line.
func fileMentions(path, needle string) bool {
	raw, err := FS.ReadFile(path)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Contains(line, needle) {
			return true
		}
	}
	return false
}
