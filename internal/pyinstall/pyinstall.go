// Package pyinstall shells out to a target virtual environment's pip to
// install the companion test-runner package.
package pyinstall

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/guardkit/guardkit/internal/testable"
)

// Exec is the command executor used by this package.
// Override in tests with a testable.MockCommandExecutor.
var Exec testable.CommandExecutor = testable.DefaultExecutor()

// FS is the file system implementation used by this package.
var FS testable.FileSystem = testable.DefaultFS

// CompanionPackage is the pytest reporter the guard hook consumes results
// from.
const CompanionPackage = "tdd-guard-pytest"

// MinimumVersion is the oldest companion release the guard hook understands.
const MinimumVersion = "0.9.0"

// InstallTimeout bounds the pip subprocess. Generous on purpose: cold
// installs resolve and download.
const InstallTimeout = 5 * time.Minute

// Result is the outcome of an install attempt.
type Result struct {
	OK     bool
	Output string

	// InstalledVersion is the version pip reports after a successful
	// install, empty when the install failed or pip show is unavailable.
	InstalledVersion string
}

// Install runs pip install for pkg inside the virtual environment at
// venvPath. A missing pip, non-zero exit, or timeout yields OK=false with
// the captured output; it never panics or aborts the caller.
func Install(ctx context.Context, venvPath, pkg string) Result {
	pip, err := pipPath(venvPath)
	if err != nil {
		return Result{OK: false, Output: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, InstallTimeout)
	defer cancel()

	cmd := Exec.CommandContext(ctx, pip, "install", "--upgrade", pkg)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Run(); err != nil {
		return Result{OK: false, Output: fmt.Sprintf("%s\n%v", buf.String(), err)}
	}

	version, _ := InstalledVersion(ctx, venvPath, pkg)
	return Result{OK: true, Output: buf.String(), InstalledVersion: version}
}

// InstalledVersion returns the installed version of pkg inside the virtual
// environment, and whether it is installed at all.
func InstalledVersion(ctx context.Context, venvPath, pkg string) (string, bool) {
	pip, err := pipPath(venvPath)
	if err != nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := Exec.CommandContext(ctx, pip, "show", pkg)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return "", false
	}

	for _, line := range strings.Split(buf.String(), "\n") {
		if v, ok := strings.CutPrefix(line, "Version:"); ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// NeedsUpgrade reports whether installed is older than minimum. Versions
// that do not parse as semver conservatively report an upgrade.
func NeedsUpgrade(installed, minimum string) bool {
	iv, mv := "v"+installed, "v"+minimum
	if !semver.IsValid(iv) || !semver.IsValid(mv) {
		return true
	}
	return semver.Compare(iv, mv) < 0
}

// pipPath locates pip inside the virtual environment, POSIX layout first.
func pipPath(venvPath string) (string, error) {
	posix := filepath.Join(venvPath, "bin", "pip")
	if _, err := FS.Stat(posix); err == nil {
		return posix, nil
	}
	windows := filepath.Join(venvPath, "Scripts", "pip.exe")
	if _, err := FS.Stat(windows); err == nil {
		return windows, nil
	}
	return "", fmt.Errorf("no pip found in %s", venvPath)
}
