package pyinstall

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardkit/guardkit/internal/testable"
)

func makeVenv(t *testing.T) string {
	t.Helper()
	venv := filepath.Join(t.TempDir(), ".venv")
	require.NoError(t, os.MkdirAll(filepath.Join(venv, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(venv, "bin", "pip"), []byte("#!/bin/sh\n"), 0o755))
	return venv
}

func withExec(t *testing.T, mock *testable.MockCommandExecutor) {
	t.Helper()
	orig := Exec
	Exec = mock
	t.Cleanup(func() { Exec = orig })
}

func TestInstall_Success(t *testing.T) {
	venv := makeVenv(t)
	pip := filepath.Join(venv, "bin", "pip")

	mock := &testable.MockCommandExecutor{
		CommandOutputs: map[string]string{
			pip + " install --upgrade " + CompanionPackage: "Successfully installed tdd-guard-pytest-1.0.0",
			pip + " show " + CompanionPackage:               "Name: tdd-guard-pytest\nVersion: 1.0.0\n",
		},
	}
	withExec(t, mock)

	res := Install(context.Background(), venv, CompanionPackage)

	assert.True(t, res.OK)
	assert.Contains(t, res.Output, "Successfully installed")
	assert.Equal(t, "1.0.0", res.InstalledVersion)
	require.Len(t, mock.Calls, 2)
	assert.Equal(t, pip+" install --upgrade "+CompanionPackage, mock.Calls[0])
}

func TestInstall_PipFailure(t *testing.T) {
	venv := makeVenv(t)
	pip := filepath.Join(venv, "bin", "pip")

	mock := &testable.MockCommandExecutor{
		CommandErrors: map[string]string{
			pip + " install --upgrade " + CompanionPackage: "ERROR: No matching distribution",
		},
	}
	withExec(t, mock)

	res := Install(context.Background(), venv, CompanionPackage)

	assert.False(t, res.OK)
	assert.Contains(t, res.Output, "No matching distribution")
}

func TestInstall_NoPipInVenv(t *testing.T) {
	withExec(t, &testable.MockCommandExecutor{})

	res := Install(context.Background(), filepath.Join(t.TempDir(), "empty"), CompanionPackage)

	assert.False(t, res.OK)
	assert.Contains(t, res.Output, "no pip found")
}

func TestInstalledVersion(t *testing.T) {
	venv := makeVenv(t)
	pip := filepath.Join(venv, "bin", "pip")

	mock := &testable.MockCommandExecutor{
		CommandOutputs: map[string]string{
			pip + " show " + CompanionPackage: "Name: tdd-guard-pytest\nVersion: 0.9.2\nSummary: pytest reporter\n",
		},
	}
	withExec(t, mock)

	v, ok := InstalledVersion(context.Background(), venv, CompanionPackage)

	assert.True(t, ok)
	assert.Equal(t, "0.9.2", v)
}

func TestInstalledVersion_NotInstalled(t *testing.T) {
	venv := makeVenv(t)

	withExec(t, &testable.MockCommandExecutor{DefaultError: "WARNING: Package(s) not found"})

	v, ok := InstalledVersion(context.Background(), venv, CompanionPackage)

	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestNeedsUpgrade(t *testing.T) {
	tests := []struct {
		name      string
		installed string
		minimum   string
		want      bool
	}{
		{"older patch", "0.8.9", "0.9.0", true},
		{"exact match", "0.9.0", "0.9.0", false},
		{"newer", "1.2.0", "0.9.0", false},
		{"not semver", "0.9.0.post1", "0.9.0", true},
		{"garbage installed", "unknown", "0.9.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsUpgrade(tt.installed, tt.minimum))
		})
	}
}
