package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBinary compiles the vem command into a temporary directory.
func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping build test in short mode")
	}

	wd, err := os.Getwd()
	require.NoError(t, err)

	binPath := filepath.Join(t.TempDir(), "vem")
	build := exec.Command("go", "build", "-o", binPath, ".")
	build.Dir = wd
	out, err := build.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(out))
	return binPath
}

func runBinary(t *testing.T, bin, home string, args ...string) (string, int) {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Env = append(os.Environ(), "VEM_HOME="+home, "VEM_CONFIG=", "NO_COLOR=1")
	out, err := cmd.CombinedOutput()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return string(out), exitErr.ExitCode()
	}
	require.NoError(t, err)
	return string(out), 0
}

func TestMainEntryPoints(t *testing.T) {
	_ = main
}

func TestMainHelpFlag(t *testing.T) {
	bin := buildBinary(t)
	out, code := runBinary(t, bin, t.TempDir(), "--help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "VEM")
}

func TestBinaryExitCodes(t *testing.T) {
	bin := buildBinary(t)
	home := t.TempDir()

	out, code := runBinary(t, bin, home, "create", "work")
	require.Equal(t, 0, code, out)

	_, code = runBinary(t, bin, home, "create", "work")
	assert.Equal(t, 4, code)

	_, code = runBinary(t, bin, home, "switch", "missing")
	assert.Equal(t, 3, code)

	_, code = runBinary(t, bin, home, "create", "bad name")
	assert.Equal(t, 2, code)

	out, code = runBinary(t, bin, home, "switch", "work")
	require.Equal(t, 0, code, out)

	_, code = runBinary(t, bin, home, "remove", "work", "-f")
	assert.Equal(t, 5, code)

	out, code = runBinary(t, bin, home, "current")
	assert.Equal(t, 0, code)
	assert.Equal(t, "work", strings.TrimSpace(out))

	target, err := os.Readlink(filepath.Join(home, "current"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("environments", "work"), target)
}
