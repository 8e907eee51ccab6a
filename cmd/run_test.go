// Copyright © 2024 The QDAP authors

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/luthersystems/qdap/diagnostic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProgram(t *testing.T, code string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.qasm")
	require.NoError(t, os.WriteFile(path, []byte(code), 0o600))
	return path
}

func TestRunProgramReportsAssertions(t *testing.T) {
	t.Parallel()
	path := writeProgram(t, "qreg q[2];\ncreg c[1];\nh q[0];\nassert-ent q[0], q[1];\n")
	var out bytes.Buffer
	failures, err := runProgram(&out, path, &diagnostic.Renderer{Color: diagnostic.ColorNever})
	require.NoError(t, err)
	assert.Equal(t, 1, failures)

	text := out.String()
	assert.Contains(t, text, "error: assert-ent failed")
	assert.Contains(t, text, "--> "+path+":4:1")
	assert.Contains(t, text, "4 |  assert-ent q[0], q[1];")
	assert.Contains(t, text, "^^^^^^^^^^^^^^^^^^^^^^")
	assert.Contains(t, text, "   Assertion failed on line 4\n")
	assert.Contains(t, text, "     ○ Highlighting dependent predecessors\n")
	assert.Contains(t, text, "     Found 1 potential error cause:\n")
	assert.Contains(t, text, "       (1) The qubits never interact")
}

func TestRunProgramReportsEveryFailure(t *testing.T) {
	t.Parallel()
	path := writeProgram(t, "qreg q[2];\nassert-sup q[0];\ncx q[0], q[1];\nassert-sup q[1];\n")
	var out bytes.Buffer
	failures, err := runProgram(&out, path, &diagnostic.Renderer{Color: diagnostic.ColorNever})
	require.NoError(t, err)
	assert.Equal(t, 2, failures)
	assert.Contains(t, out.String(), "Assertion failed on line 2")
	assert.Contains(t, out.String(), "Assertion failed on line 4")
	assert.Contains(t, out.String(), "(1) Control qubit is always zero in line 3.")
}

func TestRunProgramPasses(t *testing.T) {
	t.Parallel()
	path := writeProgram(t, "qreg q[2];\nh q[0];\ncx q[0], q[1];\nassert-ent q[0], q[1];\n")
	var out bytes.Buffer
	failures, err := runProgram(&out, path, &diagnostic.Renderer{Color: diagnostic.ColorNever})
	require.NoError(t, err)
	assert.Zero(t, failures)
	assert.Empty(t, out.String())
}

func TestRunProgramParseError(t *testing.T) {
	t.Parallel()
	path := writeProgram(t, "qreg q[1];\nfoo q[0];\n")
	var out bytes.Buffer
	failures, err := runProgram(&out, path, &diagnostic.Renderer{Color: diagnostic.ColorNever})
	require.NoError(t, err)
	assert.Equal(t, 1, failures)
	assert.Contains(t, out.String(), `error: unknown gate "foo"`)
	assert.Contains(t, out.String(), "--> "+path+":2:1")
}

func TestRunProgramMissingFile(t *testing.T) {
	t.Parallel()
	_, err := runProgram(&bytes.Buffer{}, filepath.Join(t.TempDir(), "missing.qasm"), &diagnostic.Renderer{})
	assert.Error(t, err)
}
