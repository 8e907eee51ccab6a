// Copyright © 2024 The QDAP authors

package diagnostic

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRenderer returns a Renderer with colors disabled and a fake source reader.
func testRenderer(sources map[string]string) *Renderer {
	return &Renderer{
		Color: ColorNever,
		SourceReader: func(name string) ([]byte, error) {
			s, ok := sources[name]
			if !ok {
				return nil, errors.New("not found: " + name)
			}
			return []byte(s), nil
		},
	}
}

func TestRenderSnippet(t *testing.T) {
	t.Parallel()
	r := testRenderer(map[string]string{
		"bell.qasm": "qreg q[2];\nassert-ent q[0], q[1];\n",
	})
	d := Diagnostic{
		Severity: SeverityError,
		Message:  "assertion failed",
		Spans:    []Span{{File: "bell.qasm", Line: 2, Col: 1, Label: "assert-ent"}},
	}
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, d))
	out := buf.String()

	assert.Contains(t, out, "error: assertion failed")
	assert.Contains(t, out, "--> bell.qasm:2:1")
	assert.Contains(t, out, "2 |  assert-ent q[0], q[1];")
	assert.Contains(t, out, "|  "+strings.Repeat("^", len("assert-ent q[0], q[1];"))+" assert-ent")
	assert.NotContains(t, out, "\033[")
}

func TestRenderMissingSource(t *testing.T) {
	t.Parallel()
	r := testRenderer(nil)
	d := Diagnostic{
		Severity: SeverityWarning,
		Message:  "no source",
		Spans:    []Span{{File: "gone.qasm", Line: 3, Col: 2}},
	}
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, d))
	assert.Equal(t, "warning: no source\n  --> gone.qasm:3:2\n   |\n", buf.String())
}

func TestRenderReport(t *testing.T) {
	t.Parallel()
	r := testRenderer(nil)
	report := AssertionReport(4, "assert-sup q[1];", []string{"Control qubit is always zero in line 2."})
	d := Diagnostic{Severity: SeverityError, Message: "assertion failed", Report: &report}
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, d))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "   Assertion failed on line 4", lines[1])
	assert.Contains(t, lines[2], "assert-sup q[1];")
	assert.Equal(t, "     ○ Highlighting dependent predecessors", lines[3])
	assert.Equal(t, "     Found 1 potential error cause:", lines[4])
	assert.Equal(t, "       (1) Control qubit is always zero in line 2.", lines[5])
}

func TestRenderAll(t *testing.T) {
	t.Parallel()
	r := testRenderer(nil)
	var buf bytes.Buffer
	require.NoError(t, r.RenderAll(&buf, []Diagnostic{
		{Severity: SeverityError, Message: "first"},
		{Severity: SeverityNote, Message: "second"},
	}))
	assert.Equal(t, "error: first\n\nnote: second\n", buf.String())
}

func TestRenderColor(t *testing.T) {
	t.Parallel()
	r := testRenderer(nil)
	r.Color = ColorAlways
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, Diagnostic{Severity: SeverityError, Message: "x"}))
	assert.Contains(t, buf.String(), "\033[1;31m")
}

func TestParseColorMode(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]ColorMode{"": ColorAuto, "auto": ColorAuto, "Always": ColorAlways, "never": ColorNever} {
		got, err := ParseColorMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
		assert.Equal(t, want.String(), got.String())
	}
	_, err := ParseColorMode("sometimes")
	assert.Error(t, err)
}

func TestStatementEnd(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 7, statementEnd("x q[0]; h q[1];", 1))
	assert.Equal(t, 15, statementEnd("x q[0]; h q[1];", 9))
	assert.Equal(t, 6, statementEnd("x q[0]  ", 1))
}
