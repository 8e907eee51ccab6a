// Copyright © 2024 The QDAP authors

package dapserver

import (
	"testing"

	"github.com/google/go-dap"
	"github.com/luthersystems/qdap/diagnostic"
	"github.com/luthersystems/qdap/engine/tracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const missingInteractionProgram = "qreg q[2];\ncreg c[1];\nh q[0];\nassert-ent q[0], q[1];\n"

func TestTracerSession(t *testing.T) {
	t.Parallel()
	path := writeProgram(t, "bell.qasm", missingInteractionProgram)
	s := setupDAPSession(t, tracer.Factory)

	s.initialize()
	// A fresh engine cannot step back.
	s.expectCapabilities(false)

	s.launch(path, true)
	s.expectStopped(reasonEntry)
	s.expectQuiet()

	s.request("next", nil)
	s.expectStopped(reasonStep)
	s.expectCapabilities(true)

	var bps setBreakpointsBody
	decodeBody(t, s.request("setBreakpoints", map[string]interface{}{
		"source":      map[string]string{"name": "bell.qasm", "path": path},
		"breakpoints": []map[string]int{{"line": 3}},
	}), &bps)
	require.Len(t, bps.Breakpoints, 1)
	bp := bps.Breakpoints[0]
	assert.True(t, bp.Verified)
	assert.Equal(t, []int{3, 1, 3, 7}, []int{bp.Line, bp.Column, bp.EndLine, bp.EndColumn})

	s.request("continue", nil)
	s.expectStopped(reasonBreakpoint)
	s.expectQuiet()

	s.request("continue", nil)
	s.expectStopped(reasonException)
	var gray grayOutBody
	decodeBody(t, s.expectEvent("grayOut"), &gray)
	assert.Equal(t, []diagnostic.Range{{11, 20}}, gray.Ranges)

	var lines []string
	for i := 0; i < 7; i++ {
		var out outputBody
		decodeBody(t, s.expectEvent("output"), &out)
		assert.Equal(t, 4, out.Line)
		assert.Equal(t, 1, out.Column)
		lines = append(lines, out.Output)
	}
	assert.Equal(t, []string{
		"Assertion failed on line 4",
		"    assert-ent q[0], q[1];",
		"○ Highlighting dependent predecessors",
		"Found 1 potential error cause:",
		"(1) The qubits never interact with each other. Are you missing a CX gate?",
		"",
		"",
	}, lines)
	s.expectQuiet()

	var st stackTraceBody
	decodeBody(t, s.request("stackTrace", map[string]int{"threadId": 1}), &st)
	require.Len(t, st.StackFrames, 1)
	assert.Equal(t, 1, st.StackFrames[0].ID)
	assert.Equal(t, "main", st.StackFrames[0].Name)
	assert.Equal(t, 4, st.StackFrames[0].Line)

	var vars variablesBody
	decodeBody(t, s.request("variables", map[string]int{"variablesReference": refClassical}), &vars)
	assert.Equal(t, []dap.Variable{{
		Name: "c", Value: "0 (0)", Type: "integer", EvaluateName: "0 (0)", VariablesReference: refRegisterBase,
	}}, vars.Variables)

	// q[0] is superposed, so the tracer cannot report amplitudes.
	s.send("variables", map[string]int{"variablesReference": refQuantum})
	m := s.expectResponse("variables", false)
	assert.Equal(t, "Could not read the quantum state.", m.Message)

	var info dap.ExceptionInfoResponseBody
	decodeBody(t, s.request("exceptionInfo", map[string]int{"threadId": 1}), &info)
	assert.Equal(t, "assert-ent q[0], q[1];", info.ExceptionId)
	require.NotNil(t, info.Details)
	assert.Equal(t, "assert-ent", info.Details.TypeName)

	s.request("continue", nil)
	s.expectStopped(reasonStep)
	s.expectExited(0)
	s.expectQuiet()

	s.request("terminate", nil)
	s.expectEvent("terminated")
	s.expectExited(exitCodeTerminated)
	s.expectQuiet()

	s.request("disconnect", nil)
	require.NoError(t, s.serveResult())
}

const callProgram = "qreg q[2];\ngate flip a {\n  x a;\n}\nflip q[0];\nx q[1];\n"

func TestTracerCallStack(t *testing.T) {
	t.Parallel()
	path := writeProgram(t, "flip.qasm", callProgram)
	s := setupDAPSession(t, tracer.Factory)
	s.initialize()
	s.expectCapabilities(false)
	s.launch(path, true)
	s.expectStopped(reasonEntry)

	frames := func() []stackFrame {
		t.Helper()
		var body stackTraceBody
		decodeBody(t, s.request("stackTrace", map[string]int{"threadId": 1}), &body)
		return body.StackFrames
	}

	// The gate definition is skipped.
	s.request("stepIn", nil)
	s.expectStopped(reasonStep)
	s.expectCapabilities(true)
	require.Len(t, frames(), 1)
	assert.Equal(t, 5, frames()[0].Line)

	s.request("stepIn", nil)
	s.expectStopped(reasonStep)
	stack := frames()
	require.Len(t, stack, 2)
	assert.Equal(t, 2, stack[0].ID)
	assert.Equal(t, "flip", stack[0].Name)
	assert.Equal(t, []int{3, 3, 3, 6}, []int{stack[0].Line, stack[0].Column, stack[0].EndLine, stack[0].EndColumn})
	assert.Equal(t, 1, stack[1].ID)
	assert.Equal(t, "main", stack[1].Name)
	assert.Equal(t, 5, stack[1].Line)

	s.request("restartFrame", map[string]int{"frameId": 2})
	s.expectStopped(reasonStep)
	stack = frames()
	require.Len(t, stack, 2)
	assert.Equal(t, 3, stack[0].Line)

	s.request("stepOut", nil)
	s.expectStopped(reasonStep)
	stack = frames()
	require.Len(t, stack, 1)
	assert.Equal(t, 6, stack[0].Line)

	s.request("stepBack", nil)
	s.expectStopped(reasonStep)
	stack = frames()
	require.Len(t, stack, 1)
	assert.Equal(t, 5, stack[0].Line)

	s.request("reverseContinue", nil)
	s.expectStopped(reasonStep)
	s.expectCapabilities(false)
	assert.Equal(t, 1, frames()[0].Line)

	s.request("disconnect", nil)
	require.NoError(t, s.serveResult())
}

func TestTracerParseError(t *testing.T) {
	t.Parallel()
	path := writeProgram(t, "bad.qasm", "qreg q[1];\nfoo q[0];\n")
	s := setupDAPSession(t, tracer.Factory)
	s.initialize()
	s.expectCapabilities(false)
	s.send("launch", map[string]interface{}{"program": path})
	m := s.expectResponse("launch", false)
	assert.Equal(t, "An error occurred while parsing the code.", m.Message)
	s.expectQuiet()
}
