// Copyright © 2024 The QDAP authors

package dapserver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCoversCommands(t *testing.T) {
	t.Parallel()
	seen := make(map[Command]bool)
	for _, r := range registry {
		assert.False(t, seen[r.cmd], "duplicate command %s", r.cmd)
		seen[r.cmd] = true
		require.NotNil(t, r.construct)
	}
	assert.Len(t, seen, 21)
}

func TestDecodeRequestProtocolErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data string
	}{
		{"bad json", `{"seq":1,`},
		{"not a request", `{"seq":1,"type":"event","event":"stopped"}`},
		{"no command", `{"seq":1,"type":"request"}`},
		{"unsupported", `{"seq":1,"type":"request","command":"evaluate"}`},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, _, _, err := decodeRequest([]byte(test.data))
			var perr *ProtocolError
			assert.True(t, errors.As(err, &perr), "got %v", err)
		})
	}
}

func TestDecodeRequestValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data string
		cmd  Command
		msg  string
	}{
		{"adapter", `{"seq":3,"type":"request","command":"initialize","arguments":{"adapterID":"python"}}`, CmdInitialize, "Adapter ID must be `mqtqasm`, was python"},
		{"no program", `{"seq":3,"type":"request","command":"launch","arguments":{}}`, CmdLaunch, "program is required"},
		{"missing program", `{"seq":3,"type":"request","command":"launch","arguments":{"program":"/does/not/exist.qasm"}}`, CmdLaunch, "cannot be opened"},
		{"no frame", `{"seq":3,"type":"request","command":"restartFrame","arguments":{}}`, CmdRestartFrame, "frameId is required"},
		{"no reference", `{"seq":3,"type":"request","command":"variables","arguments":{}}`, CmdVariables, "variablesReference is required"},
		{"bad filter", `{"seq":3,"type":"request","command":"variables","arguments":{"variablesReference":1,"filter":"all"}}`, CmdVariables, "unknown variables filter"},
		{"bad arguments", `{"seq":3,"type":"request","command":"stackTrace","arguments":[1]}`, CmdStackTrace, "invalid arguments"},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			env, cmd, req, err := decodeRequest([]byte(test.data))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Contains(t, err.Error(), test.msg)
			assert.Equal(t, test.cmd, cmd)
			assert.Equal(t, 3, env.Seq)
			assert.Nil(t, req)
		})
	}
}

func TestDecodeRestartArguments(t *testing.T) {
	t.Parallel()
	path := writeProgram(t, "a.qasm", "qreg q[1];\n")

	_, cmd, req, err := decodeRequest([]byte(`{"seq":1,"type":"request","command":"restart","arguments":{"arguments":{"program":` + quote(path) + `,"stopOnEntry":true}}}`))
	require.NoError(t, err)
	assert.Equal(t, CmdRestart, cmd)
	launch := req.(*launchRequest)
	assert.Equal(t, path, launch.Program)
	assert.True(t, launch.StopOnEntry)

	_, _, req, err = decodeRequest([]byte(`{"seq":1,"type":"request","command":"restart","arguments":{"program":` + quote(path) + `}}`))
	require.NoError(t, err)
	assert.Equal(t, path, req.(*launchRequest).Program)
}

func TestCommandMoves(t *testing.T) {
	t.Parallel()
	for _, c := range []Command{CmdNext, CmdStepIn, CmdStepOut, CmdStepBack, CmdContinue, CmdReverseContinue, CmdRestartFrame} {
		assert.True(t, c.moves(), string(c))
	}
	for _, c := range []Command{CmdPause, CmdLaunch, CmdStackTrace, CmdTerminate} {
		assert.False(t, c.moves(), string(c))
	}
}
