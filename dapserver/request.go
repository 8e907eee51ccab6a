// Copyright © 2024 The QDAP authors

package dapserver

import (
	"context"
	"encoding/json"
)

// Command is a supported DAP request command.
type Command string

const (
	CmdInitialize              Command = "initialize"
	CmdLaunch                  Command = "launch"
	CmdRestart                 Command = "restart"
	CmdSetBreakpoints          Command = "setBreakpoints"
	CmdSetExceptionBreakpoints Command = "setExceptionBreakpoints"
	CmdConfigurationDone       Command = "configurationDone"
	CmdNext                    Command = "next"
	CmdStepIn                  Command = "stepIn"
	CmdStepOut                 Command = "stepOut"
	CmdStepBack                Command = "stepBack"
	CmdContinue                Command = "continue"
	CmdReverseContinue         Command = "reverseContinue"
	CmdRestartFrame            Command = "restartFrame"
	CmdPause                   Command = "pause"
	CmdStackTrace              Command = "stackTrace"
	CmdScopes                  Command = "scopes"
	CmdVariables               Command = "variables"
	CmdThreads                 Command = "threads"
	CmdExceptionInfo           Command = "exceptionInfo"
	CmdTerminate               Command = "terminate"
	CmdDisconnect              Command = "disconnect"
)

// moves reports whether c changes the execution position and so is
// followed by a stopped event.
func (c Command) moves() bool {
	switch c {
	case CmdNext, CmdStepIn, CmdStepOut, CmdStepBack, CmdContinue, CmdReverseContinue, CmdRestartFrame:
		return true
	}
	return false
}

// request is a decoded, validated request variant. handle performs the
// request against the session and returns the response body, which may be
// nil. Handlers never emit events.
type request interface {
	handle(ctx context.Context, s *session) (interface{}, error)
}

type constructor func(args json.RawMessage) (request, error)

// registry maps each supported command to the constructor that decodes
// and validates its arguments.
var registry = []struct {
	cmd       Command
	construct constructor
}{
	{CmdInitialize, newInitialize},
	{CmdLaunch, newLaunch},
	{CmdRestart, newRestart},
	{CmdSetBreakpoints, newSetBreakpoints},
	{CmdSetExceptionBreakpoints, newSetExceptionBreakpoints},
	{CmdConfigurationDone, newConfigurationDone},
	{CmdNext, stepper(CmdNext)},
	{CmdStepIn, stepper(CmdStepIn)},
	{CmdStepOut, stepper(CmdStepOut)},
	{CmdStepBack, stepper(CmdStepBack)},
	{CmdContinue, stepper(CmdContinue)},
	{CmdReverseContinue, stepper(CmdReverseContinue)},
	{CmdRestartFrame, newRestartFrame},
	{CmdPause, stepper(CmdPause)},
	{CmdStackTrace, newStackTrace},
	{CmdScopes, newScopes},
	{CmdVariables, newVariables},
	{CmdThreads, newThreads},
	{CmdExceptionInfo, newExceptionInfo},
	{CmdTerminate, newTerminate},
	{CmdDisconnect, newDisconnect},
}

func lookup(name string) (Command, constructor, bool) {
	for _, r := range registry {
		if string(r.cmd) == name {
			return r.cmd, r.construct, true
		}
	}
	return "", nil, false
}

// envelope is the common shape of every incoming message.
type envelope struct {
	Seq       int             `json:"seq"`
	Type      string          `json:"type"`
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments"`
}

// decodeRequest parses a frame body. A ProtocolError means the message
// cannot be answered at all. A ValidationError comes back together with the
// envelope so the caller can send a failure response.
func decodeRequest(data []byte) (envelope, Command, request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, "", nil, &ProtocolError{Msg: "malformed message", Err: err}
	}
	if env.Type != "request" {
		return env, "", nil, &ProtocolError{Msg: "unexpected message type " + quote(env.Type)}
	}
	if env.Command == "" {
		return env, "", nil, &ProtocolError{Msg: "request without a command"}
	}
	cmd, construct, ok := lookup(env.Command)
	if !ok {
		return env, "", nil, &ProtocolError{Msg: "unsupported command " + quote(env.Command)}
	}
	req, err := construct(env.Arguments)
	if err != nil {
		return env, cmd, nil, err
	}
	return env, cmd, req, nil
}

// decodeArgs unmarshals request arguments into v. Absent arguments leave v
// untouched.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return &ValidationError{Msg: "invalid arguments", Err: err}
	}
	return nil
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
