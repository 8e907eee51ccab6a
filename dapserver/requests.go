// Copyright © 2024 The QDAP authors

package dapserver

import (
	"context"
	"encoding/json"
	"os"

	"github.com/google/go-dap"
)

// AdapterID is the only adapter identifier initialize accepts.
const AdapterID = "mqtqasm"

// Exception filter ids, one per assertion kind plus "all".
var exceptionFilters = []dap.ExceptionBreakpointsFilter{
	{Filter: "all", Label: "All assertions", Description: "Break on every failed assertion."},
	{Filter: "ent", Label: "Entanglement assertions", Description: "Break when an assert-ent fails."},
	{Filter: "sup", Label: "Superposition assertions", Description: "Break when an assert-sup fails."},
	{Filter: "eq", Label: "Equality assertions", Description: "Break when an assert-eq fails."},
}

type initializeRequest struct {
	AdapterID       string `json:"adapterID"`
	LinesStartAt1   *bool  `json:"linesStartAt1"`
	ColumnsStartAt1 *bool  `json:"columnsStartAt1"`
}

func newInitialize(args json.RawMessage) (request, error) {
	req := &initializeRequest{}
	if err := decodeArgs(args, req); err != nil {
		return nil, err
	}
	if req.AdapterID != AdapterID {
		return nil, invalid("Adapter ID must be `%s`, was %s", AdapterID, req.AdapterID)
	}
	return req, nil
}

func (r *initializeRequest) handle(_ context.Context, s *session) (interface{}, error) {
	if err := s.replaceEngine(); err != nil {
		return nil, err
	}
	s.setIndexing(boolOr(r.LinesStartAt1, true), boolOr(r.ColumnsStartAt1, true))
	s.canStepBack = true
	return capabilities{
		Capabilities: dap.Capabilities{
			SupportsConfigurationDoneRequest: true,
			SupportsStepBack:                 true,
			SupportsRestartFrame:             true,
			SupportsTerminateRequest:         true,
			SupportsRestartRequest:           true,
			SupportsExceptionInfoRequest:     true,
			ExceptionBreakpointFilters:       exceptionFilters,
		},
		SupportsVariableType:   true,
		SupportsVariablePaging: true,
	}, nil
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

type launchArguments struct {
	Program     string `json:"program"`
	StopOnEntry bool   `json:"stopOnEntry"`
}

func (a *launchArguments) validate() error {
	if a.Program == "" {
		return invalid("program is required")
	}
	if _, err := os.Stat(a.Program); err != nil {
		return &ValidationError{Msg: "program " + quote(a.Program) + " cannot be opened", Err: err}
	}
	return nil
}

// launchRequest loads a program. restart shares it.
type launchRequest struct {
	launchArguments
}

func newLaunch(args json.RawMessage) (request, error) {
	req := &launchRequest{}
	if err := decodeArgs(args, &req.launchArguments); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// newRestart reads the launch arguments a client nests under
// arguments.arguments, falling back to top-level ones.
func newRestart(args json.RawMessage) (request, error) {
	var wrapped struct {
		Arguments *launchArguments `json:"arguments"`
		launchArguments
	}
	if err := decodeArgs(args, &wrapped); err != nil {
		return nil, err
	}
	req := &launchRequest{launchArguments: wrapped.launchArguments}
	if wrapped.Arguments != nil && wrapped.Arguments.Program != "" {
		req.launchArguments = *wrapped.Arguments
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *launchRequest) handle(_ context.Context, s *session) (interface{}, error) {
	code, err := os.ReadFile(r.Program)
	if err != nil {
		return nil, &ValidationError{Msg: "program " + quote(r.Program) + " cannot be read", Err: err}
	}
	if err := s.replaceEngine(); err != nil {
		return nil, err
	}
	if err := s.engine.LoadCode(string(code)); err != nil {
		return nil, engineFailure("An error occurred while parsing the code.", err)
	}
	s.load(r.Program, string(code))
	if !r.StopOnEntry {
		if err := s.engine.RunSimulation(); err != nil {
			return nil, engineFailure("The execution engine failed to run the program.", err)
		}
	}
	return nil, nil
}

type sourceBreakpoint struct {
	Line   int  `json:"line"`
	Column *int `json:"column"`
}

type setBreakpointsRequest struct {
	Source      dap.Source         `json:"source"`
	Breakpoints []sourceBreakpoint `json:"breakpoints"`
}

func newSetBreakpoints(args json.RawMessage) (request, error) {
	req := &setBreakpointsRequest{}
	if err := decodeArgs(args, req); err != nil {
		return nil, err
	}
	return req, nil
}

// handle never fails the request for a source it cannot place breakpoints
// in. Without a loaded program every source is foreign.
func (r *setBreakpointsRequest) handle(_ context.Context, s *session) (interface{}, error) {
	body := setBreakpointsBody{Breakpoints: make([]breakpoint, 0, len(r.Breakpoints))}
	if !s.loaded || !s.isMainSource(r.Source) {
		for i := range r.Breakpoints {
			body.Breakpoints = append(body.Breakpoints, breakpoint{
				ID:      i,
				Message: "Breakpoints only supported in the main file",
				Reason:  "failed",
			})
		}
		return body, nil
	}
	if err := s.engine.ClearBreakpoints(); err != nil {
		return nil, engineFailure("Could not clear breakpoints.", err)
	}
	src := r.Source
	for i, bp := range r.Breakpoints {
		col := s.coords.LineStart()
		if bp.Column != nil {
			col = *bp.Column
		}
		placed, rerr := r.place(s, s.coords.LineColToOffset(bp.Line, col))
		if rerr != nil {
			body.Breakpoints = append(body.Breakpoints, breakpoint{ID: i, Message: rerr.Msg, Reason: "failed"})
			continue
		}
		placed.ID = i
		placed.Source = &src
		body.Breakpoints = append(body.Breakpoints, placed)
	}
	return body, nil
}

func (r *setBreakpointsRequest) place(s *session, offset int) (breakpoint, *ResourceError) {
	idx, err := s.engine.SetBreakpoint(offset)
	if err != nil {
		return breakpoint{}, &ResourceError{Msg: "Breakpoint could not be set", Err: err}
	}
	from, to, err := s.span(idx)
	if err != nil {
		return breakpoint{}, &ResourceError{Msg: "Breakpoint could not be set", Err: err}
	}
	return breakpoint{
		Verified:  true,
		Line:      from.Line,
		Column:    from.Col,
		EndLine:   to.Line,
		EndColumn: to.Col,
	}, nil
}

type setExceptionBreakpointsRequest struct {
	dap.SetExceptionBreakpointsArguments
}

func newSetExceptionBreakpoints(args json.RawMessage) (request, error) {
	req := &setExceptionBreakpointsRequest{}
	if err := decodeArgs(args, &req.SetExceptionBreakpointsArguments); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *setExceptionBreakpointsRequest) handle(_ context.Context, s *session) (interface{}, error) {
	ids := append([]string(nil), r.Filters...)
	for _, opt := range r.FilterOptions {
		ids = append(ids, opt.FilterId)
	}
	s.exceptionFilters = nil
	s.addExceptionFilters(ids)
	body := setExceptionBreakpointsBody{Breakpoints: make([]exceptionBreakpoint, len(s.exceptionFilters))}
	for i := range body.Breakpoints {
		body.Breakpoints[i].Verified = true
	}
	return body, nil
}

type configurationDoneRequest struct{}

func newConfigurationDone(json.RawMessage) (request, error) {
	return configurationDoneRequest{}, nil
}

func (configurationDoneRequest) handle(context.Context, *session) (interface{}, error) {
	return nil, nil
}

// stepRequest covers every command that moves execution without
// arguments of its own.
type stepRequest struct {
	cmd Command
}

func stepper(cmd Command) constructor {
	return func(args json.RawMessage) (request, error) {
		var ignored map[string]interface{}
		if err := decodeArgs(args, &ignored); err != nil {
			return nil, err
		}
		return stepRequest{cmd: cmd}, nil
	}
}

func (r stepRequest) handle(_ context.Context, s *session) (interface{}, error) {
	e, err := s.requireProgram()
	if err != nil {
		return nil, err
	}
	switch r.cmd {
	case CmdNext:
		err = e.StepOverForward()
	case CmdStepIn:
		err = e.StepForward()
	case CmdStepOut:
		err = e.StepOutForward()
	case CmdStepBack:
		if e.CanStepBackward() {
			err = e.StepOverBackward()
		}
	case CmdContinue:
		err = e.RunSimulation()
	case CmdReverseContinue:
		err = e.RunSimulationBackward()
	case CmdPause:
		err = e.PauseSimulation()
	}
	if err != nil {
		return nil, engineFailure("The execution engine could not "+string(r.cmd)+".", err)
	}
	return nil, nil
}

type restartFrameRequest struct {
	FrameID *int `json:"frameId"`
}

func newRestartFrame(args json.RawMessage) (request, error) {
	req := &restartFrameRequest{}
	if err := decodeArgs(args, req); err != nil {
		return nil, err
	}
	if req.FrameID == nil {
		return nil, invalid("frameId is required")
	}
	return req, nil
}

// handle rewinds until the frame's call is undone, then steps back into
// it. Rewinding the outermost frame stops at the start of the program.
func (r *restartFrameRequest) handle(_ context.Context, s *session) (interface{}, error) {
	e, err := s.requireProgram()
	if err != nil {
		return nil, err
	}
	frame := *r.FrameID
	for {
		depth, err := e.StackDepth()
		if err != nil {
			return nil, engineFailure("Could not read the call stack.", err)
		}
		if depth < frame {
			if err := e.StepForward(); err != nil {
				return nil, engineFailure("The execution engine could not restartFrame.", err)
			}
			return nil, nil
		}
		before := e.CurrentInstruction()
		if err := e.StepOutBackward(); err != nil {
			return nil, engineFailure("The execution engine could not restartFrame.", err)
		}
		after, err := e.StackDepth()
		if err != nil {
			return nil, engineFailure("Could not read the call stack.", err)
		}
		if after == depth && e.CurrentInstruction() == before {
			return nil, nil
		}
		if after == depth && !e.CanStepBackward() {
			return nil, nil
		}
	}
}

type terminateRequest struct{}

func newTerminate(json.RawMessage) (request, error) {
	return terminateRequest{}, nil
}

func (terminateRequest) handle(_ context.Context, s *session) (interface{}, error) {
	s.release()
	return nil, nil
}

type disconnectRequest struct{}

func newDisconnect(json.RawMessage) (request, error) {
	return disconnectRequest{}, nil
}

func (disconnectRequest) handle(_ context.Context, s *session) (interface{}, error) {
	s.release()
	return nil, nil
}
