// Copyright © 2024 The QDAP authors

package dapserver

import (
	"github.com/luthersystems/qdap/diagnostic"
)

// deriveEvents decides which events follow the response to cmd. It samples
// the engine after the request has been handled; ok reports whether the
// response succeeded. Events are returned in the order they must be sent.
// An error is returned alongside the events derived before it occurred.
func deriveEvents(s *session, cmd Command, req request, ok bool) ([]Event, error) {
	var events []Event
	var derr error

	if ok {
		launch, isLaunch := req.(*launchRequest)
		if cmd == CmdLaunch {
			events = append(events, initializedEvent{})
		}
		switch {
		case isLaunch && launch.StopOnEntry:
			events = append(events, stoppedEvent{reason: reasonEntry, description: "Stopped on entry"})
		case isLaunch || cmd.moves():
			var stop []Event
			stop, derr = stopEvents(s)
			events = append(events, stop...)
		}
	}

	if cmd == CmdTerminate {
		events = append(events, terminatedEvent{}, exitedEvent{code: exitCodeTerminated})
	}
	if ok && cmd == CmdPause {
		events = append(events, stoppedEvent{reason: reasonPause, description: "Stopped after pause"})
	}

	if e := s.engine; e != nil {
		if s.loaded && e.IsFinished() && e.InstructionCount() != 0 {
			events = append(events, exitedEvent{code: 0})
		}
		if back := e.CanStepBackward(); back != s.canStepBack {
			s.canStepBack = back
			events = append(events, capabilitiesEvent{stepBack: back})
		}
	}
	return events, derr
}

// stopEvents reports why execution stopped. An assertion failure wins
// over a breakpoint, and is followed by the dependency gray-out and the
// failure report.
func stopEvents(s *session) ([]Event, error) {
	e := s.engine
	if e == nil {
		return nil, nil
	}
	switch {
	case e.DidAssertionFail():
		events := []Event{stoppedEvent{reason: reasonException, description: "An assertion failed"}}
		report, err := assertionEvents(s)
		return append(events, report...), err
	case e.WasBreakpointHit():
		return []Event{stoppedEvent{reason: reasonBreakpoint, description: "Stopped at breakpoint"}}, nil
	}
	return []Event{stoppedEvent{reason: reasonStep, description: "Stopped after step"}}, nil
}

// assertionEvents grays out every instruction the failing assertion does
// not depend on and explains the failure as a group of output lines.
func assertionEvents(s *session) ([]Event, error) {
	e := s.engine
	current := e.CurrentInstruction()
	diag := e.Diagnostics()
	deps, err := diag.DataDependencies(current)
	if err != nil {
		return nil, engineFailure("Could not compute data dependencies.", err)
	}
	ranges, err := diagnostic.GrayOutRanges(e.InstructionCount(), deps, e.InstructionPosition)
	if err != nil {
		return nil, engineFailure("Could not locate an instruction.", err)
	}
	events := []Event{grayOutEvent{ranges: ranges, source: s.desc}}

	causes, err := diag.PotentialErrorCauses()
	if err != nil {
		return events, engineFailure("Could not compute error causes.", err)
	}
	messages := make([]string, 0, len(causes))
	for _, c := range causes {
		msg, err := diagnostic.FormatCause(c, s.lineOf)
		if err != nil {
			return events, err
		}
		messages = append(messages, msg)
	}
	from, _, err := s.span(current)
	if err != nil {
		return events, err
	}
	code, err := s.instructionText(current)
	if err != nil {
		return events, err
	}
	for _, item := range diagnostic.Flatten(diagnostic.AssertionReport(from.Line, code, messages)) {
		events = append(events, outputEvent{item: item, line: from.Line, column: from.Col, source: s.desc})
	}
	return events, nil
}
