// Copyright © 2024 The QDAP authors

package dapserver

import (
	"github.com/google/go-dap"
	"github.com/luthersystems/qdap/diagnostic"
)

// Stop reasons.
const (
	reasonEntry      = "entry"
	reasonStep       = "step"
	reasonBreakpoint = "instruction breakpoint"
	reasonException  = "exception"
	reasonPause      = "pause"
)

// exitCodeTerminated is reported when the client terminates the program.
const exitCodeTerminated = 143

// Event is an outgoing DAP event. The set of implementations is closed;
// all of them are encoded by encodeEvent.
type Event interface {
	Name() string
	body() interface{}
}

type initializedEvent struct{}

func (initializedEvent) Name() string      { return "initialized" }
func (initializedEvent) body() interface{} { return nil }

type stoppedEvent struct {
	reason      string
	description string
}

func (stoppedEvent) Name() string { return "stopped" }
func (e stoppedEvent) body() interface{} {
	return dap.StoppedEventBody{
		Reason:            e.reason,
		Description:       e.description,
		ThreadId:          mainThreadID,
		Text:              e.description,
		AllThreadsStopped: true,
	}
}

type grayOutEvent struct {
	ranges []diagnostic.Range
	source *dap.Source
}

func (grayOutEvent) Name() string { return "grayOut" }
func (e grayOutEvent) body() interface{} {
	return grayOutBody{Ranges: e.ranges, Source: e.source}
}

type outputEvent struct {
	item   diagnostic.Item
	line   int
	column int
	source *dap.Source
}

func (outputEvent) Name() string { return "output" }
func (e outputEvent) body() interface{} {
	return outputBody{
		Category: "console",
		Output:   e.item.Text,
		Group:    e.item.Group.String(),
		Line:     e.line,
		Column:   e.column,
		Source:   e.source,
	}
}

type terminatedEvent struct{}

func (terminatedEvent) Name() string      { return "terminated" }
func (terminatedEvent) body() interface{} { return nil }

type exitedEvent struct {
	code int
}

func (exitedEvent) Name() string { return "exited" }
func (e exitedEvent) body() interface{} {
	return dap.ExitedEventBody{ExitCode: e.code}
}

type capabilitiesEvent struct {
	stepBack bool
}

func (capabilitiesEvent) Name() string { return "capabilities" }
func (e capabilitiesEvent) body() interface{} {
	return capabilitiesBody{Capabilities: stepBackCapability{SupportsStepBack: e.stepBack}}
}

// encodeEvent wraps e in the event envelope.
func encodeEvent(seq int, e Event) event {
	return event{
		Event: dap.Event{
			ProtocolMessage: dap.ProtocolMessage{Seq: seq, Type: "event"},
			Event:           e.Name(),
		},
		Body: e.body(),
	}
}
