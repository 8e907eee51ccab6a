// Copyright © 2024 The QDAP authors

package dapserver

import (
	"github.com/google/go-dap"
	"github.com/luthersystems/qdap/diagnostic"
)

// Wire shapes. go-dap types are used where they fit as-is; the rest carry
// fields the go-dap schema omits or would drop under omitempty.

type response struct {
	dap.Response
	Body interface{} `json:"body,omitempty"`
}

type errorBody struct {
	Error dap.ErrorMessage `json:"error"`
}

type event struct {
	dap.Event
	Body interface{} `json:"body,omitempty"`
}

type capabilities struct {
	dap.Capabilities
	SupportsVariableType   bool `json:"supportsVariableType"`
	SupportsVariablePaging bool `json:"supportsVariablePaging"`
}

type breakpoint struct {
	ID        int         `json:"id"`
	Verified  bool        `json:"verified"`
	Message   string      `json:"message,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Source    *dap.Source `json:"source,omitempty"`
	Line      int         `json:"line,omitempty"`
	Column    int         `json:"column,omitempty"`
	EndLine   int         `json:"endLine,omitempty"`
	EndColumn int         `json:"endColumn,omitempty"`
}

type setBreakpointsBody struct {
	Breakpoints []breakpoint `json:"breakpoints"`
}

type exceptionBreakpoint struct {
	Verified bool `json:"verified"`
}

type setExceptionBreakpointsBody struct {
	Breakpoints []exceptionBreakpoint `json:"breakpoints"`
}

type stackFrame struct {
	ID        int         `json:"id"`
	Name      string      `json:"name"`
	Source    *dap.Source `json:"source,omitempty"`
	Line      int         `json:"line"`
	Column    int         `json:"column"`
	EndLine   int         `json:"endLine"`
	EndColumn int         `json:"endColumn"`
}

type stackTraceBody struct {
	StackFrames []stackFrame `json:"stackFrames"`
	TotalFrames int          `json:"totalFrames"`
}

type scope struct {
	Name               string      `json:"name"`
	PresentationHint   string      `json:"presentationHint,omitempty"`
	VariablesReference int         `json:"variablesReference"`
	NamedVariables     int         `json:"namedVariables"`
	IndexedVariables   int         `json:"indexedVariables"`
	Expensive          bool        `json:"expensive"`
	Source             *dap.Source `json:"source,omitempty"`
	Line               int         `json:"line"`
	Column             int         `json:"column"`
	EndLine            int         `json:"endLine"`
	EndColumn          int         `json:"endColumn"`
}

type scopesBody struct {
	Scopes []scope `json:"scopes"`
}

type variablesBody struct {
	Variables []dap.Variable `json:"variables"`
}

type threadsBody struct {
	Threads []dap.Thread `json:"threads"`
}

type outputBody struct {
	Category string      `json:"category"`
	Output   string      `json:"output"`
	Group    string      `json:"group,omitempty"`
	Line     int         `json:"line"`
	Column   int         `json:"column"`
	Source   *dap.Source `json:"source,omitempty"`
}

type grayOutBody struct {
	Ranges []diagnostic.Range `json:"ranges"`
	Source *dap.Source        `json:"source,omitempty"`
}

type stepBackCapability struct {
	SupportsStepBack bool `json:"supportsStepBack"`
}

type capabilitiesBody struct {
	Capabilities stepBackCapability `json:"capabilities"`
}
