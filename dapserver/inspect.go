// Copyright © 2024 The QDAP authors

package dapserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-dap"
)

// Variable references. Compound classical registers use
// refRegisterBase plus the index of their first bit.
const (
	refClassical    = 1
	refQuantum      = 2
	refRegisterBase = 10
)

// mainThreadID is the single thread a program runs on.
const mainThreadID = 1

// maxListedQubits is the largest register whose full state is listed
// without paging.
const maxListedQubits = 8

// maxStateQubits bounds the qubit count used to size the state vector so
// the basis-state count fits in an int.
const maxStateQubits = 62

// basisStates is the number of basis states of a qubits-wide register,
// saturating at 2^maxStateQubits.
func basisStates(qubits int) int {
	if qubits < 0 {
		qubits = 0
	}
	if qubits > maxStateQubits {
		qubits = maxStateQubits
	}
	return 1 << uint(qubits)
}

type stackTraceRequest struct {
	dap.StackTraceArguments
}

func newStackTrace(args json.RawMessage) (request, error) {
	req := &stackTraceRequest{}
	if err := decodeArgs(args, &req.StackTraceArguments); err != nil {
		return nil, err
	}
	if req.StartFrame < 0 || req.Levels < 0 {
		return nil, invalid("startFrame and levels must not be negative")
	}
	return req, nil
}

// handle reports frames innermost first. Frame ids count down from the
// stack depth so the outermost frame is always 1.
func (r *stackTraceRequest) handle(_ context.Context, s *session) (interface{}, error) {
	e, err := s.requireProgram()
	if err != nil {
		return nil, err
	}
	body := stackTraceBody{StackFrames: []stackFrame{}}
	if e.IsFinished() {
		return body, nil
	}
	depth, err := e.StackDepth()
	if err != nil {
		return nil, engineFailure("Could not read the call stack.", err)
	}
	trace, err := e.StackTrace(depth)
	if err != nil {
		return nil, engineFailure("Could not read the call stack.", err)
	}
	body.TotalFrames = depth
	end := len(trace)
	if r.Levels > 0 && r.StartFrame+r.Levels < end {
		end = r.StartFrame + r.Levels
	}
	for i := r.StartFrame; i < end; i++ {
		name := "main"
		if i < len(trace)-1 {
			text, err := s.instructionText(trace[i+1])
			if err != nil {
				return nil, err
			}
			name = firstToken(text)
		}
		from, to, err := s.span(trace[i])
		if err != nil {
			return nil, err
		}
		body.StackFrames = append(body.StackFrames, stackFrame{
			ID:        depth - i,
			Name:      name,
			Source:    s.desc,
			Line:      from.Line,
			Column:    from.Col,
			EndLine:   to.Line,
			EndColumn: to.Col,
		})
	}
	return body, nil
}

type scopesRequest struct {
	dap.ScopesArguments
}

func newScopes(args json.RawMessage) (request, error) {
	req := &scopesRequest{}
	if err := decodeArgs(args, &req.ScopesArguments); err != nil {
		return nil, err
	}
	return req, nil
}

// handle returns the same two scopes for every frame. Both span the whole
// program.
func (r *scopesRequest) handle(_ context.Context, s *session) (interface{}, error) {
	e, err := s.requireProgram()
	if err != nil {
		return nil, err
	}
	last := s.coords.Len() - 1
	if last < 0 {
		last = 0
	}
	from, to := s.coords.Span(0, last)
	qubits := e.NumQubits()
	classical := scope{
		Name:               "Classical Registers",
		PresentationHint:   "locals",
		VariablesReference: refClassical,
		NamedVariables:     e.NumClassicalVariables(),
	}
	quantum := scope{
		Name:               "Quantum State",
		PresentationHint:   "registers",
		VariablesReference: refQuantum,
		NamedVariables:     basisStates(qubits),
		Expensive:          qubits > 5,
	}
	scopes := []scope{classical, quantum}
	for i := range scopes {
		scopes[i].Source = s.desc
		scopes[i].Line, scopes[i].Column = from.Line, from.Col
		scopes[i].EndLine, scopes[i].EndColumn = to.Line, to.Col
	}
	return scopesBody{Scopes: scopes}, nil
}

type variablesRequest struct {
	VariablesReference *int   `json:"variablesReference"`
	Filter             string `json:"filter"`
	Start              int    `json:"start"`
	Count              int    `json:"count"`
}

func newVariables(args json.RawMessage) (request, error) {
	req := &variablesRequest{}
	if err := decodeArgs(args, req); err != nil {
		return nil, err
	}
	if req.VariablesReference == nil {
		return nil, invalid("variablesReference is required")
	}
	switch req.Filter {
	case "", "indexed", "named":
	default:
		return nil, invalid("unknown variables filter %s", quote(req.Filter))
	}
	if req.Start < 0 || req.Count < 0 {
		return nil, invalid("start and count must not be negative")
	}
	return req, nil
}

func (r *variablesRequest) handle(_ context.Context, s *session) (interface{}, error) {
	if _, err := s.requireProgram(); err != nil {
		return nil, err
	}
	var (
		vars []dap.Variable
		err  error
	)
	ref := *r.VariablesReference
	switch {
	case ref == refClassical:
		vars, err = r.classical(s)
	case ref == refQuantum:
		vars, err = r.quantum(s)
	case ref >= refRegisterBase:
		vars, err = r.register(s, ref-refRegisterBase)
	}
	if err != nil {
		return nil, err
	}
	if vars == nil {
		vars = []dap.Variable{}
	}
	return variablesBody{Variables: vars}, nil
}

func baseName(name string) (string, bool) {
	if i := strings.IndexByte(name, '['); i >= 0 {
		return name[:i], true
	}
	return name, false
}

// classical lists single bits directly and collapses each name[i] register
// into one integer entry whose children are its bits.
func (r *variablesRequest) classical(s *session) ([]dap.Variable, error) {
	if r.Filter == "indexed" {
		return nil, nil
	}
	e := s.engine
	type group struct {
		first   int
		members []string
	}
	var order []string
	groups := make(map[string]*group)
	for i := 0; i < e.NumClassicalVariables(); i++ {
		name, err := e.ClassicalVariableName(i)
		if err != nil {
			return nil, engineFailure("Could not read classical variables.", err)
		}
		base, indexed := baseName(name)
		g, ok := groups[base]
		if !ok {
			g = &group{first: i}
			groups[base] = g
			order = append(order, base)
		}
		if indexed {
			g.members = append(g.members, name)
		}
	}
	var vars []dap.Variable
	for _, base := range order {
		g := groups[base]
		if len(g.members) == 0 {
			v, err := e.ClassicalVariable(base)
			if err != nil {
				return nil, engineFailure("Could not read classical variables.", err)
			}
			vars = append(vars, dap.Variable{Name: base, Value: v.String(), Type: "boolean", EvaluateName: base})
			continue
		}
		var bits strings.Builder
		for i := len(g.members) - 1; i >= 0; i-- {
			v, err := e.ClassicalVariable(g.members[i])
			if err != nil {
				return nil, engineFailure("Could not read classical variables.", err)
			}
			if v.Bool {
				bits.WriteByte('1')
			} else {
				bits.WriteByte('0')
			}
		}
		n, _ := strconv.ParseUint(bits.String(), 2, 64)
		value := fmt.Sprintf("%s (%d)", bits.String(), n)
		vars = append(vars, dap.Variable{
			Name:               base,
			Value:              value,
			Type:               "integer",
			EvaluateName:       value,
			VariablesReference: refRegisterBase + g.first,
		})
	}
	return vars, nil
}

// register lists the bits of the register whose first bit is at index.
func (r *variablesRequest) register(s *session, index int) ([]dap.Variable, error) {
	if r.Filter == "named" {
		return nil, nil
	}
	e := s.engine
	n := e.NumClassicalVariables()
	if index >= n {
		return nil, nil
	}
	first, err := e.ClassicalVariableName(index)
	if err != nil {
		return nil, engineFailure("Could not read classical variables.", err)
	}
	base, _ := baseName(first)
	var vars []dap.Variable
	for i := index; i < n; i++ {
		name, err := e.ClassicalVariableName(i)
		if err != nil {
			return nil, engineFailure("Could not read classical variables.", err)
		}
		if b, _ := baseName(name); b != base {
			break
		}
		v, err := e.ClassicalVariable(name)
		if err != nil {
			return nil, engineFailure("Could not read classical variables.", err)
		}
		vars = append(vars, dap.Variable{Name: name, Value: v.String(), Type: "boolean", EvaluateName: name})
	}
	return vars, nil
}

// quantum lists basis-state amplitudes, paged by start and count.
func (r *variablesRequest) quantum(s *session) ([]dap.Variable, error) {
	if r.Filter == "indexed" {
		return nil, nil
	}
	e := s.engine
	qubits := e.NumQubits()
	if qubits > maxListedQubits && r.Count == 0 {
		return []dap.Variable{{Value: "Too many qubits to display", Type: "string"}}, nil
	}
	total := basisStates(qubits)
	end := total
	if r.Count > 0 && r.Count < total-r.Start {
		end = r.Start + r.Count
	}
	var vars []dap.Variable
	for i := r.Start; i < end; i++ {
		bits := fmt.Sprintf("%0*b", qubits, i)
		if qubits == 0 {
			bits = ""
		}
		amp, err := e.AmplitudeBitstring(bits)
		if err != nil {
			return nil, engineFailure("Could not read the quantum state.", err)
		}
		name := "|" + bits + ">"
		vars = append(vars, dap.Variable{Name: name, Value: amp.String(), Type: "complex", EvaluateName: name})
	}
	return vars, nil
}

type threadsRequest struct{}

func newThreads(json.RawMessage) (request, error) {
	return threadsRequest{}, nil
}

func (threadsRequest) handle(context.Context, *session) (interface{}, error) {
	return threadsBody{Threads: []dap.Thread{{Id: mainThreadID, Name: "Main Thread"}}}, nil
}

// Assertion kinds and what a failure of each means.
var assertionKinds = []struct {
	kind        string
	description string
}{
	{"assert-ent", "The given qubits are not in an entangled state."},
	{"assert-sup", "The given qubits are not in a superposition."},
	{"assert-eq", "The given quantum states are not within the given tolerance."},
}

type exceptionInfoRequest struct {
	dap.ExceptionInfoArguments
}

func newExceptionInfo(args json.RawMessage) (request, error) {
	req := &exceptionInfoRequest{}
	if err := decodeArgs(args, &req.ExceptionInfoArguments); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *exceptionInfoRequest) handle(_ context.Context, s *session) (interface{}, error) {
	e, err := s.requireProgram()
	if err != nil {
		return nil, err
	}
	if e.IsFinished() {
		return nil, invalid("the program has finished")
	}
	text, err := s.instructionText(e.CurrentInstruction())
	if err != nil {
		return nil, err
	}
	for _, a := range assertionKinds {
		if strings.Contains(text, a.kind) {
			return dap.ExceptionInfoResponseBody{
				ExceptionId: strings.TrimSpace(text),
				Description: a.description,
				BreakMode:   "always",
				Details:     &dap.ExceptionDetails{TypeName: a.kind},
			}, nil
		}
	}
	return nil, invalid("the current instruction is not an assertion")
}
