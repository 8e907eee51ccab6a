// Copyright © 2024 The QDAP authors

// Package tracer implements a reversible basis-state tracer for
// OpenQASM-like programs. It is not a simulator: each qubit is tracked as
// either a known computational-basis bit or as unknown (after a gate that
// may create superposition). That is enough to drive stepping, breakpoints,
// assertions and root-cause diagnostics through the engine.Engine contract.
//
// Assertion semantics under this model:
//
//	assert-sup  fails when every target qubit is a known basis bit
//	assert-ent  fails when any target is a known basis bit or the targets
//	            never interacted through a multi-qubit gate
//	assert-eq   always passes
package tracer

import (
	"errors"
	"fmt"

	"github.com/luthersystems/qdap/engine"
)

// ErrAmplitudeUnknown is returned when an amplitude depends on a qubit the
// tracer cannot follow.
var ErrAmplitudeUnknown = errors.New("tracer: amplitude depends on a superposed qubit")

type frame struct {
	call int
	def  int
	bind []int
}

// state is everything a single step can change. Each step pushes a copy
// onto the history so backward steps are a pop.
type state struct {
	pc       int
	frames   []frame
	bits     []bool
	unknown  []bool
	cvals    []bool
	group    []int
	ctrlExec []int
	ctrlZero []int
	// failedAt is the assertion that failed on arrival, or -1.
	failedAt int
}

func (s *state) clone() *state {
	c := *s
	c.frames = append([]frame(nil), s.frames...)
	c.bits = append([]bool(nil), s.bits...)
	c.unknown = append([]bool(nil), s.unknown...)
	c.cvals = append([]bool(nil), s.cvals...)
	c.group = append([]int(nil), s.group...)
	c.ctrlExec = append([]int(nil), s.ctrlExec...)
	c.ctrlZero = append([]int(nil), s.ctrlZero...)
	return &c
}

func (s *state) find(q int) int {
	for s.group[q] != q {
		s.group[q] = s.group[s.group[q]]
		q = s.group[q]
	}
	return q
}

func (s *state) union(qs ...int) {
	for _, q := range qs[1:] {
		a, b := s.find(qs[0]), s.find(q)
		if a != b {
			s.group[b] = a
		}
	}
}

// Engine is an engine.Engine backed by the basis-state tracer.
type Engine struct {
	prog        *program
	cur         *state
	history     []*state
	breakpoints map[int]bool

	assertionFailed bool
	breakpointHit   bool
	closed          bool
}

var _ engine.Engine = (*Engine)(nil)

// New returns an engine with no program loaded.
func New() *Engine {
	return &Engine{breakpoints: make(map[int]bool)}
}

// Factory is an engine.Factory producing tracer engines.
func Factory() (engine.Engine, error) {
	return New(), nil
}

func (e *Engine) ready() error {
	if e.closed {
		return engine.ErrClosed
	}
	if e.prog == nil {
		return engine.ErrNoProgram
	}
	return nil
}

// LoadCode implements engine.Engine.
func (e *Engine) LoadCode(code string) error {
	if e.closed {
		return engine.ErrClosed
	}
	prog, err := parse(code)
	if err != nil {
		return err
	}
	e.prog = prog
	e.breakpoints = make(map[int]bool)
	return e.ResetSimulation()
}

// ResetSimulation implements engine.Engine.
func (e *Engine) ResetSimulation() error {
	if err := e.ready(); err != nil {
		return err
	}
	p := e.prog
	s := &state{
		bits:     make([]bool, p.nq),
		unknown:  make([]bool, p.nq),
		cvals:    make([]bool, p.ncl),
		group:    make([]int, p.nq),
		ctrlExec: make([]int, len(p.insts)),
		ctrlZero: make([]int, len(p.insts)),
		failedAt: -1,
	}
	for i := range s.group {
		s.group[i] = i
	}
	e.skipDefinitions(s)
	e.cur = s
	e.history = nil
	e.clearFlags()
	return nil
}

func (e *Engine) clearFlags() {
	e.assertionFailed = false
	e.breakpointHit = false
}

// skipDefinitions moves the program counter past gate definitions, which
// are never executed directly.
func (e *Engine) skipDefinitions(s *state) {
	for s.pc < len(e.prog.insts) && e.prog.insts[s.pc].kind == kindGateDef {
		s.pc = e.prog.insts[s.pc].retIdx + 1
	}
}

func (e *Engine) finished() bool {
	return e.cur.pc >= len(e.prog.insts)
}

// step executes the current instruction. It reports whether an assertion
// failed on it.
func (e *Engine) step() (bool, error) {
	if e.finished() {
		return false, errors.New("tracer: program finished")
	}
	prev := e.cur
	s := prev.clone()
	inst := &e.prog.insts[s.pc]
	params, bind := e.binding(s)
	next := s.pc + 1
	failed := false

	switch inst.kind {
	case kindGate:
		ops := make([][]int, len(inst.targets))
		for i, t := range inst.targets {
			qs, err := e.prog.qubits(t, params, bind)
			if err != nil {
				return false, err
			}
			ops[i] = qs
		}
		for _, qs := range broadcast(ops) {
			applyGate(s, s.pc, inst.op, qs)
		}
	case kindCall:
		callee := make([]int, len(inst.targets))
		for i, t := range inst.targets {
			qs, err := e.prog.qubits(t, params, bind)
			if err != nil {
				return false, err
			}
			callee[i] = qs[0]
		}
		def := e.prog.gates[inst.op]
		s.frames = append(s.frames, frame{call: s.pc, def: def, bind: callee})
		next = def + 1
	case kindReturn:
		top := s.frames[len(s.frames)-1]
		s.frames = s.frames[:len(s.frames)-1]
		next = top.call + 1
	case kindMeasure:
		qs, err := e.prog.qubits(inst.targets[0], params, bind)
		if err != nil {
			return false, err
		}
		cs, err := e.prog.clbits(inst.cbits[0])
		if err != nil {
			return false, err
		}
		for i, q := range qs {
			if i >= len(cs) {
				break
			}
			v := s.bits[q] && !s.unknown[q]
			s.cvals[cs[i]] = v
			s.bits[q] = v
			s.unknown[q] = false
		}
	case kindReset:
		for _, t := range inst.targets {
			qs, err := e.prog.qubits(t, params, bind)
			if err != nil {
				return false, err
			}
			for _, q := range qs {
				s.bits[q] = false
				s.unknown[q] = false
			}
		}
	case kindAssert:
		if s.failedAt != s.pc {
			qs, err := e.assertionQubits(inst, params, bind)
			if err != nil {
				return false, err
			}
			if !assertionHolds(s, inst.op, qs) {
				s.failedAt = s.pc
				failed = true
				next = s.pc
			}
		}
	}
	if !failed {
		s.failedAt = -1
	}
	s.pc = next
	if len(s.frames) == 0 {
		e.skipDefinitions(s)
	}
	e.history = append(e.history, prev)
	e.cur = s
	return failed, nil
}

func (e *Engine) binding(s *state) ([]string, []int) {
	if len(s.frames) == 0 {
		return nil, nil
	}
	top := s.frames[len(s.frames)-1]
	return e.prog.insts[top.def].params, top.bind
}

func (e *Engine) assertionQubits(inst *instruction, params []string, bind []int) ([]int, error) {
	var out []int
	for _, t := range inst.targets {
		qs, err := e.prog.qubits(t, params, bind)
		if err != nil {
			return nil, err
		}
		out = append(out, qs...)
	}
	return out, nil
}

// broadcast expands register operands so that a gate applied to whole
// registers runs once per index.
func broadcast(ops [][]int) [][]int {
	n := 1
	for _, qs := range ops {
		if len(qs) > n {
			n = len(qs)
		}
	}
	out := make([][]int, n)
	for i := range out {
		out[i] = make([]int, len(ops))
		for j, qs := range ops {
			if len(qs) == 1 {
				out[i][j] = qs[0]
			} else {
				out[i][j] = qs[i%len(qs)]
			}
		}
	}
	return out
}

func applyGate(s *state, pc int, op string, qs []int) {
	switch op {
	case "x", "y":
		if !s.unknown[qs[0]] {
			s.bits[qs[0]] = !s.bits[qs[0]]
		}
	case "h", "rx", "ry", "u", "u2", "u3":
		s.unknown[qs[0]] = true
	case "cx", "ccx", "cz":
		controls, target := qs[:len(qs)-1], qs[len(qs)-1]
		s.ctrlExec[pc]++
		known, allOne, anyZero := true, true, false
		for _, c := range controls {
			switch {
			case s.unknown[c]:
				known = false
				allOne = false
			case !s.bits[c]:
				anyZero = true
				allOne = false
			}
		}
		if anyZero {
			s.ctrlZero[pc]++
		}
		if op != "cz" {
			switch {
			case anyZero:
			case !known:
				s.unknown[target] = true
			case allOne && !s.unknown[target]:
				s.bits[target] = !s.bits[target]
			}
		}
		s.union(qs...)
	case "swap":
		a, b := qs[0], qs[1]
		s.bits[a], s.bits[b] = s.bits[b], s.bits[a]
		s.unknown[a], s.unknown[b] = s.unknown[b], s.unknown[a]
		s.union(a, b)
	}
}

func assertionHolds(s *state, op string, qs []int) bool {
	switch op {
	case "assert-sup":
		for _, q := range qs {
			if s.unknown[q] {
				return true
			}
		}
		return false
	case "assert-ent":
		root := s.find(qs[0])
		for _, q := range qs {
			if !s.unknown[q] || s.find(q) != root {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (e *Engine) back() bool {
	if len(e.history) == 0 {
		return false
	}
	e.cur = e.history[len(e.history)-1]
	e.history = e.history[:len(e.history)-1]
	return true
}

// StepForward implements engine.Engine.
func (e *Engine) StepForward() error {
	if err := e.ready(); err != nil {
		return err
	}
	e.clearFlags()
	failed, err := e.step()
	e.assertionFailed = failed
	return err
}

// StepBackward implements engine.Engine.
func (e *Engine) StepBackward() error {
	if err := e.ready(); err != nil {
		return err
	}
	e.clearFlags()
	if !e.back() {
		return errors.New("tracer: at the start of the program")
	}
	return nil
}

// StepOverForward implements engine.Engine. Calls run to completion unless
// an assertion fails inside them.
func (e *Engine) StepOverForward() error {
	if err := e.ready(); err != nil {
		return err
	}
	e.clearFlags()
	depth := len(e.cur.frames)
	failed, err := e.step()
	for err == nil && !failed && len(e.cur.frames) > depth {
		failed, err = e.step()
	}
	e.assertionFailed = failed
	return err
}

// StepOverBackward implements engine.Engine.
func (e *Engine) StepOverBackward() error {
	if err := e.ready(); err != nil {
		return err
	}
	e.clearFlags()
	depth := len(e.cur.frames)
	if !e.back() {
		return errors.New("tracer: at the start of the program")
	}
	for len(e.cur.frames) > depth && e.back() {
	}
	return nil
}

// StepOutForward implements engine.Engine. At the outermost frame it runs
// to the end of the program.
func (e *Engine) StepOutForward() error {
	if err := e.ready(); err != nil {
		return err
	}
	e.clearFlags()
	depth := len(e.cur.frames)
	for !e.finished() {
		failed, err := e.step()
		if err != nil {
			return err
		}
		if failed {
			e.assertionFailed = true
			return nil
		}
		if len(e.cur.frames) < depth {
			return nil
		}
	}
	return nil
}

// StepOutBackward implements engine.Engine. At the outermost frame it
// rewinds to the start of the program.
func (e *Engine) StepOutBackward() error {
	if err := e.ready(); err != nil {
		return err
	}
	e.clearFlags()
	depth := len(e.cur.frames)
	for e.back() {
		if len(e.cur.frames) < depth {
			return nil
		}
	}
	return nil
}

// RunSimulation implements engine.Engine.
func (e *Engine) RunSimulation() error {
	if err := e.ready(); err != nil {
		return err
	}
	e.clearFlags()
	for !e.finished() {
		failed, err := e.step()
		if err != nil {
			return err
		}
		if failed {
			e.assertionFailed = true
			return nil
		}
		if e.breakpoints[e.cur.pc] {
			e.breakpointHit = true
			return nil
		}
	}
	return nil
}

// RunSimulationBackward implements engine.Engine.
func (e *Engine) RunSimulationBackward() error {
	if err := e.ready(); err != nil {
		return err
	}
	e.clearFlags()
	for e.back() {
		if e.breakpoints[e.cur.pc] {
			e.breakpointHit = true
			return nil
		}
	}
	return nil
}

// PauseSimulation implements engine.Engine. Runs complete before the
// engine returns control, so there is never a run in flight to interrupt.
func (e *Engine) PauseSimulation() error {
	return e.ready()
}

// CanStepForward implements engine.Engine.
func (e *Engine) CanStepForward() bool {
	return e.ready() == nil && !e.finished()
}

// CanStepBackward implements engine.Engine.
func (e *Engine) CanStepBackward() bool {
	return e.ready() == nil && len(e.history) > 0
}

// IsFinished implements engine.Engine.
func (e *Engine) IsFinished() bool {
	return e.ready() == nil && e.finished()
}

// DidAssertionFail implements engine.Engine.
func (e *Engine) DidAssertionFail() bool {
	return e.ready() == nil && e.assertionFailed
}

// WasBreakpointHit implements engine.Engine.
func (e *Engine) WasBreakpointHit() bool {
	return e.ready() == nil && e.breakpointHit
}

// CurrentInstruction implements engine.Engine.
func (e *Engine) CurrentInstruction() int {
	if e.ready() != nil {
		return 0
	}
	return e.cur.pc
}

// InstructionCount implements engine.Engine.
func (e *Engine) InstructionCount() int {
	if e.ready() != nil {
		return 0
	}
	return len(e.prog.insts)
}

// InstructionPosition implements engine.Engine.
func (e *Engine) InstructionPosition(instruction int) (int, int, error) {
	if err := e.ready(); err != nil {
		return 0, 0, err
	}
	if instruction < 0 || instruction >= len(e.prog.insts) {
		return 0, 0, fmt.Errorf("tracer: instruction %d out of range", instruction)
	}
	inst := e.prog.insts[instruction]
	return inst.start, inst.end, nil
}

// NumQubits implements engine.Engine.
func (e *Engine) NumQubits() int {
	if e.ready() != nil {
		return 0
	}
	return e.prog.nq
}

// AmplitudeBitstring implements engine.Engine. Character k of bitstring
// is qubit n-1-k, so qubit 0 is the rightmost character.
func (e *Engine) AmplitudeBitstring(bitstring string) (engine.Complex, error) {
	if err := e.ready(); err != nil {
		return engine.Complex{}, err
	}
	n := e.prog.nq
	if len(bitstring) != n {
		return engine.Complex{}, fmt.Errorf("tracer: bitstring %q has %d bits, want %d", bitstring, len(bitstring), n)
	}
	match := true
	for k := 0; k < n; k++ {
		q := n - 1 - k
		if e.cur.unknown[q] {
			return engine.Complex{}, ErrAmplitudeUnknown
		}
		switch bitstring[k] {
		case '0', '1':
		default:
			return engine.Complex{}, fmt.Errorf("tracer: invalid bitstring %q", bitstring)
		}
		if (bitstring[k] == '1') != e.cur.bits[q] {
			match = false
		}
	}
	if match {
		return engine.Complex{Real: 1}, nil
	}
	return engine.Complex{}, nil
}

// NumClassicalVariables implements engine.Engine.
func (e *Engine) NumClassicalVariables() int {
	if e.ready() != nil {
		return 0
	}
	return e.prog.ncl
}

// ClassicalVariableName implements engine.Engine.
func (e *Engine) ClassicalVariableName(index int) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	for _, name := range e.prog.corder {
		reg := e.prog.cregs[name]
		if index >= reg.offset && index < reg.offset+reg.size {
			return fmt.Sprintf("%s[%d]", name, index-reg.offset), nil
		}
	}
	return "", fmt.Errorf("tracer: classical variable %d out of range", index)
}

// ClassicalVariable implements engine.Engine.
func (e *Engine) ClassicalVariable(name string) (engine.Variable, error) {
	if err := e.ready(); err != nil {
		return engine.Variable{}, err
	}
	cs, err := e.prog.clbits(name)
	if err != nil {
		return engine.Variable{}, err
	}
	if len(cs) != 1 {
		return engine.Variable{}, fmt.Errorf("tracer: %q is not a single bit", name)
	}
	return engine.Variable{Name: name, Type: engine.VarBool, Bool: e.cur.cvals[cs[0]]}, nil
}

// StackDepth implements engine.Engine.
func (e *Engine) StackDepth() (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return len(e.cur.frames) + 1, nil
}

// StackTrace implements engine.Engine.
func (e *Engine) StackTrace(maxDepth int) ([]int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	trace := []int{e.cur.pc}
	for i := len(e.cur.frames) - 1; i >= 0; i-- {
		trace = append(trace, e.cur.frames[i].call)
	}
	if maxDepth >= 0 && len(trace) > maxDepth {
		trace = trace[:maxDepth]
	}
	return trace, nil
}

// SetBreakpoint implements engine.Engine. The offset resolves to the first
// executable instruction ending at or after it.
func (e *Engine) SetBreakpoint(offset int) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	for i, inst := range e.prog.insts {
		if inst.kind == kindGateDef || inst.end < offset {
			continue
		}
		e.breakpoints[i] = true
		return i, nil
	}
	return 0, fmt.Errorf("tracer: no instruction at or after offset %d", offset)
}

// ClearBreakpoints implements engine.Engine.
func (e *Engine) ClearBreakpoints() error {
	if err := e.ready(); err != nil {
		return err
	}
	e.breakpoints = make(map[int]bool)
	return nil
}

// Diagnostics implements engine.Engine.
func (e *Engine) Diagnostics() engine.Diagnostics {
	return diagnostics{e}
}

// Close implements engine.Engine.
func (e *Engine) Close() error {
	e.closed = true
	e.prog = nil
	e.cur = nil
	e.history = nil
	return nil
}
