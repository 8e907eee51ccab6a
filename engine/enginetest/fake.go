// Copyright © 2024 The QDAP authors

// Package enginetest provides a scriptable engine.Engine for tests. Every
// command is recorded and every predicate is a plain field, so a test can
// put the engine in any state a real engine could reach.
package enginetest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/luthersystems/qdap/engine"
)

// Span is an inclusive character range.
type Span struct {
	Start, End int
}

// Fake is a scriptable engine.Engine. Fields may be changed between
// requests; access from the test goroutine must go through Do while a
// server is using the engine.
type Fake struct {
	mu sync.Mutex

	LoadErr   error
	StepErr   error
	ResetErr  error
	Code      string
	Loaded    bool
	Closed    bool
	Calls     []string
	Finished  bool
	Failed    bool
	Hit       bool
	StepBack  bool
	StepFwd   bool
	Current   int
	Positions []Span

	Qubits     int
	Amplitudes map[string]engine.Complex
	Classical  []engine.Variable

	Depth int
	Trace []int

	// Breakpoints maps a character offset to the instruction it resolves
	// to. Offsets missing from the map fail to resolve.
	Breakpoints map[int]int
	Set         []int

	Deps   map[int][]int
	Causes []engine.ErrorCause

	// OnStep runs after each recorded stepping command, letting a test
	// move the engine as a side effect. It runs with the fake locked and
	// must only touch fields.
	OnStep func(f *Fake, call string)
}

var _ engine.Engine = (*Fake)(nil)

// New returns a fake with a single frame and forward stepping enabled.
func New() *Fake {
	return &Fake{
		StepFwd:     true,
		Depth:       1,
		Amplitudes:  make(map[string]engine.Complex),
		Breakpoints: make(map[int]int),
		Deps:        make(map[int][]int),
	}
}

// Factory returns an engine.Factory that always hands out f, reopened.
func (f *Fake) Factory() engine.Factory {
	return func() (engine.Engine, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.Calls = append(f.Calls, "New")
		f.Closed = false
		return f, nil
	}
}

// Do runs fn with the fake locked.
func (f *Fake) Do(fn func(f *Fake)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// CallLog returns a copy of the recorded calls.
func (f *Fake) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

func (f *Fake) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)
}

func (f *Fake) command(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)
	if f.Closed {
		return engine.ErrClosed
	}
	if f.StepErr != nil {
		return f.StepErr
	}
	if f.OnStep != nil {
		f.OnStep(f, call)
	}
	return nil
}

func (f *Fake) LoadCode(code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "LoadCode")
	if f.LoadErr != nil {
		return f.LoadErr
	}
	f.Code = code
	f.Loaded = true
	return nil
}

func (f *Fake) ResetSimulation() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "ResetSimulation")
	return f.ResetErr
}

func (f *Fake) StepForward() error           { return f.command("StepForward") }
func (f *Fake) StepBackward() error          { return f.command("StepBackward") }
func (f *Fake) StepOverForward() error       { return f.command("StepOverForward") }
func (f *Fake) StepOverBackward() error      { return f.command("StepOverBackward") }
func (f *Fake) StepOutForward() error        { return f.command("StepOutForward") }
func (f *Fake) StepOutBackward() error       { return f.command("StepOutBackward") }
func (f *Fake) RunSimulation() error         { return f.command("RunSimulation") }
func (f *Fake) RunSimulationBackward() error { return f.command("RunSimulationBackward") }
func (f *Fake) PauseSimulation() error       { return f.command("PauseSimulation") }

func (f *Fake) CanStepForward() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.StepFwd
}

func (f *Fake) CanStepBackward() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.StepBack
}

func (f *Fake) IsFinished() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Finished
}

func (f *Fake) DidAssertionFail() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Failed
}

func (f *Fake) WasBreakpointHit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Hit
}

func (f *Fake) CurrentInstruction() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Current
}

func (f *Fake) InstructionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Positions)
}

func (f *Fake) InstructionPosition(instruction int) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if instruction < 0 || instruction >= len(f.Positions) {
		return 0, 0, fmt.Errorf("enginetest: no instruction %d", instruction)
	}
	p := f.Positions[instruction]
	return p.Start, p.End, nil
}

func (f *Fake) NumQubits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Qubits
}

func (f *Fake) AmplitudeBitstring(bitstring string) (engine.Complex, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(bitstring) != f.Qubits {
		return engine.Complex{}, errors.New("enginetest: bitstring length mismatch")
	}
	return f.Amplitudes[bitstring], nil
}

func (f *Fake) NumClassicalVariables() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Classical)
}

func (f *Fake) ClassicalVariableName(index int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 0 || index >= len(f.Classical) {
		return "", fmt.Errorf("enginetest: no classical variable %d", index)
	}
	return f.Classical[index].Name, nil
}

func (f *Fake) ClassicalVariable(name string) (engine.Variable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.Classical {
		if v.Name == name {
			return v, nil
		}
	}
	return engine.Variable{}, fmt.Errorf("enginetest: no classical variable %q", name)
}

func (f *Fake) StackDepth() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Depth, nil
}

func (f *Fake) StackTrace(maxDepth int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	trace := f.Trace
	if trace == nil {
		trace = []int{f.Current}
	}
	if maxDepth >= 0 && len(trace) > maxDepth {
		trace = trace[:maxDepth]
	}
	return append([]int(nil), trace...), nil
}

func (f *Fake) SetBreakpoint(offset int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf("SetBreakpoint(%d)", offset))
	idx, ok := f.Breakpoints[offset]
	if !ok {
		return 0, fmt.Errorf("enginetest: offset %d does not resolve", offset)
	}
	f.Set = append(f.Set, idx)
	return idx, nil
}

func (f *Fake) ClearBreakpoints() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "ClearBreakpoints")
	f.Set = nil
	return nil
}

func (f *Fake) Diagnostics() engine.Diagnostics {
	return diagnostics{f}
}

func (f *Fake) Close() error {
	f.record("Close")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

type diagnostics struct {
	f *Fake
}

func (d diagnostics) DataDependencies(instruction int) ([]int, error) {
	d.f.mu.Lock()
	defer d.f.mu.Unlock()
	if deps, ok := d.f.Deps[instruction]; ok {
		return deps, nil
	}
	return []int{instruction}, nil
}

func (d diagnostics) PotentialErrorCauses() ([]engine.ErrorCause, error) {
	d.f.mu.Lock()
	defer d.f.mu.Unlock()
	return d.f.Causes, nil
}
