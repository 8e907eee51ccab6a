// Copyright © 2024 The QDAP authors

// Package engine defines the contract between the DAP server and a
// reversible quantum-program execution engine.
//
// An Engine exposes no notification mechanism. Callers drive it with
// synchronous commands (step, run, reset) and observe the outcome by
// sampling its predicates afterwards (IsFinished, DidAssertionFail,
// WasBreakpointHit, CanStepBackward). Implementations are not safe for
// concurrent use; the DAP server only ever calls an engine from its single
// serving goroutine.
package engine

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrNoProgram is returned by operations that require loaded code.
var ErrNoProgram = errors.New("engine: no program loaded")

// ErrClosed is returned by every operation on a closed engine.
var ErrClosed = errors.New("engine: closed")

// Engine is a steppable, reversible program-execution engine.
//
// Instruction indices are 0-based positions in the loaded program.
// InstructionPosition reports character offsets into the loaded source;
// end is inclusive (the offset of the instruction's last character).
type Engine interface {
	// LoadCode parses and loads a program, replacing any previous one.
	LoadCode(code string) error
	// ResetSimulation rewinds the loaded program to its initial state.
	ResetSimulation() error

	StepForward() error
	StepBackward() error
	StepOverForward() error
	StepOverBackward() error
	StepOutForward() error
	StepOutBackward() error
	// RunSimulation runs forward until the program finishes, an assertion
	// fails, or a breakpoint is reached.
	RunSimulation() error
	// RunSimulationBackward runs backward until the start of the program
	// or a breakpoint is reached.
	RunSimulationBackward() error
	PauseSimulation() error

	CanStepForward() bool
	CanStepBackward() bool
	IsFinished() bool
	DidAssertionFail() bool
	WasBreakpointHit() bool

	CurrentInstruction() int
	InstructionCount() int
	InstructionPosition(instruction int) (start, end int, err error)

	NumQubits() int
	AmplitudeBitstring(bitstring string) (Complex, error)
	NumClassicalVariables() int
	ClassicalVariableName(index int) (string, error)
	ClassicalVariable(name string) (Variable, error)

	StackDepth() (int, error)
	// StackTrace returns up to maxDepth instruction indices, innermost
	// frame first. Each entry past the first is the call site of the frame
	// before it.
	StackTrace(maxDepth int) ([]int, error)

	// SetBreakpoint resolves a character offset to an instruction and
	// marks it. It returns the instruction index.
	SetBreakpoint(offset int) (int, error)
	ClearBreakpoints() error

	Diagnostics() Diagnostics

	// Close releases the engine. Further calls return ErrClosed.
	Close() error
}

// Diagnostics answers root-cause questions about the engine's current state.
type Diagnostics interface {
	// DataDependencies returns the instructions the given instruction
	// causally depends on, including the instruction itself.
	DataDependencies(instruction int) ([]int, error)
	// PotentialErrorCauses lists likely causes for the current assertion
	// failure.
	PotentialErrorCauses() ([]ErrorCause, error)
}

// Factory creates a fresh engine handle.
type Factory func() (Engine, error)

// VariableType tags the value held by a classical Variable.
type VariableType int

const (
	VarBool VariableType = iota
	VarInt
	VarFloat
)

// Variable is a classical variable held by the engine.
type Variable struct {
	Name  string
	Type  VariableType
	Bool  bool
	Int   int
	Float float64
}

// String renders the variable value the way a debugger client displays it.
func (v Variable) String() string {
	switch v.Type {
	case VarInt:
		return strconv.Itoa(v.Int)
	case VarFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		if v.Bool {
			return "True"
		}
		return "False"
	}
}

// Complex is a state-vector amplitude.
type Complex struct {
	Real      float64
	Imaginary float64
}

// String formats c as "a + bi" (or "a - bi").
func (c Complex) String() string {
	sign := "+"
	im := c.Imaginary
	if im < 0 || (im == 0 && math.Signbit(im)) {
		sign = "-"
		im = -im
	}
	return fmt.Sprintf("%s %s %si",
		strconv.FormatFloat(c.Real, 'g', 6, 64), sign, strconv.FormatFloat(im, 'g', 6, 64))
}

// ErrorCauseType classifies a potential error cause.
type ErrorCauseType int

const (
	CauseUnknown ErrorCauseType = iota
	// CauseMissingInteraction: qubits asserted to be entangled never
	// interacted.
	CauseMissingInteraction
	// CauseControlAlwaysZero: a controlled gate whose control qubit was
	// zero every time it executed.
	CauseControlAlwaysZero
)

func (t ErrorCauseType) String() string {
	switch t {
	case CauseMissingInteraction:
		return "missing-interaction"
	case CauseControlAlwaysZero:
		return "control-always-zero"
	default:
		return "unknown"
	}
}

// ErrorCause points at the instruction a potential error cause was found at.
type ErrorCause struct {
	Type        ErrorCauseType
	Instruction int
}
