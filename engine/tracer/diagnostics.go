// Copyright © 2024 The QDAP authors

package tracer

import (
	"fmt"
	"sort"

	"github.com/luthersystems/qdap/engine"
)

type diagnostics struct {
	e *Engine
}

// DataDependencies is a static backward slice. An earlier instruction in
// the same scope is a dependency when it touches an operand the slice
// already depends on. A bare register name overlaps every element of that
// register, so declarations of involved registers are part of the slice.
// Instructions inside a gate body also depend on the gate header.
func (d diagnostics) DataDependencies(instruction int) ([]int, error) {
	e := d.e
	if err := e.ready(); err != nil {
		return nil, err
	}
	insts := e.prog.insts
	if instruction < 0 || instruction >= len(insts) {
		return nil, fmt.Errorf("tracer: instruction %d out of range", instruction)
	}
	target := insts[instruction]
	deps := map[int]bool{instruction: true}
	var live []string
	live = append(live, operands(target)...)
	for i := instruction - 1; i >= 0; i-- {
		inst := insts[i]
		if inst.scope != target.scope || inst.kind == kindGateDef || inst.kind == kindReturn {
			continue
		}
		ops := operands(inst)
		if !overlaps(live, ops) {
			continue
		}
		deps[i] = true
		if inst.kind == kindQreg || inst.kind == kindCreg {
			continue
		}
		live = append(live, ops...)
	}
	if target.scope >= 0 {
		deps[target.scope] = true
	}
	out := make([]int, 0, len(deps))
	for i := range deps {
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

func operands(inst instruction) []string {
	out := append([]string(nil), inst.targets...)
	return append(out, inst.cbits...)
}

func overlaps(live, ops []string) bool {
	for _, o := range ops {
		for _, l := range live {
			if sameStorage(l, o) {
				return true
			}
		}
	}
	return false
}

func sameStorage(a, b string) bool {
	if a == b {
		return true
	}
	ra, rb := registerName(a), registerName(b)
	if ra != rb {
		return false
	}
	return ra == a || rb == b
}

// PotentialErrorCauses inspects the current assertion failure. It reports
// entanglement assertions over qubits that never interacted, and
// controlled gates among the dependencies whose control was zero on every
// execution.
func (d diagnostics) PotentialErrorCauses() ([]engine.ErrorCause, error) {
	e := d.e
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.finished() {
		return nil, nil
	}
	s := e.cur
	pc := s.pc
	inst := e.prog.insts[pc]
	if inst.kind != kindAssert {
		return nil, nil
	}
	var causes []engine.ErrorCause
	if inst.op == "assert-ent" {
		params, bind := e.binding(s)
		qs, err := e.assertionQubits(&inst, params, bind)
		if err != nil {
			return nil, err
		}
		probe := s.clone()
		root := probe.find(qs[0])
		for _, q := range qs[1:] {
			if probe.find(q) != root {
				causes = append(causes, engine.ErrorCause{Type: engine.CauseMissingInteraction, Instruction: pc})
				break
			}
		}
	}
	deps, err := d.DataDependencies(pc)
	if err != nil {
		return nil, err
	}
	for _, i := range deps {
		if s.ctrlExec[i] > 0 && s.ctrlZero[i] == s.ctrlExec[i] {
			causes = append(causes, engine.ErrorCause{Type: engine.CauseControlAlwaysZero, Instruction: i})
		}
	}
	return causes, nil
}
