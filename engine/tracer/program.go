// Copyright © 2024 The QDAP authors

package tracer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type kind int

const (
	kindNoop kind = iota
	kindQreg
	kindCreg
	kindGateDef
	kindReturn
	kindGate
	kindCall
	kindMeasure
	kindReset
	kindAssert
)

// instruction is one executable unit of a program. start and end are
// character offsets into the source; end is inclusive.
type instruction struct {
	kind  kind
	text  string
	start int
	end   int
	op    string
	// targets are qubit operands as written: "q[0]", "q" or a gate
	// parameter name inside a gate body.
	targets []string
	// cbits are classical measurement destinations.
	cbits []string
	// scope is the index of the enclosing gate definition, or -1.
	scope int

	// Gate definitions only.
	params  []string
	retIdx  int
	regSize int
}

type register struct {
	offset int
	size   int
}

type program struct {
	insts  []instruction
	qregs  map[string]register
	cregs  map[string]register
	qorder []string
	corder []string
	gates  map[string]int
	nq     int
	ncl    int
}

// ParseError reports a malformed program.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Offset, e.Msg)
}

var builtinArity = map[string]int{
	"id": 1, "x": 1, "y": 1, "z": 1, "h": 1, "s": 1, "sdg": 1, "t": 1, "tdg": 1,
	"rx": 1, "ry": 1, "rz": 1, "u": 1, "u1": 1, "u2": 1, "u3": 1,
	"cx": 2, "cz": 2, "swap": 2, "ccx": 3,
}

// stripComments blanks out // comments while keeping every offset intact.
func stripComments(code string) string {
	b := []byte(code)
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '/' && b[i+1] == '/' {
			for i < len(b) && b[i] != '\n' {
				b[i] = ' '
				i++
			}
		}
	}
	return string(b)
}

func parse(code string) (*program, error) {
	src := stripComments(code)
	p := &program{
		qregs: make(map[string]register),
		cregs: make(map[string]register),
		gates: make(map[string]int),
	}
	scope := -1
	stmtStart := -1
	for i := 0; i < len(src); i++ {
		c := src[i]
		if stmtStart < 0 {
			if unicode.IsSpace(rune(c)) {
				continue
			}
			if c == '}' {
				if scope < 0 {
					return nil, &ParseError{i, "unexpected '}'"}
				}
				p.insts = append(p.insts, instruction{kind: kindReturn, text: "}", start: i, end: i, op: "return", scope: scope})
				p.insts[scope].retIdx = len(p.insts) - 1
				scope = -1
				continue
			}
			stmtStart = i
		}
		switch c {
		case ';':
			inst, err := p.statement(src[stmtStart:i], stmtStart, i, scope)
			if err != nil {
				return nil, err
			}
			p.insts = append(p.insts, inst)
			stmtStart = -1
		case '{':
			if scope >= 0 {
				return nil, &ParseError{i, "nested gate definitions are not supported"}
			}
			def, err := p.gateHeader(src[stmtStart:i], stmtStart, i)
			if err != nil {
				return nil, err
			}
			p.insts = append(p.insts, def)
			scope = len(p.insts) - 1
			p.gates[def.op] = scope
			stmtStart = -1
		case '}':
			return nil, &ParseError{i, "missing ';' before '}'"}
		}
	}
	if stmtStart >= 0 {
		return nil, &ParseError{stmtStart, "unterminated statement"}
	}
	if scope >= 0 {
		return nil, &ParseError{p.insts[scope].start, "unterminated gate definition"}
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *program) gateHeader(text string, start, brace int) (instruction, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 || fields[0] != "gate" {
		return instruction{}, &ParseError{start, "'{' is only allowed after a gate header"}
	}
	name := fields[1]
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "gate"))
	rest = strings.TrimSpace(strings.TrimPrefix(rest, name))
	if _, ok := builtinArity[name]; ok {
		return instruction{}, &ParseError{start, fmt.Sprintf("gate %q redefines a builtin", name)}
	}
	if _, ok := p.gates[name]; ok {
		return instruction{}, &ParseError{start, fmt.Sprintf("gate %q defined twice", name)}
	}
	params := splitOperands(rest)
	if len(params) == 0 {
		return instruction{}, &ParseError{start, fmt.Sprintf("gate %q has no qubit parameters", name)}
	}
	return instruction{
		kind:   kindGateDef,
		text:   strings.TrimSpace(text),
		start:  start,
		end:    brace,
		op:     name,
		params: params,
		scope:  -1,
	}, nil
}

func (p *program) statement(text string, start, semi, scope int) (instruction, error) {
	body := strings.TrimSpace(text)
	inst := instruction{text: body + ";", start: start, end: semi, scope: scope}
	op, rest := splitOp(body)
	inst.op = op
	switch {
	case op == "OPENQASM" || op == "include" || op == "barrier":
		inst.kind = kindNoop
	case op == "qreg" || op == "creg":
		if scope >= 0 {
			return inst, &ParseError{start, op + " inside a gate definition"}
		}
		name, size, err := parseDecl(rest)
		if err != nil {
			return inst, &ParseError{start, err.Error()}
		}
		if _, dup := p.qregs[name]; dup {
			return inst, &ParseError{start, fmt.Sprintf("register %q declared twice", name)}
		}
		if _, dup := p.cregs[name]; dup {
			return inst, &ParseError{start, fmt.Sprintf("register %q declared twice", name)}
		}
		inst.regSize = size
		if op == "qreg" {
			inst.kind = kindQreg
			p.qregs[name] = register{offset: p.nq, size: size}
			p.qorder = append(p.qorder, name)
			p.nq += size
		} else {
			inst.kind = kindCreg
			p.cregs[name] = register{offset: p.ncl, size: size}
			p.corder = append(p.corder, name)
			p.ncl += size
		}
		inst.targets = []string{name}
	case op == "measure":
		parts := strings.Split(rest, "->")
		if len(parts) != 2 {
			return inst, &ParseError{start, "measure needs the form 'measure q -> c'"}
		}
		inst.kind = kindMeasure
		inst.targets = []string{strings.TrimSpace(parts[0])}
		inst.cbits = []string{strings.TrimSpace(parts[1])}
	case op == "reset":
		inst.kind = kindReset
		inst.targets = splitOperands(rest)
	case strings.HasPrefix(op, "assert-"):
		switch op {
		case "assert-ent", "assert-sup", "assert-eq":
		default:
			return inst, &ParseError{start, fmt.Sprintf("unknown assertion %q", op)}
		}
		inst.kind = kindAssert
		for _, operand := range splitOperands(rest) {
			if _, err := strconv.ParseFloat(operand, 64); err == nil {
				continue
			}
			inst.targets = append(inst.targets, operand)
		}
		if len(inst.targets) == 0 {
			return inst, &ParseError{start, op + " needs at least one qubit"}
		}
	default:
		inst.targets = splitOperands(rest)
		if arity, ok := builtinArity[op]; ok {
			inst.kind = kindGate
			if len(inst.targets) != arity {
				return inst, &ParseError{start, fmt.Sprintf("%s takes %d qubits, got %d", op, arity, len(inst.targets))}
			}
			break
		}
		def, ok := p.gates[op]
		if !ok {
			return inst, &ParseError{start, fmt.Sprintf("unknown gate %q", op)}
		}
		if def == scope {
			return inst, &ParseError{start, fmt.Sprintf("gate %q calls itself", op)}
		}
		if len(inst.targets) != len(p.insts[def].params) {
			return inst, &ParseError{start, fmt.Sprintf("%s takes %d qubits, got %d", op, len(p.insts[def].params), len(inst.targets))}
		}
		inst.kind = kindCall
	}
	return inst, nil
}

// validate checks operand references once all registers are known.
func (p *program) validate() error {
	for _, inst := range p.insts {
		var params []string
		if inst.scope >= 0 {
			params = p.insts[inst.scope].params
		}
		for _, t := range inst.targets {
			switch inst.kind {
			case kindQreg, kindCreg:
				continue
			}
			if inst.scope >= 0 {
				if !contains(params, t) {
					return &ParseError{inst.start, fmt.Sprintf("%q is not a parameter of the enclosing gate", t)}
				}
				continue
			}
			qs, err := p.qubits(t, nil, nil)
			if err != nil {
				return &ParseError{inst.start, err.Error()}
			}
			if inst.kind == kindCall && len(qs) != 1 {
				return &ParseError{inst.start, fmt.Sprintf("%s needs single-qubit operands", inst.op)}
			}
		}
		for _, c := range inst.cbits {
			if _, err := p.clbits(c); err != nil {
				return &ParseError{inst.start, err.Error()}
			}
		}
		if inst.kind == kindMeasure && inst.scope < 0 {
			qs, _ := p.qubits(inst.targets[0], nil, nil)
			cs, _ := p.clbits(inst.cbits[0])
			if len(qs) != len(cs) {
				return &ParseError{inst.start, "measure operands differ in size"}
			}
		}
	}
	return nil
}

// qubits resolves an operand to global qubit indices. Inside a gate body,
// params and bind map parameter names to the caller's qubits.
func (p *program) qubits(operand string, params []string, bind []int) ([]int, error) {
	for i, name := range params {
		if name == operand {
			return []int{bind[i]}, nil
		}
	}
	return resolve(p.qregs, operand, "quantum")
}

func (p *program) clbits(operand string) ([]int, error) {
	return resolve(p.cregs, operand, "classical")
}

func resolve(regs map[string]register, operand, what string) ([]int, error) {
	name, idx, indexed, err := splitIndex(operand)
	if err != nil {
		return nil, err
	}
	reg, ok := regs[name]
	if !ok {
		return nil, fmt.Errorf("unknown %s register %q", what, name)
	}
	if indexed {
		if idx < 0 || idx >= reg.size {
			return nil, fmt.Errorf("index %d out of range for %q", idx, name)
		}
		return []int{reg.offset + idx}, nil
	}
	out := make([]int, reg.size)
	for i := range out {
		out[i] = reg.offset + i
	}
	return out, nil
}

func splitOp(body string) (string, string) {
	end := strings.IndexFunc(body, func(r rune) bool {
		return unicode.IsSpace(r) || r == '('
	})
	if end < 0 {
		return body, ""
	}
	op := body[:end]
	rest := body[end:]
	if strings.HasPrefix(rest, "(") {
		if close := strings.IndexByte(rest, ')'); close >= 0 {
			rest = rest[close+1:]
		}
	}
	return op, strings.TrimSpace(rest)
}

func splitOperands(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func splitIndex(operand string) (string, int, bool, error) {
	open := strings.IndexByte(operand, '[')
	if open < 0 {
		return operand, 0, false, nil
	}
	if !strings.HasSuffix(operand, "]") {
		return "", 0, false, fmt.Errorf("malformed operand %q", operand)
	}
	idx, err := strconv.Atoi(operand[open+1 : len(operand)-1])
	if err != nil {
		return "", 0, false, fmt.Errorf("malformed index in %q", operand)
	}
	return operand[:open], idx, true, nil
}

func parseDecl(rest string) (string, int, error) {
	name, size, indexed, err := splitIndex(strings.TrimSpace(rest))
	if err != nil {
		return "", 0, err
	}
	if !indexed || size <= 0 {
		return "", 0, fmt.Errorf("register declaration needs a positive size")
	}
	return name, size, nil
}

func registerName(operand string) string {
	if open := strings.IndexByte(operand, '['); open >= 0 {
		return operand[:open]
	}
	return operand
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
