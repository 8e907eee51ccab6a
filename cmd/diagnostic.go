// Copyright © 2024 The QDAP authors

package cmd

import (
	"fmt"
	"strings"

	"github.com/luthersystems/qdap/diagnostic"
	"github.com/luthersystems/qdap/engine"
	"github.com/luthersystems/qdap/engine/tracer"
	"github.com/luthersystems/qdap/srcpos"
)

// parseErrorDiagnostic points at the offset a parse error reports.
func parseErrorDiagnostic(path string, coords *srcpos.Mapper, perr *tracer.ParseError) diagnostic.Diagnostic {
	line, col := coords.OffsetToLineCol(perr.Offset)
	return diagnostic.Diagnostic{
		Severity: diagnostic.SeverityError,
		Message:  perr.Msg,
		Spans:    []diagnostic.Span{{File: path, Line: line, Col: col}},
	}
}

// assertionDiagnostic describes the assertion e is stopped on, with the
// same report a debugger client receives.
func assertionDiagnostic(e engine.Engine, path, code string, coords *srcpos.Mapper) (diagnostic.Diagnostic, error) {
	current := e.CurrentInstruction()
	start, end, err := e.InstructionPosition(current)
	if err != nil {
		return diagnostic.Diagnostic{}, err
	}
	from, to := coords.Span(start, end)
	text := code[start : end+1]

	causes, err := e.Diagnostics().PotentialErrorCauses()
	if err != nil {
		return diagnostic.Diagnostic{}, fmt.Errorf("error causes: %w", err)
	}
	lineOf := func(instruction int) (int, error) {
		start, _, err := e.InstructionPosition(instruction)
		if err != nil {
			return 0, err
		}
		line, _ := coords.OffsetToLineCol(start)
		return line, nil
	}
	messages := make([]string, 0, len(causes))
	for _, c := range causes {
		msg, err := diagnostic.FormatCause(c, lineOf)
		if err != nil {
			return diagnostic.Diagnostic{}, err
		}
		messages = append(messages, msg)
	}
	report := diagnostic.AssertionReport(from.Line, text, messages)

	span := diagnostic.Span{File: path, Line: from.Line, Col: from.Col}
	if to.Line == from.Line {
		span.EndCol = to.Col
	}
	kind := "assertion"
	if fields := strings.Fields(text); len(fields) > 0 {
		kind = fields[0]
	}
	return diagnostic.Diagnostic{
		Severity: diagnostic.SeverityError,
		Message:  kind + " failed",
		Spans:    []diagnostic.Span{span},
		Report:   &report,
	}, nil
}
