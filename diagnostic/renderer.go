// Copyright © 2024 The QDAP authors

package diagnostic

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
)

// DefaultWidth is the wrap column for report lines.
const DefaultWidth = 80

// Renderer prints diagnostics as annotated source snippets followed by
// their report tree.
type Renderer struct {
	// Color controls ANSI color output. Default is ColorAuto.
	Color ColorMode

	// Width wraps report lines. Zero means DefaultWidth; negative disables
	// wrapping.
	Width int

	// SourceReader reads source file contents. If nil, os.ReadFile is used.
	SourceReader func(string) ([]byte, error)
}

// Render writes a single diagnostic to w.
func (r *Renderer) Render(w io.Writer, d Diagnostic) error {
	p := choosePalette(r.Color, fileFromWriter(w))
	bw := bufio.NewWriter(w)
	ew := &errWriter{w: bw}

	ew.printf("%s%s%s: %s%s%s\n", severityColor(d.Severity, p), d.Severity, p.reset, p.bold, d.Message, p.reset)
	for _, span := range d.Spans {
		r.writeSpan(ew, span, p)
	}
	if d.Report != nil {
		r.writeReport(ew, *d.Report, p)
	}
	if ew.err != nil {
		return ew.err
	}
	return bw.Flush()
}

// RenderAll writes all diagnostics to w separated by blank lines.
func (r *Renderer) RenderAll(w io.Writer, diags []Diagnostic) error {
	for i, d := range diags {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := r.Render(w, d); err != nil {
			return err
		}
	}
	return nil
}

// errWriter keeps the first write error and drops later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, a ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, a...)
}

func severityColor(s Severity, p palette) string {
	switch s {
	case SeverityError:
		return p.boldRed
	case SeverityWarning:
		return p.yellow
	}
	return p.boldCyan
}

func (r *Renderer) writeSpan(ew *errWriter, span Span, p palette) {
	loc := span.File
	if span.Line > 0 {
		loc += ":" + strconv.Itoa(span.Line)
		if span.Col > 0 {
			loc += ":" + strconv.Itoa(span.Col)
		}
	}
	ew.printf("  %s-->%s %s\n", p.boldBlue, p.reset, loc)

	source, ok := r.sourceLine(span.File, span.Line)
	if !ok {
		ew.printf("   %s|%s\n", p.boldBlue, p.reset)
		return
	}
	num := strconv.Itoa(span.Line)
	gutter := strings.Repeat(" ", len(num))
	source = strings.ReplaceAll(source, "\t", "    ")

	col := span.Col
	if col <= 0 {
		col = 1
	}
	end := span.EndCol
	if end <= 0 {
		end = statementEnd(source, col)
	}
	if end < col {
		end = col
	}
	marks := strings.Repeat(" ", col-1) + strings.Repeat("^", end-col+1)

	ew.printf(" %s%s |%s\n", p.boldBlue, gutter, p.reset)
	ew.printf(" %s%s |%s  %s\n", p.boldBlue, num, p.reset, source)
	ew.printf(" %s%s |%s  %s%s%s", p.boldBlue, gutter, p.reset, p.boldRed, marks, p.reset)
	if span.Label != "" {
		ew.printf(" %s%s%s", p.boldRed, span.Label, p.reset)
	}
	ew.printf("\n %s%s |%s\n", p.boldBlue, gutter, p.reset)
}

// writeReport prints a message tree, indenting each block's body by two
// spaces under its title.
func (r *Renderer) writeReport(ew *errWriter, m Message, p palette) {
	width := r.Width
	if width == 0 {
		width = DefaultWidth
	}
	var walk func(m Message, depth uint)
	walk = func(m Message, depth uint) {
		text := m.Text
		if m.IsBlock() {
			text = p.bold + m.Title + p.reset
		}
		if width > 0 {
			limit := width - int(depth*2)
			if limit < 20 {
				limit = 20
			}
			text = wordwrap.String(text, limit)
		}
		ew.printf("%s\n", indent.String(text, depth*2+3))
		for _, child := range m.Body {
			walk(child, depth+1)
		}
	}
	walk(m, 0)
}

func (r *Renderer) sourceLine(file string, line int) (string, bool) {
	if line <= 0 || file == "" {
		return "", false
	}
	reader := r.SourceReader
	if reader == nil {
		reader = os.ReadFile
	}
	data, err := reader(file)
	if err != nil {
		return "", false
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for i := 1; scanner.Scan(); i++ {
		if i == line {
			return scanner.Text(), true
		}
	}
	return "", false
}

// statementEnd returns the 1-based column of the ';' closing the statement
// that starts at col, or the last column of the line.
func statementEnd(source string, col int) int {
	if col > len(source) {
		return col
	}
	if i := strings.IndexByte(source[col-1:], ';'); i >= 0 {
		return col + i
	}
	return len(strings.TrimRight(source, " "))
}

func fileFromWriter(w io.Writer) *os.File {
	if f, ok := w.(*os.File); ok {
		return f
	}
	return nil
}
