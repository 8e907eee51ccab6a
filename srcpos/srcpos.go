// Copyright © 2024 The QDAP authors

// Package srcpos converts between character offsets in a source text and
// the (line, column) coordinates a debugger client speaks.
package srcpos

// Mapper converts offsets for a single source text. Lines and columns are
// 1-based unless the corresponding flag says otherwise.
type Mapper struct {
	lines         []int // offset of the first character of each line
	length        int
	LinesStartAt1 bool
	ColsStartAt1  bool
}

// New returns a Mapper over text with 1-based lines and columns.
func New(text string) *Mapper {
	m := &Mapper{
		lines:         []int{0},
		length:        len(text),
		LinesStartAt1: true,
		ColsStartAt1:  true,
	}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			m.lines = append(m.lines, i+1)
		}
	}
	return m
}

// Len is the length of the mapped text.
func (m *Mapper) Len() int {
	return m.length
}

func (m *Mapper) lineBase() int {
	if m.LinesStartAt1 {
		return 1
	}
	return 0
}

func (m *Mapper) colBase() int {
	if m.ColsStartAt1 {
		return 1
	}
	return 0
}

// OffsetToLineCol maps an offset to its line and column. A newline maps to
// the column just past the last character of its line. Offsets past the
// end clamp to the end of the text; negative offsets clamp to the start.
func (m *Mapper) OffsetToLineCol(offset int) (line, col int) {
	if offset > m.length {
		offset = m.length
	}
	if offset < 0 {
		offset = 0
	}
	l := len(m.lines) - 1
	for l > 0 && m.lines[l] > offset {
		l--
	}
	return l + m.lineBase(), offset - m.lines[l] + m.colBase()
}

// LineColToOffset maps a line and column back to an offset. Lines past the
// end clamp to the last line.
func (m *Mapper) LineColToOffset(line, col int) int {
	l := line - m.lineBase()
	if l < 0 {
		l = 0
	}
	if l >= len(m.lines) {
		l = len(m.lines) - 1
	}
	return m.lines[l] + col - m.colBase()
}

// LineStart is the column of the first character on any line.
func (m *Mapper) LineStart() int {
	return m.colBase()
}

// Position is a line and column pair in client coordinates.
type Position struct {
	Line int
	Col  int
}

// Span maps an inclusive offset range to its two end positions.
func (m *Mapper) Span(start, end int) (Position, Position) {
	sl, sc := m.OffsetToLineCol(start)
	el, ec := m.OffsetToLineCol(end)
	return Position{sl, sc}, Position{el, ec}
}
