// Copyright © 2024 The QDAP authors

package srcpos

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	texts := []string{
		"",
		"x q[0];",
		"qreg q[2];\nh q[0];\n\ncx q[0], q[1];\n",
		"\n\n\n",
	}
	for _, text := range texts {
		for _, lines1 := range []bool{true, false} {
			for _, cols1 := range []bool{true, false} {
				text, lines1, cols1 := text, lines1, cols1
				t.Run(fmt.Sprintf("%q/%v/%v", text, lines1, cols1), func(t *testing.T) {
					t.Parallel()
					m := New(text)
					m.LinesStartAt1 = lines1
					m.ColsStartAt1 = cols1
					for off := 0; off <= len(text); off++ {
						line, col := m.OffsetToLineCol(off)
						assert.Equal(t, off, m.LineColToOffset(line, col), "offset %d -> (%d, %d)", off, line, col)
					}
				})
			}
		}
	}
}

func TestOffsetToLineCol(t *testing.T) {
	t.Parallel()
	m := New("ab\ncd\nef")
	tests := []struct {
		offset    int
		line, col int
	}{
		{0, 1, 1},
		{1, 1, 2},
		{2, 1, 3}, // newline
		{3, 2, 1},
		{7, 3, 2},
		{8, 3, 3},
		{100, 3, 3},
		{-4, 1, 1},
	}
	for _, test := range tests {
		line, col := m.OffsetToLineCol(test.offset)
		assert.Equal(t, test.line, line, "line of %d", test.offset)
		assert.Equal(t, test.col, col, "col of %d", test.offset)
	}

	m.LinesStartAt1 = false
	m.ColsStartAt1 = false
	line, col := m.OffsetToLineCol(4)
	assert.Equal(t, 1, line)
	assert.Equal(t, 1, col)
	assert.Equal(t, 0, m.LineStart())
}

func TestLineColToOffset(t *testing.T) {
	t.Parallel()
	m := New("ab\ncd\nef")
	assert.Equal(t, 3, m.LineColToOffset(2, 1))
	assert.Equal(t, 7, m.LineColToOffset(3, 2))
	assert.Equal(t, 6, m.LineColToOffset(9, 1))
	assert.Equal(t, 1, m.LineStart())
}

func TestSpan(t *testing.T) {
	t.Parallel()
	m := New("qreg q[1];\nx q[0];\n")
	start, end := m.Span(11, 17)
	assert.Equal(t, Position{Line: 2, Col: 1}, start)
	assert.Equal(t, Position{Line: 2, Col: 7}, end)
	assert.Equal(t, 19, m.Len())
}
