// Copyright © 2024 The QDAP authors

package diagnostic

import (
	"fmt"
	"strings"

	"github.com/luthersystems/qdap/engine"
)

// Range is an inclusive [start, end] character-offset pair. It encodes as
// a two-element JSON array.
type Range [2]int

// PositionFunc reports the inclusive offset span of an instruction.
type PositionFunc func(instruction int) (start, end int, err error)

// GrayOutRanges returns the spans of every instruction outside deps, in
// instruction order.
func GrayOutRanges(count int, deps []int, position PositionFunc) ([]Range, error) {
	keep := make(map[int]bool, len(deps))
	for _, d := range deps {
		keep[d] = true
	}
	ranges := make([]Range, 0, count)
	for i := 0; i < count; i++ {
		if keep[i] {
			continue
		}
		start, end, err := position(i)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		ranges = append(ranges, Range{start, end})
	}
	return ranges, nil
}

// FormatCause describes an error cause in one sentence. lineOf maps an
// instruction to the line a client displays. Unknown cause types format
// as the empty string.
func FormatCause(cause engine.ErrorCause, lineOf func(instruction int) (int, error)) (string, error) {
	switch cause.Type {
	case engine.CauseMissingInteraction:
		return "The qubits never interact with each other. Are you missing a CX gate?", nil
	case engine.CauseControlAlwaysZero:
		line, err := lineOf(cause.Instruction)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Control qubit is always zero in line %d.", line), nil
	}
	return "", nil
}

// Message is a node of an output hierarchy. A message with a Title is a
// block that opens a group around its Body; otherwise Text is one line.
type Message struct {
	Title string
	Text  string
	Body  []Message
}

// Line returns a plain one-line message.
func Line(text string) Message {
	return Message{Text: text}
}

// IsBlock reports whether m opens a group.
func (m Message) IsBlock() bool {
	return m.Title != ""
}

// AssertionReport builds the hierarchy shown when the assertion at line
// fails. code is the instruction text and causes are formatted error
// causes; empty causes are dropped.
func AssertionReport(line int, code string, causes []string) Message {
	var found []Message
	for _, c := range causes {
		if c == "" {
			continue
		}
		found = append(found, Line(fmt.Sprintf("(%d) %s", len(found)+1, c)))
	}
	var tail Message
	if len(found) == 0 {
		tail = Line("○ No potential error causes found")
	} else {
		plural := ""
		if len(found) > 1 {
			plural = "s"
		}
		tail = Message{
			Title: fmt.Sprintf("Found %d potential error cause%s:", len(found), plural),
			Body:  found,
		}
	}
	return Message{
		Title: fmt.Sprintf("Assertion failed on line %d", line),
		Body: []Message{
			Line("    " + instructionText(code)),
			Line("○ Highlighting dependent predecessors"),
			tail,
		},
	}
}

func instructionText(code string) string {
	code = strings.ReplaceAll(code, "\r", "")
	code = strings.ReplaceAll(code, "\n", "")
	return strings.TrimSpace(code)
}

// Group tells a client how an output line nests.
type Group int

const (
	GroupNone Group = iota
	GroupStart
	GroupEnd
)

func (g Group) String() string {
	switch g {
	case GroupStart:
		return "start"
	case GroupEnd:
		return "end"
	}
	return ""
}

// Item is one line of a flattened hierarchy.
type Item struct {
	Text  string
	Group Group
}

// Flatten walks m depth first. A block yields a GroupStart item carrying
// its title, its body, and an empty GroupEnd item.
func Flatten(m Message) []Item {
	var items []Item
	flatten(m, &items)
	return items
}

func flatten(m Message, items *[]Item) {
	if !m.IsBlock() {
		*items = append(*items, Item{Text: m.Text})
		return
	}
	*items = append(*items, Item{Text: m.Title, Group: GroupStart})
	for _, child := range m.Body {
		flatten(child, items)
	}
	*items = append(*items, Item{Group: GroupEnd})
}
