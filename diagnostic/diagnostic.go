// Copyright © 2024 The QDAP authors

// Package diagnostic turns engine diagnostics into the text a user reads:
// the gray-out complement of a dependency slice, error-cause sentences, the
// nested message report sent when an assertion fails, and an annotated
// snippet renderer for terminal output. It does not depend on the DAP
// server so the CLI can use it directly.
package diagnostic

// Severity indicates the severity level of a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	default:
		return "unknown"
	}
}

// Span marks the source region a diagnostic points at.
type Span struct {
	File   string // path for reading source; display name if unreadable
	Line   int    // 1-based line number
	Col    int    // 1-based start column
	EndCol int    // 1-based inclusive end column (0 = up to the statement end)
	Label  string
}

// Diagnostic is a single annotated message. Report, when set, is printed
// under the snippet as an indented tree.
type Diagnostic struct {
	Severity Severity
	Message  string
	Spans    []Span
	Report   *Message
}
