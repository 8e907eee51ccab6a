// Copyright © 2024 The QDAP authors

package dapserver

import (
	"path/filepath"
	"strings"

	"github.com/google/go-dap"
	"github.com/luthersystems/qdap/engine"
	"github.com/luthersystems/qdap/srcpos"
)

// session is the state of one client connection. It is owned by the
// serving goroutine.
type session struct {
	factory engine.Factory
	engine  engine.Engine

	// loaded is set once the engine accepted a program.
	loaded bool
	source string
	desc   *dap.Source
	coords *srcpos.Mapper

	linesStartAt1   bool
	columnsStartAt1 bool

	exceptionFilters []string

	// canStepBack is the last supportsStepBack value the client was told.
	canStepBack bool
}

func newSession(factory engine.Factory) *session {
	return &session{
		factory:         factory,
		linesStartAt1:   true,
		columnsStartAt1: true,
		canStepBack:     true,
	}
}

// replaceEngine closes the current engine handle and opens a fresh one.
func (s *session) replaceEngine() error {
	s.release()
	e, err := s.factory()
	if err != nil {
		return engineFailure("Could not create the execution engine.", err)
	}
	s.engine = e
	return nil
}

// release closes the engine handle. It is a no-op without one.
func (s *session) release() {
	if s.engine != nil {
		_ = s.engine.Close() //nolint:errcheck // the handle is dropped either way
	}
	s.engine = nil
	s.loaded = false
}

// requireEngine returns the engine handle or a ValidationError.
func (s *session) requireEngine() (engine.Engine, error) {
	if s.engine == nil {
		return nil, invalid("session is not initialized")
	}
	return s.engine, nil
}

// requireProgram returns an engine with a loaded program.
func (s *session) requireProgram() (engine.Engine, error) {
	e, err := s.requireEngine()
	if err != nil {
		return nil, err
	}
	if !s.loaded {
		return nil, invalid("no program is loaded")
	}
	return e, nil
}

// load records a program the engine accepted.
func (s *session) load(path, code string) {
	s.loaded = true
	s.source = code
	s.desc = &dap.Source{Name: filepath.Base(path), Path: path}
	s.coords = srcpos.New(code)
	s.applyIndexing()
}

func (s *session) setIndexing(linesStartAt1, columnsStartAt1 bool) {
	s.linesStartAt1 = linesStartAt1
	s.columnsStartAt1 = columnsStartAt1
	s.applyIndexing()
}

func (s *session) applyIndexing() {
	if s.coords != nil {
		s.coords.LinesStartAt1 = s.linesStartAt1
		s.coords.ColsStartAt1 = s.columnsStartAt1
	}
}

// isMainSource reports whether src names the loaded program.
func (s *session) isMainSource(src dap.Source) bool {
	return s.desc != nil && src.Name == s.desc.Name && src.Path == s.desc.Path
}

// span maps an instruction to its start and end positions in client
// coordinates.
func (s *session) span(instruction int) (srcpos.Position, srcpos.Position, error) {
	start, end, err := s.engine.InstructionPosition(instruction)
	if err != nil {
		return srcpos.Position{}, srcpos.Position{}, engineFailure("Could not locate an instruction.", err)
	}
	from, to := s.coords.Span(start, end)
	return from, to, nil
}

// instructionText returns the source text of an instruction, end inclusive.
func (s *session) instructionText(instruction int) (string, error) {
	start, end, err := s.engine.InstructionPosition(instruction)
	if err != nil {
		return "", engineFailure("Could not locate an instruction.", err)
	}
	if start < 0 {
		start = 0
	}
	if end >= len(s.source) {
		end = len(s.source) - 1
	}
	if start > end {
		return "", nil
	}
	return s.source[start : end+1], nil
}

// lineOf returns the client line of an instruction's first character.
func (s *session) lineOf(instruction int) (int, error) {
	from, _, err := s.span(instruction)
	return from.Line, err
}

func (s *session) addExceptionFilters(ids []string) {
	for _, id := range ids {
		if id == "" || containsString(s.exceptionFilters, id) {
			continue
		}
		s.exceptionFilters = append(s.exceptionFilters, id)
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// firstToken returns the first whitespace-separated word of text.
func firstToken(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
