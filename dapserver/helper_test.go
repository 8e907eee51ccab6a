// Copyright © 2024 The QDAP authors

package dapserver

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/luthersystems/qdap/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// message is any incoming DAP message, decoded loosely so custom events
// such as grayOut can be inspected.
type message struct {
	Seq        int             `json:"seq"`
	Type       string          `json:"type"`
	Command    string          `json:"command"`
	Event      string          `json:"event"`
	RequestSeq int             `json:"request_seq"`
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Body       json.RawMessage `json:"body"`
}

// dapTestSession is a raw DAP client connected to a server over net.Pipe.
// A background reader drains the pipe so the server never blocks on a
// write the test has not read yet.
type dapTestSession struct {
	t      *testing.T
	client net.Conn
	msgs   chan message
	served chan error
	seq    int
}

func setupDAPSession(t *testing.T, factory engine.Factory, opts ...Option) *dapTestSession {
	t.Helper()
	srv := New(factory, opts...)
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() }) //nolint:errcheck,gosec

	s := &dapTestSession{
		t:      t,
		client: client,
		msgs:   make(chan message, 256),
		served: make(chan error, 1),
	}
	go func() {
		s.served <- srv.ServeConn(server)
	}()
	go func() {
		defer close(s.msgs)
		r := bufio.NewReader(client)
		for {
			data, err := dap.ReadBaseMessage(r)
			if err != nil {
				return
			}
			var m message
			if err := json.Unmarshal(data, &m); err != nil {
				return
			}
			s.msgs <- m
		}
	}()
	return s
}

func (s *dapTestSession) nextSeq() int {
	s.seq++
	return s.seq
}

func (s *dapTestSession) sendRaw(body []byte) {
	s.t.Helper()
	require.NoError(s.t, dap.WriteBaseMessage(s.client, body))
}

// send writes a request and returns its seq.
func (s *dapTestSession) send(command string, args interface{}) int {
	s.t.Helper()
	seq := s.nextSeq()
	req := map[string]interface{}{"seq": seq, "type": "request", "command": command}
	if args != nil {
		req["arguments"] = args
	}
	body, err := json.Marshal(req)
	require.NoError(s.t, err)
	s.sendRaw(body)
	return seq
}

func (s *dapTestSession) read() message {
	s.t.Helper()
	select {
	case m, ok := <-s.msgs:
		require.True(s.t, ok, "connection closed while waiting for a message")
		return m
	case <-time.After(5 * time.Second):
		s.t.Fatal("timeout reading DAP message")
		return message{}
	}
}

func (s *dapTestSession) expectResponse(command string, success bool) message {
	s.t.Helper()
	m := s.read()
	require.Equal(s.t, "response", m.Type, "expected %s response, got %s %s", command, m.Type, m.Event)
	require.Equal(s.t, command, m.Command)
	require.Equal(s.t, success, m.Success, "response %s: %s", command, m.Message)
	return m
}

// request sends a request and reads a successful response to it.
func (s *dapTestSession) request(command string, args interface{}) message {
	s.t.Helper()
	seq := s.send(command, args)
	m := s.expectResponse(command, true)
	assert.Equal(s.t, seq, m.RequestSeq)
	return m
}

func (s *dapTestSession) expectEvent(event string) message {
	s.t.Helper()
	m := s.read()
	require.Equal(s.t, "event", m.Type, "expected %s event, got %s %s", event, m.Type, m.Command)
	require.Equal(s.t, event, m.Event)
	return m
}

// expectStopped reads a stopped event and checks its reason.
func (s *dapTestSession) expectStopped(reason string) dap.StoppedEventBody {
	s.t.Helper()
	var body dap.StoppedEventBody
	decodeBody(s.t, s.expectEvent("stopped"), &body)
	assert.Equal(s.t, reason, body.Reason)
	assert.Equal(s.t, mainThreadID, body.ThreadId)
	assert.True(s.t, body.AllThreadsStopped)
	return body
}

func (s *dapTestSession) expectExited(code int) {
	s.t.Helper()
	var body dap.ExitedEventBody
	decodeBody(s.t, s.expectEvent("exited"), &body)
	assert.Equal(s.t, code, body.ExitCode)
}

func (s *dapTestSession) expectCapabilities(stepBack bool) {
	s.t.Helper()
	var body map[string]map[string]bool
	decodeBody(s.t, s.expectEvent("capabilities"), &body)
	v, ok := body["capabilities"]["supportsStepBack"]
	require.True(s.t, ok, "supportsStepBack missing from capabilities event")
	assert.Equal(s.t, stepBack, v)
}

// expectQuiet checks that nothing else arrives for a short while.
func (s *dapTestSession) expectQuiet() {
	s.t.Helper()
	select {
	case m, ok := <-s.msgs:
		if ok {
			s.t.Fatalf("unexpected message: %s %s%s", m.Type, m.Command, m.Event)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

// initialize performs the handshake.
func (s *dapTestSession) initialize() message {
	s.t.Helper()
	return s.request("initialize", map[string]interface{}{"adapterID": AdapterID})
}

// launch loads a program and reads the initialized event that follows.
func (s *dapTestSession) launch(path string, stopOnEntry bool) message {
	s.t.Helper()
	m := s.request("launch", map[string]interface{}{"program": path, "stopOnEntry": stopOnEntry})
	s.expectEvent("initialized")
	return m
}

// serveResult waits for ServeConn to return.
func (s *dapTestSession) serveResult() error {
	s.t.Helper()
	select {
	case err := <-s.served:
		return err
	case <-time.After(5 * time.Second):
		s.t.Fatal("timeout waiting for the server to stop")
		return nil
	}
}

func decodeBody(t *testing.T, m message, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(m.Body, v), "body: %s", m.Body)
}

func writeProgram(t *testing.T, name, code string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(code), 0o600))
	return path
}
