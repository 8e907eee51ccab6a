// Copyright © 2024 The QDAP authors

// Package dapserver implements a Debug Adapter Protocol server for a
// reversible quantum-program execution engine. It translates between the
// DAP wire protocol and the engine.Engine interface.
//
// A server handles one client at a time, strictly in order: read a
// request, handle it, write the response, then write the events derived
// from the engine's state. The engine has no callbacks; every event is
// derived by sampling it after a request.
//
// The server supports two transport modes:
//   - TCP: the server accepts a single client connection on a listener.
//   - Stdio: the server reads from stdin and writes to stdout, as expected
//     by editors that launch a debug adapter as a child process.
package dapserver

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/go-dap"
	"github.com/luthersystems/qdap/engine"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/luthersystems/qdap/dapserver"

// Server is a DAP protocol server that drives engines from a Factory.
type Server struct {
	factory engine.Factory
	log     *logrus.Entry
	tracer  trace.Tracer

	mu     sync.Mutex
	seq    int
	conn   io.Closer
	closed bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Entries are tagged layer=dap.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Server) {
		s.log = log.WithField("layer", "dap")
	}
}

// WithTracerProvider sets the provider for per-request spans. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// New creates a server that opens an engine from factory for each session.
func New(factory engine.Factory, opts ...Option) *Server {
	s := &Server{factory: factory}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		s.log = l.WithField("layer", "dap")
	}
	if s.tracer == nil {
		s.tracer = otel.GetTracerProvider().Tracer(tracerName)
	}
	return s
}

// ServeConn serves DAP messages on a single connection. It blocks until
// the client disconnects, the stream ends or a protocol error occurs, and
// closes conn before returning.
func (s *Server) ServeConn(conn io.ReadWriteCloser) error {
	defer conn.Close() //nolint:errcheck // best-effort cleanup
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return s.serve(newFramer(conn, conn))
}

// ServeListener accepts a single connection from the listener and serves
// DAP messages on it.
func (s *Server) ServeListener(ln net.Listener) error {
	conn, err := ln.Accept()
	if err != nil {
		return err
	}
	s.log.WithField("remote", conn.RemoteAddr().String()).Info("client connected")
	return s.ServeConn(conn)
}

// ServeStdio serves DAP messages on the given reader and writer,
// typically os.Stdin and os.Stdout.
func (s *Server) ServeStdio(r io.Reader, w io.Writer) error {
	return s.serve(newFramer(r, w))
}

// Close stops a running ServeConn by closing its connection.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// nextSeq returns the next sequence number for outgoing messages.
func (s *Server) nextSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *Server) serve(f *framer) error {
	sess := newSession(s.factory)
	defer sess.release()
	for {
		data, err := f.read()
		if err != nil {
			if errors.Is(err, io.EOF) || s.isClosed() {
				s.log.Debug("client went away")
				return nil
			}
			s.log.WithError(err).Error("reading request")
			return err
		}
		done, err := s.dispatch(f, sess, data)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// dispatch handles one request and writes its response and events. It
// reports whether the session is over.
func (s *Server) dispatch(f *framer, sess *session, data []byte) (bool, error) {
	env, cmd, req, err := decodeRequest(data)
	var perr *ProtocolError
	if errors.As(err, &perr) {
		s.log.WithError(err).Error("rejecting message")
		return false, err
	}
	log := s.log.WithFields(logrus.Fields{"seq": env.Seq, "command": env.Command})
	log.Debug("request")

	ctx, span := s.tracer.Start(context.Background(), "dap."+string(cmd),
		trace.WithAttributes(
			attribute.Int("dap.seq", env.Seq),
			attribute.String("dap.command", string(cmd)),
		))
	defer span.End()

	var body interface{}
	if err == nil {
		body, err = req.handle(ctx, sess)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WithError(err).Info("request failed")
	}
	if err := f.write(s.newResponse(env, body, err)); err != nil {
		log.WithError(err).Error("writing response")
		return false, err
	}

	events, derr := deriveEvents(sess, cmd, req, err == nil)
	if derr != nil {
		span.RecordError(derr)
		log.WithError(derr).Error("deriving events")
	}
	for _, ev := range events {
		log.WithField("event", ev.Name()).Debug("event")
		if err := f.write(encodeEvent(s.nextSeq(), ev)); err != nil {
			log.WithError(err).Error("writing event")
			return false, err
		}
	}
	return cmd == CmdDisconnect, nil
}

// newResponse builds the response to env. A non-nil err turns it into a
// failure response carrying a DAP error body.
func (s *Server) newResponse(env envelope, body interface{}, err error) response {
	resp := response{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: s.nextSeq(), Type: "response"},
			RequestSeq:      env.Seq,
			Success:         err == nil,
			Command:         env.Command,
		},
		Body: body,
	}
	if err == nil {
		return resp
	}
	msg, id := err.Error(), errIDValidation
	var eerr *EngineError
	if errors.As(err, &eerr) {
		msg, id = eerr.Msg, errIDEngine
	}
	resp.Message = msg
	resp.Body = errorBody{Error: dap.ErrorMessage{Id: id, Format: msg, ShowUser: true}}
	return resp
}
