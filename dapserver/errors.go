// Copyright © 2024 The QDAP authors

package dapserver

import "fmt"

// Error ids carried in the DAP error body of failure responses.
const (
	errIDValidation = 1001
	errIDEngine     = 1002
)

// ProtocolError is a fatal violation of the wire protocol: a framing
// error, a malformed envelope or an unsupported command. The connection
// cannot continue after one.
type ProtocolError struct {
	Msg string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dap protocol: %s: %v", e.Msg, e.Err)
	}
	return "dap protocol: " + e.Msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ValidationError rejects a single request. The client receives a failure
// response and the session is left as it was.
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// EngineError reports an execution-engine failure while handling a
// request. Msg is what the client is shown.
type EngineError struct {
	Msg string
	Err error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *EngineError) Unwrap() error { return e.Err }

// ResourceError marks a single breakpoint that the engine could not place.
// It never fails a whole request.
type ResourceError struct {
	Msg string
	Err error
}

func (e *ResourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ResourceError) Unwrap() error { return e.Err }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func engineFailure(msg string, err error) error {
	return &EngineError{Msg: msg, Err: err}
}
