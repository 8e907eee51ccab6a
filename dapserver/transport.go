// Copyright © 2024 The QDAP authors

package dapserver

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/google/go-dap"
)

// framer reads and writes Content-Length framed messages. Reads consume
// exactly one frame no matter how the bytes arrived; writes go straight to
// the underlying writer.
type framer struct {
	r *bufio.Reader
	w io.Writer
}

func newFramer(r io.Reader, w io.Writer) *framer {
	return &framer{r: bufio.NewReader(r), w: w}
}

// read returns the body of the next frame. io.EOF is returned unwrapped
// when the stream ends between frames; ending inside a frame is a
// ProtocolError.
func (f *framer) read() ([]byte, error) {
	if _, err := f.r.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, &ProtocolError{Msg: "reading frame", Err: err}
	}
	data, err := dap.ReadBaseMessage(f.r)
	if err != nil {
		return nil, &ProtocolError{Msg: "reading frame", Err: err}
	}
	return data, nil
}

// write encodes msg as JSON and sends it as one frame.
func (f *framer) write(msg interface{}) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return dap.WriteBaseMessage(f.w, crlf(body))
}

// crlf rewrites every line feed in an outgoing body to CR LF.
func crlf(body []byte) []byte {
	return bytes.ReplaceAll(body, []byte("\n"), []byte("\r\n"))
}
