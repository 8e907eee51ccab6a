// Copyright © 2024 The QDAP authors

package dapserver

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(body string) string {
	return "Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
}

func TestFramerReadsConsecutiveFrames(t *testing.T) {
	t.Parallel()
	a := `{"seq":1,"type":"request","command":"threads"}`
	b := `{"seq":2,"type":"request","command":"disconnect"}`
	f := newFramer(strings.NewReader(frame(a)+frame(b)), io.Discard)

	got, err := f.read()
	require.NoError(t, err)
	assert.Equal(t, a, string(got))
	got, err = f.read()
	require.NoError(t, err)
	assert.Equal(t, b, string(got))
	_, err = f.read()
	assert.Equal(t, io.EOF, err)
}

func TestFramerReadsPartialFrames(t *testing.T) {
	t.Parallel()
	a := `{"seq":1,"type":"request","command":"threads","arguments":{"x":"a\nb"}}`
	f := newFramer(iotest.OneByteReader(strings.NewReader(frame(a)+frame(a))), io.Discard)
	for i := 0; i < 2; i++ {
		got, err := f.read()
		require.NoError(t, err)
		assert.Equal(t, a, string(got))
	}
}

func TestFramerErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
	}{
		{"truncated body", "Content-Length: 20\r\n\r\n{}"},
		{"bad header", "Content-Type: json\r\n\r\n{}"},
		{"bad length", "Content-Length: many\r\n\r\n{}"},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			f := newFramer(strings.NewReader(test.input), io.Discard)
			_, err := f.read()
			var perr *ProtocolError
			require.True(t, errors.As(err, &perr), "got %v", err)
		})
	}
}

func TestFramerWrite(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	f := newFramer(strings.NewReader(""), &buf)
	require.NoError(t, f.write(map[string]string{"output": "a\nb"}))
	body := `{"output":"a\nb"}`
	assert.Equal(t, frame(body), buf.String())
}

func TestCRLF(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a\r\nb\r\n", string(crlf([]byte("a\nb\n"))))
	assert.Equal(t, "{}", string(crlf([]byte("{}"))))
}
