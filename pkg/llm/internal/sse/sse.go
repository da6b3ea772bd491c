// Package sse frames Server-Sent Events off an HTTP response body, shared
// by the openai and ollama adapters (both speak a line-delimited
// "data: {...}" stream). Grounded on the teacher's pkg/llms/openai.go
// streaming loop: bufio.Reader.ReadBytes('\n') rather than bufio.Scanner,
// because Scanner's default 64KB line limit is too small for large
// tool-call argument fragments.
package sse

import (
	"bufio"
	"bytes"
	"io"
)

// Reader yields successive "data:" payloads from an SSE stream, skipping
// blank lines, comments, and non-data fields.
type Reader struct {
	r *bufio.Reader
}

// New wraps body in a Reader.
func New(body io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(body)}
}

// Next returns the next data payload (with the "data: " prefix and
// trailing whitespace stripped), io.EOF when the stream ends cleanly, or
// a read error otherwise. A payload of exactly "[DONE]" (OpenAI's
// stream-terminator sentinel) is returned as-is; callers check for it.
func (r *Reader) Next() ([]byte, error) {
	for {
		line, err := r.r.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return nil, err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err != nil {
				return nil, err
			}
			continue
		}
		if !bytes.HasPrefix(line, []byte("data:")) {
			if err != nil {
				return nil, err
			}
			continue
		}

		payload := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
		return payload, nil
	}
}

// RawLineReader yields successive non-blank lines verbatim, with no
// "data:" framing. Ollama's /api/chat stream is newline-delimited JSON
// objects rather than SSE.
type RawLineReader struct {
	r *bufio.Reader
}

// NewRawLines wraps body in a RawLineReader.
func NewRawLines(body io.Reader) *RawLineReader {
	return &RawLineReader{r: bufio.NewReader(body)}
}

// Next returns the next non-blank line with surrounding whitespace
// stripped, or io.EOF when the stream ends cleanly.
func (r *RawLineReader) Next() ([]byte, error) {
	for {
		line, err := r.r.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return nil, err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err != nil {
				return nil, err
			}
			continue
		}
		return line, nil
	}
}
