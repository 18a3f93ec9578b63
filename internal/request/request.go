// Package request reads the single request head a client sends before a
// tunnel is opened and writes the status responses the gateway answers with.
package request

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxHeadSize caps the request line plus headers, in bytes.
const MaxHeadSize = 4096 * 4

// MethodConnect is the only method the gateway tunnels.
const MethodConnect = "CONNECT"

// Request is a parsed request line. Headers are read and discarded.
type Request struct {
	Method string
	Target string
	Proto  string
}

// ParseError is returned for request heads that are not valid HTTP/1.x.
// Response is what the client should be told before the connection closes.
type ParseError struct {
	Reason   string
	Response Response
}

func (e *ParseError) Error() string {
	return "malformed request: " + e.Reason
}

// ErrHeadTooLarge is wrapped by the ParseError for oversized heads.
var ErrHeadTooLarge = errors.New("request head too large")

// Is lets errors.Is match ErrHeadTooLarge.
func (e *ParseError) Is(target error) bool {
	return target == ErrHeadTooLarge && e.Response == RequestHeaderFieldsTooLarge
}

// NewReader returns a reader sized so that any single head line that fits
// MaxHeadSize can be read.
func NewReader(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, MaxHeadSize)
}

// Read parses one request line from r and discards the headers that follow it
// up to the blank line. Bytes after the head stay buffered in r.
func Read(r *bufio.Reader) (*Request, error) {
	var (
		req  *Request
		size int
	)
	for {
		raw, err := r.ReadSlice('\n')
		size += len(raw)
		if size > MaxHeadSize || err == bufio.ErrBufferFull {
			return nil, &ParseError{Reason: "head exceeds limit", Response: RequestHeaderFieldsTooLarge}
		}
		if err != nil {
			if err == io.EOF && (req != nil || len(raw) > 0) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		line := strings.TrimRight(string(raw), "\r\n")

		if req == nil {
			if line == "" {
				// Tolerate leading blank lines, as net/http does.
				continue
			}
			req, err = parseRequestLine(line)
			if err != nil {
				return nil, err
			}
			continue
		}
		if line == "" {
			return req, nil
		}
	}
}

func parseRequestLine(line string) (*Request, error) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return nil, &ParseError{Reason: fmt.Sprintf("bad request line %q", line), Response: BadRequest}
	}
	if !strings.HasPrefix(parts[2], "HTTP/1.") {
		return nil, &ParseError{Reason: fmt.Sprintf("unsupported protocol %q", parts[2]), Response: BadRequest}
	}
	return &Request{Method: parts[0], Target: parts[1], Proto: parts[2]}, nil
}
