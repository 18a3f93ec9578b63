package request

import (
	"fmt"
	"io"
)

// Response is a status the gateway can answer a request with.
type Response int

const (
	Ok Response = iota
	BadRequest
	Forbidden
	MethodNotAllowed
	RequestHeaderFieldsTooLarge
)

// StatusCode returns the HTTP status code for r.
func (r Response) StatusCode() int {
	switch r {
	case Ok:
		return 200
	case BadRequest:
		return 400
	case Forbidden:
		return 403
	case MethodNotAllowed:
		return 405
	case RequestHeaderFieldsTooLarge:
		return 431
	default:
		return 500
	}
}

func (r Response) String() string {
	switch r {
	case Ok:
		return "Connection Established"
	case BadRequest:
		return "Bad Request"
	case Forbidden:
		return "Forbidden"
	case MethodNotAllowed:
		return "Method Not Allowed"
	case RequestHeaderFieldsTooLarge:
		return "Request Header Fields Too Large"
	default:
		return "Internal Server Error"
	}
}

// Send writes the complete status response for r to w in a single write.
func Send(w io.Writer, r Response) error {
	msg := fmt.Sprintf("HTTP/1.1 %d %s\r\n", r.StatusCode(), r)
	switch r {
	case Ok:
	case MethodNotAllowed:
		msg += "Allow: CONNECT\r\nContent-Length: 0\r\nConnection: close\r\n"
	default:
		msg += "Content-Length: 0\r\nConnection: close\r\n"
	}
	msg += "\r\n"
	_, err := io.WriteString(w, msg)
	return err
}
