package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/ayanrajpoot10/tlsgate/internal/request"
	"github.com/ayanrajpoot10/tlsgate/internal/tunnel"
)

// ErrHandshake marks connections refused because the TLS handshake failed.
var ErrHandshake = errors.New("tls handshake refused")

// ErrNoHalfClose is returned when the destination connection cannot shut down
// its write side on its own.
var ErrNoHalfClose = errors.New("destination connection does not support half-close")

// Session drives a single client connection from TLS handshake to tunnel
// completion. It owns the connection exclusively.
type Session struct {
	client net.Conn
	server *Server
	state  State
	log    *zap.Logger
}

func newSession(s *Server, conn net.Conn) *Session {
	return &Session{
		client: conn,
		server: s,
		state:  StateAccepted,
		log:    s.log.With(zap.String("session", conn.RemoteAddr().String())),
	}
}

// Close closes the client connection. Closing an already closed session is a
// no-op.
func (s *Session) Close() {
	_ = s.client.Close()
}

func (s *Session) transition(next State) {
	s.log.Debug("session state", zap.Stringer("from", s.state), zap.Stringer("to", next))
	s.state = next
}

// Run takes the connection through handshake, request dispatch, destination
// checks and the tunnel, and returns how it ended. The client connection is
// closed when Run returns.
func (s *Session) Run(ctx context.Context) Outcome {
	defer s.Close()

	s.transition(StateHandshaking)
	conn := tls.Server(s.client, s.server.tlsConfig)
	if err := conn.HandshakeContext(ctx); err != nil {
		return s.fail(fmt.Errorf("%w: %w", ErrHandshake, err))
	}

	s.transition(StateAwaitingRequest)
	reader := request.NewReader(conn)
	req, err := request.Read(reader)
	if err != nil {
		var perr *request.ParseError
		if errors.As(err, &perr) {
			// Best effort; the connection is dropped either way.
			_ = s.respondAndClose(conn, perr.Response)
		}
		return s.fail(fmt.Errorf("read request: %w", err))
	}
	s.log.Debug("request received", zap.String("method", req.Method), zap.String("target", req.Target))

	s.transition(StateDispatching)
	if req.Method != request.MethodConnect {
		if err := s.respondAndClose(conn, request.MethodNotAllowed); err != nil {
			return s.fail(err)
		}
		s.transition(StateRejected)
		return MethodRejected{Method: req.Method}
	}
	return s.connect(ctx, &clientStream{Conn: conn, reader: reader}, req.Target)
}

// connect resolves and checks target, dials it, and runs the tunnel.
func (s *Session) connect(ctx context.Context, client *clientStream, target string) Outcome {
	destAddr, err := s.server.resolver.Resolve(ctx, target)
	if err != nil {
		s.log.Debug("resolve failed", zap.String("target", target), zap.Error(err))
		return s.reject(client.Conn, target, request.BadRequest)
	}
	if !s.server.validator.Matches(target) {
		return s.reject(client.Conn, target, request.Forbidden)
	}

	conn, err := s.server.dialer.DialContext(ctx, "tcp", destAddr.String())
	if err != nil {
		return s.fail(fmt.Errorf("connect %s: %w", destAddr, err))
	}
	dest, ok := conn.(tunnel.Stream)
	if !ok {
		_ = conn.Close()
		return s.fail(ErrNoHalfClose)
	}

	if err := request.Send(client, request.Ok); err != nil {
		_ = dest.Close()
		return s.fail(fmt.Errorf("send response: %w", err))
	}

	s.transition(StateTunneling)
	s.log.Debug("tunnel established", zap.Stringer("dest", conn.RemoteAddr()))
	t := tunnel.New(
		tunnel.Endpoint{Name: s.client.RemoteAddr().String(), Conn: client},
		tunnel.Endpoint{Name: conn.RemoteAddr().String(), Conn: dest},
		s.log,
	)
	stats, err := t.Start(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("tunnel: %w", err))
	}

	s.transition(StateCompleted)
	return TunnelCompleted{Client: s.client.RemoteAddr(), Dest: conn.RemoteAddr(), Stats: stats}
}

func (s *Session) reject(conn *tls.Conn, target string, resp request.Response) Outcome {
	if err := s.respondAndClose(conn, resp); err != nil {
		return s.fail(err)
	}
	s.transition(StateRejected)
	return DestinationRejected{Target: target, Response: resp}
}

// respondAndClose sends resp and shuts down the write side of conn.
func (s *Session) respondAndClose(conn *tls.Conn, resp request.Response) error {
	if err := request.Send(conn, resp); err != nil {
		return fmt.Errorf("send response: %w", err)
	}
	if err := conn.CloseWrite(); err != nil {
		return fmt.Errorf("half-close: %w", err)
	}
	return nil
}

func (s *Session) fail(err error) Outcome {
	stage := s.state
	s.transition(StateFailed)
	return Failed{Stage: stage, Err: err}
}

// clientStream reads through the buffered request reader so tunnel bytes the
// client sent right after its request head are not lost.
type clientStream struct {
	*tls.Conn
	reader *bufio.Reader
}

func (c *clientStream) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}
