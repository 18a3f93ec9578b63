package server

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
)

// Serve accepts connections on ln and runs a Session for each in its own
// goroutine. It never waits on a session.
//
// Serve returns nil once ctx is cancelled. Any accept error is fatal and is
// returned; ln is closed in both cases. Running sessions are not affected;
// use Shutdown to stop them.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.log.Info("listening", zap.Stringer("addr", ln.Addr()))
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.log.Debug("connection accepted", zap.Stringer("peer", conn.RemoteAddr()))

		sess := newSession(s, conn)
		s.add(sess)
		go s.handle(sess)
	}
}

// ListenAndServe binds addr over TCP and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}
