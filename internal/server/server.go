package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ayanrajpoot10/tlsgate/internal/policy"
)

// Options configures a Server. TLSConfig and Validator are required and are
// shared read-only by every session.
type Options struct {
	TLSConfig *tls.Config
	Validator *policy.Validator

	// Resolver defaults to NetResolver with the default net.Resolver.
	Resolver Resolver
	// Dialer defaults to a zero net.Dialer.
	Dialer Dialer
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// OnOutcome receives every session's outcome. When nil, outcomes are
	// logged.
	OnOutcome func(client net.Addr, outcome Outcome)
}

// Server accepts TLS clients and runs a Session for each of them.
type Server struct {
	tlsConfig *tls.Config
	validator *policy.Validator
	resolver  Resolver
	dialer    Dialer
	log       *zap.Logger
	onOutcome func(net.Addr, Outcome)

	ctx      context.Context
	cancel   context.CancelFunc
	sessions sync.Map // map[*Session]struct{}
	active   atomic.Int32
	wg       sync.WaitGroup
}

// New constructs a Server from opts.
func New(opts Options) (*Server, error) {
	if opts.TLSConfig == nil {
		return nil, errors.New("server: TLS config is required")
	}
	if opts.Validator == nil {
		return nil, errors.New("server: destination validator is required")
	}

	s := &Server{
		tlsConfig: opts.TLSConfig,
		validator: opts.Validator,
		resolver:  opts.Resolver,
		dialer:    opts.Dialer,
		log:       opts.Logger,
		onOutcome: opts.OnOutcome,
	}
	if s.resolver == nil {
		s.resolver = NetResolver{}
	}
	if s.dialer == nil {
		s.dialer = &net.Dialer{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.onOutcome == nil {
		s.onOutcome = s.logOutcome
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// Active returns the number of sessions currently running.
func (s *Server) Active() int {
	return int(s.active.Load())
}

// add registers a new session with the server.
func (s *Server) add(sess *Session) {
	s.sessions.Store(sess, struct{}{})
	s.wg.Add(1)
	n := s.active.Add(1)
	s.log.Debug("session added", zap.Int32("active", n))
}

// remove unregisters a session from the server.
func (s *Server) remove(sess *Session) {
	s.sessions.Delete(sess)
	n := s.active.Add(-1)
	s.wg.Done()
	s.log.Debug("session removed", zap.Int32("active", n))
}

// Shutdown closes every active session and waits for them to finish. Call it
// once Serve has returned.
func (s *Server) Shutdown() {
	s.log.Info("closing all active sessions", zap.Int("active", s.Active()))
	s.cancel()
	s.sessions.Range(func(key, _ any) bool {
		if sess, ok := key.(*Session); ok {
			sess.Close()
		}
		return true
	})
	s.wg.Wait()
	s.log.Info("all sessions closed")
}

// handle runs sess to completion and reports its outcome. A panic inside the
// session is reported as a Failed outcome instead of crashing the server.
func (s *Server) handle(sess *Session) {
	defer s.remove(sess)

	outcome := s.run(sess)
	s.onOutcome(sess.client.RemoteAddr(), outcome)
}

func (s *Server) run(sess *Session) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			sess.Close()
			outcome = Failed{Stage: sess.state, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return sess.Run(s.ctx)
}

func (s *Server) logOutcome(client net.Addr, outcome Outcome) {
	log := s.log.With(zap.Stringer("session", client))
	switch o := outcome.(type) {
	case MethodRejected:
		log.Info("method rejected", zap.String("method", o.Method))
	case DestinationRejected:
		log.Info("destination rejected",
			zap.String("target", o.Target),
			zap.Int("status", o.Response.StatusCode()))
	case TunnelCompleted:
		log.Info("tunnel completed",
			zap.Stringer("dest", o.Dest),
			zap.Int64("client_to_dest", o.Stats.ClientToDest),
			zap.Int64("dest_to_client", o.Stats.DestToClient))
	case Failed:
		log.Warn("connection failed", zap.Stringer("stage", o.Stage), zap.Error(o.Err))
	}
	log.Info("connection ended")
}
