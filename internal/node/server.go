// Package node accepts connections and runs each one through resolve and pump.
package node

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"dev.c0redev.nfchain/internal/chain"
	"dev.c0redev.nfchain/internal/fault"
	"dev.c0redev.nfchain/internal/forward"
	"dev.c0redev.nfchain/internal/socks5"
	"dev.c0redev.nfchain/internal/store"
	"dev.c0redev.nfchain/internal/transport"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger (default nop).
func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.log = l } }

// WithDialer replaces the transport dialer.
func WithDialer(d chain.Dialer) Option { return func(s *Server) { s.dialer = d } }

// WithLedger records every session in db.
func WithLedger(db *store.DB) Option { return func(s *Server) { s.ledger = db } }

// Server: one node. Safe for concurrent Serve calls on several listeners.
type Server struct {
	cfg      *chain.Config
	log      *zap.Logger
	dialer   chain.Dialer
	ledger   *store.DB
	resolver *chain.Resolver

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closed    bool
	listeners map[net.Listener]struct{}
	conns     map[net.Conn]struct{}
	wg        sync.WaitGroup
}

// New builds a server for cfg; cfg must not change afterwards.
func New(cfg *chain.Config, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		log:       zap.NewNop(),
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[net.Conn]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.dialer == nil {
		s.dialer = transport.NewDialer(cfg.DialTimeout)
	}
	s.resolver = chain.NewResolver(cfg, s.dialer, s.log)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Serve accepts on ln until it is closed. Returns nil after Close.
func (s *Server) Serve(ln net.Listener) error {
	if !s.track(ln) {
		ln.Close()
		return nil
	}
	defer s.untrack(ln)
	s.log.Info("serving", zap.Stringer("addr", ln.Addr()), zap.Stringer("mode", s.cfg.Mode()))
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warn("accept", zap.Error(err))
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return errors.Wrap(err, "accept")
		}
		if !s.addConn(conn) {
			conn.Close()
			return nil
		}
		go func() {
			defer s.wg.Done()
			defer s.removeConn(conn)
			s.handle(conn)
		}()
	}
}

// Close stops all listeners, drops open connections and waits for handlers.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancel()
	for ln := range s.listeners {
		ln.Close()
	}
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrack(ln net.Listener) {
	s.mu.Lock()
	delete(s.listeners, ln)
	s.mu.Unlock()
}

func (s *Server) addConn(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) removeConn(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	mode := s.cfg.Mode()
	sess := &store.Session{
		SessionID:  store.NewSessionID(),
		Mode:       mode.String(),
		RemoteAddr: conn.RemoteAddr().String(),
		StartedAt:  time.Now(),
	}
	log := s.log.With(zap.String("session", sess.SessionID), zap.String("remote", sess.RemoteAddr))

	var target string
	entry, isEntry := mode.(chain.Entry)
	if isEntry && entry.Socks {
		t, err := socks5.Accept(conn)
		if err != nil {
			s.finish(log, sess, err)
			return
		}
		target = t
	}
	sess.NextHop = firstHop(mode, target)

	rt, err := s.resolver.Resolve(s.ctx, conn, target)
	if isEntry && entry.Socks {
		rep := byte(socks5.Succeeded)
		if err != nil {
			rep = socks5.HostUnreachable
		}
		if rerr := socks5.Reply(conn, rep); rerr != nil && err == nil {
			rt.Outbound.Close()
			err = fault.IO(rerr, "socks reply")
			rt = nil
		}
	}
	if err != nil {
		s.finish(log, sess, err)
		return
	}
	defer rt.Outbound.Close()
	sess.Shape = rt.Shape.String()
	sess.NextHop = rt.Next
	sess.Target = rt.Target
	log.Debug("route", zap.Stringer("shape", rt.Shape), zap.String("next", rt.Next), zap.String("target", rt.Target))

	st, err := s.pump(rt)
	sess.BytesIn, sess.BytesOut = st.AtoB, st.BtoA
	s.finish(log, sess, err)
}

func (s *Server) pump(rt *chain.Route) (forward.Stats, error) {
	switch rt.Shape {
	case chain.PlainToPlain:
		return forward.PlainToPlain(rt.Inbound, rt.Outbound)
	case chain.PlainToFramed:
		return forward.PlainToFramed(rt.Inbound, rt.Outbound, s.cfg.Cipher)
	case chain.FramedToPlain:
		return forward.FramedToPlain(rt.Inbound, rt.Outbound, s.cfg.Cipher)
	default:
		return forward.FramedToFramed(rt.Inbound, rt.Outbound)
	}
}

// finish logs the session result and writes it to the ledger.
func (s *Server) finish(log *zap.Logger, sess *store.Session, err error) {
	sess.EndedAt = time.Now()
	sess.Outcome = store.OutcomeOK
	fields := []zap.Field{
		zap.String("next", sess.NextHop),
		zap.Int64("in", sess.BytesIn),
		zap.Int64("out", sess.BytesOut),
		zap.Duration("took", sess.EndedAt.Sub(sess.StartedAt)),
	}
	switch kind := fault.KindOf(err); {
	case err == nil:
		log.Debug("session closed", fields...)
	case kind == fault.KindIO:
		sess.Outcome, sess.Error = kind.String(), err.Error()
		log.Warn("session io", append(fields, zap.Error(err))...)
	default:
		sess.Outcome, sess.Error = kind.String(), err.Error()
		log.Error("session failed", append(fields, zap.Stringer("kind", kind), zap.Error(err))...)
	}
	if s.ledger == nil {
		return
	}
	if _, lerr := s.ledger.Record(sess); lerr != nil {
		log.Warn("ledger", zap.Error(lerr))
	}
}

func firstHop(m chain.Mode, target string) string {
	switch m := m.(type) {
	case chain.StaticRelay:
		return m.Next[0]
	case chain.Entry:
		if len(m.Link) > 0 {
			return m.Link[0]
		}
		return target
	}
	return ""
}
