package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/andy6609/roomchat/internal/eventlog"
)

const serverFullMessage = "Server is full. Try again later."

type Options struct {
	Addr           string
	MaxConnections int // 0 means unlimited
	OutboundBuffer int
	RegistryBuffer int
	MaxLineBytes   int
	Logger         *slog.Logger
	Journal        eventlog.Sink
}

type Server struct {
	addr      string
	logger    *slog.Logger
	journal   eventlog.Sink
	reg       *Registry
	slots     chan struct{}
	outBuffer int
	maxLine   int

	mu       sync.Mutex
	listener net.Listener
	conns    map[Conn]struct{}
	started  bool
	stopped  bool
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	journal := opts.Journal
	if journal == nil {
		journal = eventlog.Discard
	}
	s := &Server{
		addr:      opts.Addr,
		logger:    logger,
		journal:   journal,
		reg:       NewRegistry(opts.RegistryBuffer, logger, journal),
		outBuffer: opts.OutboundBuffer,
		maxLine:   opts.MaxLineBytes,
		conns:     make(map[Conn]struct{}),
	}
	if opts.MaxConnections > 0 {
		s.slots = make(chan struct{}, opts.MaxConnections)
	}
	return s
}

func (s *Server) Registry() *Registry {
	return s.reg
}

// Start binds the listener and launches the registry and accept loop. A bind
// failure is returned wrapped in ErrBind and is not retried.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.logger.Error("cannot bind listener", "addr", s.addr, "error", err)
		journal(s.journal, s.logger, fmt.Sprintf("A server is already running on %s.", s.addr))
		return fmt.Errorf("%w: %w", ErrBind, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.started = true
	s.mu.Unlock()

	go s.reg.Run()
	go s.acceptLoop(ln)

	s.logger.Info("server started", "addr", ln.Addr().String())
	journal(s.journal, s.logger, "Server started.")
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every open connection, including sessions
// still waiting for a nickname. It is safe to call more than once and
// before Start.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	if s.listener != nil {
		s.listener.Close()
	}
	conns := make([]Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	s.logger.Info("shutting down", "connections", len(conns))
	for _, conn := range conns {
		_ = conn.Close()
	}

	s.reg.Stop()
	if started {
		s.reg.Wait()
	}

	journal(s.journal, s.logger, "Server stopped.")
	s.logger.Info("shutdown complete")
}

// ServeConn runs a session on conn in the calling goroutine, or turns the
// connection away when the server is at capacity.
func (s *Server) ServeConn(conn Conn) {
	if !s.acquire() {
		RejectedConnections.Inc()
		s.logger.Warn("connection rejected", "addr", conn.RemoteAddr(), "reason", "server full")
		_ = conn.WriteRecord(serverFullMessage)
		_ = conn.Close()
		return
	}
	defer s.release()

	if !s.track(conn) {
		_ = conn.Close()
		return
	}
	defer s.untrack(conn)

	HandleSession(NewClient(conn, s.outBuffer), s.reg)
}

// track reports false once the server is stopping.
func (s *Server) track(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) acquire() bool {
	if s.slots == nil {
		return true
	}
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Server) release() {
	if s.slots != nil {
		<-s.slots
	}
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		go s.ServeConn(NewLineConn(conn, s.maxLine))
	}
}
