package smtp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OliverSchlueter/goutils/idgen"
	"github.com/OliverSchlueter/goutils/sloki"
	"github.com/OliverSchlueter/smtpevent/internal/metrics"
)

var ErrServerClosed = errors.New("smtp: server closed")

const readBufferSize = 4096

type Server struct {
	hostname    string
	port        string
	idleTimeout time.Duration
	sink        MessageSink
	metrics     *metrics.Metrics

	listener net.Listener
	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	closed   atomic.Bool
}

type Configuration struct {
	Hostname    string
	Port        string
	IdleTimeout time.Duration
	Sink        MessageSink
	Metrics     *metrics.Metrics
}

func NewServer(config Configuration) *Server {
	if config.Hostname == "" {
		config.Hostname = "localhost"
	}
	if config.Port == "" {
		config.Port = "25"
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = 2 * time.Minute
	}

	return &Server{
		hostname:    config.Hostname,
		port:        config.Port,
		idleTimeout: config.IdleTimeout,
		sink:        config.Sink,
		metrics:     config.Metrics,
		conns:       make(map[net.Conn]struct{}),
	}
}

// Start listens on the configured port and serves until Shutdown.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", s.port, err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener, one goroutine and Session each.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	defer listener.Close()

	if s.closed.Load() {
		return ErrServerClosed
	}

	slog.Info("SMTP server started", "hostname", s.hostname, "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return ErrServerClosed
			}
			slog.Warn("Failed to accept connection", sloki.WrapError(err))
			continue
		}

		// Add must not race with the Wait in Shutdown
		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			_ = conn.Close()
			return ErrServerClosed
		}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handle(conn)
	}
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting connections and waits for open sessions to end.
// Sessions still open when ctx is done are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed.Store(true)
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.mu.Unlock()
		return ctx.Err()
	}
}

func (s *Server) track(conn net.Conn, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if open {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	s.track(conn, true)
	defer s.track(conn, false)
	s.metrics.ConnectionOpened()

	id := idgen.GenerateID(12)
	peer := peerAddress(conn.RemoteAddr())

	slog.Debug("New connection established", "session_id", id, "remote_addr", conn.RemoteAddr().String(), "protocol", conn.RemoteAddr().Network())

	session := NewSession(SessionConfig{
		ID:       id,
		Hostname: s.hostname,
		Peer:     peer,
		Writer:   conn,
		Sink:     s.sink,
		Metrics:  s.metrics,
	})

	if err := session.Greet(); err != nil {
		slog.Warn("Failed to send greeting", "session_id", id, sloki.WrapError(err))
		return
	}

	buf := make([]byte, readBufferSize)
	for !session.Closed() {
		if err := conn.SetReadDeadline(time.Now().Add(s.idleTimeout)); err != nil {
			slog.Error("Failed to set connection deadline", "session_id", id, sloki.WrapError(err))
			return
		}

		n, err := conn.Read(buf)
		if n > 0 {
			if ferr := session.Feed(buf[:n]); ferr != nil {
				slog.Warn("Failed to write to connection", "session_id", id, sloki.WrapError(ferr))
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				slog.Debug("Connection closed by client", "session_id", id)
			} else {
				slog.Warn("Failed to read from connection", "session_id", id, sloki.WrapError(err))
			}
			return
		}
	}

	slog.Debug("Connection closed", "session_id", id, "remote_addr", peer)
}

// peerAddress returns the IP part of addr, or addr as text when it has none.
func peerAddress(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
