package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/mbproxy/internal/logging"
	"github.com/muurk/mbproxy/internal/mode"
)

// DefaultBufferSize comfortably exceeds the largest Modbus/TCP ADU (260 bytes).
const DefaultBufferSize = 4096

// Config holds the relay configuration
type Config struct {
	ListenAddr  string        // e.g. ":5502"
	TargetAddr  string        // upstream Modbus server, e.g. "172.20.0.10:502"
	DialTimeout time.Duration // per-attempt upstream dial timeout (0 = none)
	DialRetries int           // extra upstream dial attempts after the first
	BufferSize  int           // read chunk size (0 = DefaultBufferSize)
	AnalysisDir string        // directory for intercepted frame logs (empty = disabled)
}

// Server accepts client connections and relays each one to its own
// upstream connection, passing every response through the interceptor.
type Server struct {
	config      *Config
	interceptor *Interceptor
	metrics     *Metrics
	listener    net.Listener
	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]*session
	closing     atomic.Bool
}

// session is one client connection and its upstream peer.
type session struct {
	id       string
	client   net.Conn
	upstream net.Conn
}

// New creates a new Server instance
func New(config *Config, controller *mode.Controller) (*Server, error) {
	if config.TargetAddr == "" {
		return nil, errors.New("target address is required")
	}
	if controller == nil {
		return nil, errors.New("mode controller is required")
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBufferSize
	}

	metrics := NewMetrics()
	return &Server{
		config:      config,
		interceptor: NewInterceptor(controller, metrics, config.AnalysisDir),
		metrics:     metrics,
		activeConns: make(map[string]*session),
	}, nil
}

// Listen binds the listening socket. Serve calls it when needed.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr, err)
	}
	s.listener = listener

	logging.Info("MITM proxy listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("target", s.config.TargetAddr),
	)
	return nil
}

// Addr returns the bound listening address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Metrics returns the relay counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Serve runs the accept loop until ctx is cancelled or Shutdown is called.
// Accept failures are logged and do not stop the loop.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		s.closing.Store(true)
		_ = s.listener.Close()
	})
	defer stop()

	var tempDelay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else if tempDelay *= 2; tempDelay > time.Second {
				tempDelay = time.Second
			}
			logging.Error("Failed to accept connection",
				zap.Error(err),
				zap.Duration("retry_in", tempDelay),
			)
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// handleConnection dials the upstream for a new client and relays until
// either side closes.
func (s *Server) handleConnection(ctx context.Context, client net.Conn) {
	sess := &session{
		id:     uuid.NewString()[:8],
		client: client,
	}
	remoteAddr := client.RemoteAddr().String()

	s.mu.Lock()
	s.activeConns[sess.id] = sess
	s.mu.Unlock()
	s.metrics.SessionOpened()

	defer func() {
		if err := sess.close(); err != nil && !isHarmless(err) {
			logging.Debug("Error closing session", zap.String("session", sess.id), zap.Error(err))
		}
		s.mu.Lock()
		delete(s.activeConns, sess.id)
		s.mu.Unlock()
		s.metrics.SessionClosed()
		logging.LogConnection(sess.id, remoteAddr, "connection_closed")
	}()

	logging.LogConnection(sess.id, remoteAddr, "connection_accepted")

	upstream, err := s.dialUpstream(ctx)
	if err != nil {
		s.metrics.UpstreamFailed()
		logging.Error("Failed to connect to upstream",
			zap.String("session", sess.id),
			zap.String("target", s.config.TargetAddr),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	sess.upstream = upstream
	closing := s.closing.Load()
	s.mu.Unlock()
	if closing {
		return
	}

	logging.LogConnection(sess.id, upstream.RemoteAddr().String(), "upstream_connected")

	if err := s.relay(sess); err != nil && !isHarmless(err) {
		logging.Info("Session ended with error",
			zap.String("session", sess.id),
			zap.Error(err),
		)
	}
}

// relay pumps request then response, strictly alternating, until a read
// returns no data or fails.
func (s *Server) relay(sess *session) error {
	reqBuf := make([]byte, s.config.BufferSize)
	respBuf := make([]byte, s.config.BufferSize)

	for {
		n, err := sess.client.Read(reqBuf)
		if n > 0 {
			logging.LogRawBytes("Request", reqBuf[:n])
			if _, werr := sess.upstream.Write(reqBuf[:n]); werr != nil {
				return fmt.Errorf("write upstream: %w", werr)
			}
		}
		if err != nil {
			return fmt.Errorf("read client: %w", err)
		}
		if n == 0 {
			return nil
		}

		n, err = sess.upstream.Read(respBuf)
		if n > 0 {
			out := s.interceptor.Process(sess.id, respBuf[:n])
			if _, werr := sess.client.Write(out); werr != nil {
				return fmt.Errorf("write client: %w", werr)
			}
		}
		if err != nil {
			return fmt.Errorf("read upstream: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
}

// dialUpstream connects to the target with exponential backoff.
func (s *Server) dialUpstream(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: s.config.DialTimeout}

	var conn net.Conn
	attempt := 0
	op := func() error {
		attempt++
		c, err := dialer.DialContext(ctx, "tcp", s.config.TargetAddr)
		if err != nil {
			logging.Warn("Upstream dial failed",
				zap.String("target", s.config.TargetAddr),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		conn = c
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 2 * time.Second

	retries := s.config.DialRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx)

	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return conn, nil
}

func (sess *session) close() error {
	err := sess.client.Close()
	if sess.upstream != nil {
		err = multierr.Append(err, sess.upstream.Close())
	}
	return err
}

// Shutdown stops accepting connections, closes every active session and
// waits for the session goroutines to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down proxy...")
	s.closing.Store(true)

	var err error
	if s.listener != nil {
		if cerr := s.listener.Close(); cerr != nil && !isHarmless(cerr) {
			err = multierr.Append(err, cerr)
		}
	}

	s.mu.Lock()
	for id, sess := range s.activeConns {
		logging.Info("Closing active session", zap.String("session", id))
		if cerr := sess.close(); cerr != nil && !isHarmless(cerr) {
			err = multierr.Append(err, cerr)
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All sessions closed")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
		err = multierr.Append(err, ctx.Err())
	}

	return err
}

// ActiveSessions returns the number of open sessions
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

// isHarmless reports errors expected when a peer or Shutdown closes a socket.
func isHarmless(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
