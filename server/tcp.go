package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"go.lsp.dev/jsonrpc2"
)

// Serve loads spec's snapshot and runs the service until ctx is canceled.
// With an Addr it listens on TCP; otherwise it serves one session on
// stdin/stdout.
func Serve(ctx context.Context, spec *Spec) error {
	s := New(spec)
	if s.Spec.Snapshot != "" {
		if err := s.Load(ctx, s.Spec.Snapshot); err != nil {
			return err
		}
	}
	if s.Spec.Addr == "" {
		return s.ServeStdio(ctx)
	}
	l, err := NewTCPListener(s.Spec.Addr, s)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	return l.Serve()
}

// ServeStdio runs a single session over stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	stream := jsonrpc2.NewStream(&stdioReadWriteCloser{read: os.Stdin, write: os.Stdout})
	conn := jsonrpc2.NewConn(stream)
	conn.Go(ctx, s.Handler())
	select {
	case <-conn.Done():
	case <-ctx.Done():
		conn.Close()
		<-conn.Done()
	}
	return nil
}

type stdioReadWriteCloser struct {
	read  io.Reader
	write io.Writer
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error)  { return s.read.Read(p) }
func (s *stdioReadWriteCloser) Write(p []byte) (int, error) { return s.write.Write(p) }
func (s *stdioReadWriteCloser) Close() error                { return nil }

// TCPListener accepts connections and runs one JSON-RPC session per
// connection.
type TCPListener struct {
	listener net.Listener
	server   *Server

	sessions   map[string]jsonrpc2.Conn
	sessionsMu sync.RWMutex
	sessionSeq atomic.Int64

	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewTCPListener creates a listener on addr.
func NewTCPListener(addr string, server *Server) (*TCPListener, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &TCPListener{
		listener: listener,
		server:   server,
		sessions: make(map[string]jsonrpc2.Conn),
		done:     make(chan struct{}),
	}, nil
}

// Addr returns the listener's network address.
func (l *TCPListener) Addr() net.Addr {
	return l.listener.Addr()
}

// Serve accepts connections until Close is called.
func (l *TCPListener) Serve() error {
	l.server.Spec.Log.Info("listener started", "addr", l.listener.Addr().String())
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if l.closed.Load() {
				return nil
			}
			l.server.Spec.Log.Error("accept error", "error", err)
			continue
		}
		l.wg.Add(1)
		go l.handleConnection(conn)
	}
}

func (l *TCPListener) handleConnection(conn net.Conn) {
	defer l.wg.Done()

	seq := l.sessionSeq.Add(1)
	sessionID := fmt.Sprintf("tcp-%d", seq)
	l.server.Spec.Log.Debug("new connection", "session", sessionID,
		"remote", conn.RemoteAddr().String())

	rpc := jsonrpc2.NewConn(jsonrpc2.NewStream(conn))
	l.sessionsMu.Lock()
	l.sessions[sessionID] = rpc
	l.sessionsMu.Unlock()

	rpc.Go(context.Background(), l.server.Handler())
	<-rpc.Done()
	if err := rpc.Err(); err != nil && !l.closed.Load() {
		l.server.Spec.Log.Error("session error", "session", sessionID, "error", err)
	}

	l.sessionsMu.Lock()
	delete(l.sessions, sessionID)
	l.sessionsMu.Unlock()
	l.server.Spec.Log.Debug("session ended", "session", sessionID)
}

// Close shuts down the listener and all sessions.
func (l *TCPListener) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	close(l.done)
	if err := l.listener.Close(); err != nil {
		l.server.Spec.Log.Error("error closing listener", "error", err)
	}
	l.sessionsMu.RLock()
	for _, rpc := range l.sessions {
		rpc.Close()
	}
	l.sessionsMu.RUnlock()
	l.wg.Wait()
	l.server.Spec.Log.Info("listener stopped")
	return nil
}

// SessionCount returns the number of active sessions.
func (l *TCPListener) SessionCount() int {
	l.sessionsMu.RLock()
	defer l.sessionsMu.RUnlock()
	return len(l.sessions)
}
