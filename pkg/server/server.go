// Package server runs the TCP side of the NFS service: the accept loop
// and the per-connection reader/writer tasks feeding the dispatch layer.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/quillfs/quillnfs/internal/adapter/nfs"
	"github.com/quillfs/quillnfs/internal/logger"
	"github.com/quillfs/quillnfs/internal/metrics"
	"github.com/quillfs/quillnfs/internal/protocol/rpc"
	"github.com/quillfs/quillnfs/pkg/vfs"
)

// Config holds the server's network and export settings.
type Config struct {
	// BindAddress is the interface to listen on ("" means all).
	BindAddress string

	// Port is the TCP port to listen on; 0 picks an ephemeral port.
	Port uint16

	// ExportName is the dirpath prefix MOUNT expects (e.g. "/export").
	ExportName string
}

// Server serves one export over NFSv3 on a single TCP port.
type Server struct {
	cfg         Config
	fs          vfs.FileSystem
	mountSignal chan<- bool
	tracker     *nfs.TransactionTracker
	metrics     *metrics.ServerMetrics

	mu        sync.Mutex
	listener  net.Listener
	localPort uint16
}

// Option customizes a Server.
type Option func(*Server)

// WithMountSignal wires a channel receiving true on MNT and false on
// UMNT/UMNTALL.
func WithMountSignal(ch chan<- bool) Option {
	return func(s *Server) { s.mountSignal = ch }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.ServerMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server for the given file system.
func New(cfg Config, fs vfs.FileSystem, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		fs:      fs,
		tracker: nfs.NewTransactionTracker(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds the TCP listener. Must be called before Serve; split out so
// callers (and tests) can learn the actual port when Port is 0.
func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.localPort = uint16(listener.Addr().(*net.TCPAddr).Port)
	s.mu.Unlock()

	logger.Info("Listening", "address", listener.Addr().String(), "export", s.cfg.ExportName)
	return nil
}

// LocalPort returns the bound port; valid after Listen.
func (s *Server) LocalPort() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localPort
}

// Serve accepts connections until the context is cancelled. Each
// connection gets a reader task and a writer task; each complete record
// is processed on its own task, so handlers for one connection run in
// parallel and replies are serialized in completion order by the writer.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		listener = s.listener
		s.mu.Unlock()
	}

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// handleConnection owns one client connection for its lifetime.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	connID := uuid.NewString()
	clientAddr := conn.RemoteAddr().String()

	s.metrics.ConnectionOpened()
	defer s.metrics.ConnectionClosed()

	logger.Info("Connection opened", "conn_id", connID, "client", clientAddr)
	defer logger.Info("Connection closed", "conn_id", connID, "client", clientAddr)

	// Tear the connection down when the server stops.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()

	cc := &nfs.ConnContext{
		LocalPort:   s.LocalPort(),
		ClientAddr:  clientAddr,
		FS:          s.fs,
		ExportName:  s.cfg.ExportName,
		MountSignal: s.mountSignal,
		Tracker:     s.tracker,
		Metrics:     s.metrics,
	}

	// The writer task serializes replies; handlers complete in any order.
	replies := make(chan []byte, 16)
	var writerDone sync.WaitGroup
	writerDone.Add(1)
	go func() {
		defer writerDone.Done()
		for reply := range replies {
			if err := rpc.WriteRecord(conn, reply); err != nil {
				logger.Debug("Write failed, dropping reply", "conn_id", connID, "error", err)
				cancel()
				return
			}
		}
	}()

	// The reader task reassembles records and spawns one handler task per
	// complete record.
	var inflight sync.WaitGroup
	for {
		record, err := rpc.ReadRecord(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && connCtx.Err() == nil {
				logger.Warn("Read failed", "conn_id", connID, "client", clientAddr, "error", err)
			}
			break
		}

		inflight.Add(1)
		go func(record []byte) {
			defer inflight.Done()

			reply, err := nfs.HandleRecord(connCtx, record, cc)
			if err != nil {
				logger.Error("Terminating connection", "conn_id", connID, "client", clientAddr, "error", err)
				cancel()
				return
			}
			if reply == nil {
				// Suppressed retransmission: no reply at all.
				return
			}

			select {
			case replies <- reply:
			case <-connCtx.Done():
				// Writer is gone; the reply is discarded.
			}
		}(record)
	}

	// Let in-flight handlers finish, then release the writer.
	inflight.Wait()
	close(replies)
	writerDone.Wait()
}
