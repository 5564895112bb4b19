// Package server implements the TCP connection layer: admission control,
// the connected-client registry, and the per-connection request/response
// loop. Accepts connections on per-connection goroutines, draining them
// with a WaitGroup against a context-cancel race on Accept.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/ahnlich/ahnlich-db/internal/executor"
	"github.com/ahnlich/ahnlich-db/internal/protocol"
	"github.com/ahnlich/ahnlich-db/internal/wire"
)

// Config controls listener address and admission.
type Config struct {
	Host          string
	Port          int
	MaximumClients uint64
}

// Server accepts connections, enforces the client cap, and drives each
// connection's read-decode-execute-encode-write loop until the peer
// closes or the server is cancelled.
type Server struct {
	cfg      Config
	executor *executor.Executor
	clients  *ClientRegistry
	logger   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup

	shutdownOnce sync.Once
	cancel       context.CancelFunc
}

// New constructs a Server bound to the given config and executor.
func New(cfg Config, exec *executor.Executor, clients *ClientRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, executor: exec, clients: clients, logger: logger}
}

// Addr returns the bound listener address. Valid only after
// ListenAndServe has started listening (useful when Port is 0).
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe binds the listener and serves connections until ctx is
// cancelled or RequestShutdown is called. It blocks until the listener
// has fully drained.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("bind listener: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("server listening", slog.String("addr", ln.Addr().String()))

	go func() {
		<-runCtx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if runCtx.Err() != nil {
				break
			}
			s.logger.Warn("accept error", slog.String("error", err.Error()))
			break
		}

		if s.clients.Count() >= s.cfg.MaximumClients {
			s.logger.Warn("rejecting connection: client cap reached", slog.String("remote", conn.RemoteAddr().String()))
			_ = wire.WriteFrame(conn, mustEncode(protocol.ResultBatch{
				protocol.Error("connection refused: maximum clients reached"),
			}))
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(runCtx, conn)
		}()
	}

	s.wg.Wait()
	return nil
}

// RequestShutdown triggers graceful shutdown: the listener stops
// accepting, in-flight connections finish their current request, and
// ListenAndServe returns once drained.
func (s *Server) RequestShutdown(reason string) {
	s.shutdownOnce.Do(func() {
		s.logger.Info("shutdown requested", slog.String("reason", reason))
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	addr := conn.RemoteAddr().String()
	s.clients.Register(addr)
	defer func() {
		s.clients.Unregister(addr)
		conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, payload, err := wire.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.writeFramingError(conn, err)
			}
			return
		}

		var batch protocol.Batch
		if err := wire.Decode(payload, &batch); err != nil {
			s.writeFramingError(conn, err)
			return
		}

		results := s.executor.Execute(ctx, batch)

		encoded, err := wire.Encode(results)
		if err != nil {
			s.logger.Error("encode response batch", slog.String("error", err.Error()))
			return
		}
		if err := wire.WriteFrame(conn, encoded); err != nil {
			return
		}

		for _, q := range batch {
			if _, ok := q.(protocol.Close); ok {
				return
			}
		}
	}
}

func (s *Server) writeFramingError(conn net.Conn, cause error) {
	msg := "framing error"
	if cause != nil {
		msg = cause.Error()
	}
	encoded, err := wire.Encode(protocol.ResultBatch{protocol.Error(msg)})
	if err != nil {
		return
	}
	_ = wire.WriteFrame(conn, encoded)
}

func mustEncode(v any) []byte {
	b, err := wire.Encode(v)
	if err != nil {
		return nil
	}
	return b
}
