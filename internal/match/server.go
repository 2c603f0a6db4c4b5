package match

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/dreamlink/dreamlinkd/internal/config"
	"github.com/dreamlink/dreamlinkd/internal/session"
	"github.com/dreamlink/dreamlinkd/internal/store"
	"github.com/dreamlink/dreamlinkd/internal/wire"
)

// Server is the presence server the game connects to on port 29900.
type Server struct {
	cfg     config.MatchConfig
	handler *Handler

	listener net.Listener
	mu       sync.Mutex
}

// NewServer creates a presence server backed by the given stores.
func NewServer(cfg config.MatchConfig, users store.UserRepository, sessions session.Store) *Server {
	return &Server{
		cfg:     cfg,
		handler: NewHandler(users, sessions),
	}
}

// Addr returns the address the server is listening on, or nil before Run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close shuts the listener down.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve accepts connections from a ready listener. Split out from Run so
// tests can pass an ephemeral-port listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		slog.Info("presence server started", "address", ln.Addr())
		acceptLoop(ctx, &wg, s, ln)
	})

	wg.Wait()

	return nil
}

func acceptLoop(
	ctx context.Context,
	wg *sync.WaitGroup,
	srv *Server,
	ln net.Listener,
) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				slog.Error("Failed to accept new connection", "error", err)
				continue
			}
			wg.Go(func() {
				handleConnection(ctx, srv, conn)
			})
		}
	}
}

func handleConnection(ctx context.Context, srv *Server, netConn net.Conn) {
	done := make(chan struct{})
	defer close(done)
	defer netConn.Close()

	go func() {
		select {
		case <-ctx.Done():
			netConn.Close()
		case <-done:
		}
	}()

	c := newConn(netConn.RemoteAddr().String())
	slog.Info("presence connection opened", "conn", c.id, "client", c.remoteAddr)
	defer slog.Info("presence connection closed", "conn", c.id)

	codec := wire.EscForm{}
	if _, err := netConn.Write(codec.Encode(srv.handler.ChallengeMessage(c))); err != nil {
		slog.Warn("challenge write failed", "conn", c.id, "err", err)
		return
	}

	readTimeout := time.Duration(srv.cfg.ReadTimeout) * time.Second
	scanner := bufio.NewScanner(netConn)
	scanner.Split(wire.ScanMessages)

	for {
		if readTimeout > 0 {
			netConn.SetReadDeadline(time.Now().Add(readTimeout))
		}
		if !scanner.Scan() {
			break
		}

		reply, fatal := srv.handler.HandleMessage(ctx, c, scanner.Bytes())
		if reply != nil {
			if _, err := netConn.Write(codec.Encode(reply)); err != nil {
				slog.Warn("reply write failed", "conn", c.id, "err", err)
				return
			}
		}
		if fatal {
			return
		}
	}

	// Idle timeouts and the shutdown close are the normal ways out.
	if err := scanner.Err(); err != nil &&
		!errors.Is(err, net.ErrClosed) && !errors.Is(err, os.ErrDeadlineExceeded) {
		slog.Warn("presence connection error", "conn", c.id, "err", err)
	}
}
