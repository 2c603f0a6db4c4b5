package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/dreamlink/dreamlinkd/internal/auth"
	"github.com/dreamlink/dreamlinkd/internal/config"
	"github.com/dreamlink/dreamlinkd/internal/content"
	"github.com/dreamlink/dreamlinkd/internal/dlc"
	"github.com/dreamlink/dreamlinkd/internal/dls"
	"github.com/dreamlink/dreamlinkd/internal/match"
	"github.com/dreamlink/dreamlinkd/internal/session"
	"github.com/dreamlink/dreamlinkd/internal/store"
	"github.com/dreamlink/dreamlinkd/internal/store/memory"
	"github.com/dreamlink/dreamlinkd/internal/store/postgres"
)

const ConfigPath = "config/dreamlinkd.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Configure slog
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	slog.Info("dreamlinkd starting")

	// Load config
	cfgPath := ConfigPath
	if p := os.Getenv("DREAMLINKD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded",
		"http", cfg.HTTP.Addr(),
		"match", cfg.Match.Addr(),
		"session_backend", cfg.Session.Backend,
		"database_backend", cfg.Database.Backend,
	)

	// Select the durable store
	var users store.UserRepository
	var players store.PlayerRepository
	switch cfg.Database.Backend {
	case "memory":
		s := memory.New()
		users, players = s, s
	case "postgres":
		if err := postgres.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")

		s, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer s.Close()
		users, players = s, s
		slog.Info("database connected")
	default:
		return fmt.Errorf("unknown database backend %q", cfg.Database.Backend)
	}

	// Select the session store
	ttl := time.Duration(cfg.Session.TTL) * time.Minute
	var sessions session.Store
	switch cfg.Session.Backend {
	case "memory":
		mem := session.NewMemory(session.WithTTL(ttl))
		go cleanSessions(ctx, mem)
		sessions = mem
	case "redis":
		rs, err := session.NewRedis(ctx, cfg.Session.RedisURL, ttl)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rs.Close()
		sessions = rs
		slog.Info("redis connected")
	default:
		return fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	// Load add-on content
	contentList, err := dlc.Load(cfg.Content.Directory)
	if err != nil {
		return fmt.Errorf("loading content: %w", err)
	}

	// Wire up the HTTP services
	router := mux.NewRouter()
	auth.NewHandler(users, sessions, cfg.AllowRegistrationThroughLogin).Register(router)
	content.NewHandler(cfg, players, sessions, contentList).Register(router)
	dls.NewHandler(sessions, contentList).Register(router)

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: router,
	}
	matchServer := match.NewServer(cfg.Match, users, sessions)

	// Run both servers in parallel
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting http server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		slog.Info("starting presence server")
		if err := matchServer.Run(gctx); err != nil {
			return fmt.Errorf("presence server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanSessions evicts expired tokens from the in-memory session store.
func cleanSessions(ctx context.Context, mem *session.Memory) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := mem.CleanExpired(); n > 0 {
				slog.Debug("evicted expired sessions", "count", n)
			}
		}
	}
}
