package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
	"tailscale.com/tsnet"

	"github.com/claude/workoutsync/internal/client"
	"github.com/claude/workoutsync/internal/config"
	"github.com/claude/workoutsync/internal/engine"
	"github.com/claude/workoutsync/internal/history"
	"github.com/claude/workoutsync/internal/mcp"
	"github.com/claude/workoutsync/internal/metrics"
	"github.com/claude/workoutsync/internal/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var _ engine.Service = (*client.Client)(nil)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	mcpMode := flag.Bool("mcp", false, "serve MCP over stdio instead of the HTTP control API")
	date := flag.String("date", "", "workout date to load (YYYY-MM-DD), defaults to today")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("workoutsync", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol in stdio mode.
	var logOut io.Writer = os.Stdout
	if *mcpMode {
		logOut = os.Stderr
	}
	log := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	log.Info("workoutsync starting", "version", Version, "service", cfg.Service.BaseURL)

	if err := run(cfg, *mcpMode, *date, log); err != nil {
		log.Error("workoutsync failed", "error", err)
		os.Exit(1)
	}
	log.Info("workoutsync stopped")
}

func run(cfg *config.Config, mcpMode bool, date string, log *slog.Logger) error {
	metrics.Init()

	svc := client.New(cfg.Service.BaseURL,
		client.WithToken(cfg.Service.Token),
		client.WithHTTPClient(&http.Client{Timeout: cfg.Service.Timeout()}),
		client.WithRateLimit(cfg.Service.RequestsPerSecond, cfg.Service.Burst),
	)

	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithDebounce(cfg.Engine.Debounce()),
	}

	var hist *history.Cache
	if cfg.History.Dir != "" {
		var err error
		hist, err = history.Open(cfg.History.Dir, svc, log)
		if err != nil {
			return fmt.Errorf("opening history cache: %w", err)
		}
		defer hist.Close()
		opts = append(opts, engine.WithRecorder(hist))
		log.Info("history cache enabled", "dir", cfg.History.Dir)
	}

	eng := engine.New(svc, opts...)
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if date == "" {
		date = time.Now().Format(time.DateOnly)
	}
	if err := eng.Load(ctx, date); err != nil {
		// The session can be reloaded through the API once the service is back.
		log.Warn("initial load failed", "date", date, "error", err)
	}

	// Pending field edits are written before exit instead of being dropped.
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := eng.Flush(flushCtx); err != nil {
			log.Error("final save failed", "error", err)
		}
	}()

	if mcpMode {
		return serveMCP(ctx, eng, hist, log)
	}
	return serveHTTP(ctx, cfg, eng, hist, log)
}

func serveMCP(ctx context.Context, eng *engine.Engine, hist *history.Cache, log *slog.Logger) error {
	var h mcp.History
	if hist != nil {
		h = hist
	}
	s := mcp.New(eng, h, Version, log)

	stdio := mcpserver.NewStdioServer(s)
	log.Info("mcp stdio server starting")
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp stdio: %w", err)
	}
	return nil
}

func serveHTTP(ctx context.Context, cfg *config.Config, eng *engine.Engine, hist *history.Cache, log *slog.Logger) error {
	var h server.History
	if hist != nil {
		h = hist
	}
	srv := server.New(eng, h, cfg.Control.APIKey, log)

	// tsnet or plain TCP listener
	var listener net.Listener
	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			return fmt.Errorf("tsnet start: %w", err)
		}
		defer tsServer.Close()

		var err error
		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			return fmt.Errorf("tsnet listen: %w", err)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := cfg.Control.Addr()
		var err error
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		log.Info("control api starting", "addr", addr)
	}

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		// Cancels open event streams on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
