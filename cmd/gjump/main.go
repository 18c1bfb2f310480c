// CLAUDE:SUMMARY CLI entry point for gjump: watches a chat page, captures submitted queries, serves the jump panel.
// Command gjump watches a live chat page, keeps a log of the queries sent
// from it and lets a panel jump back to any of them.
//
// Usage:
//
//	gjump -config gjump.yaml                      # everything from YAML
//	gjump -url https://chat.example/c/1           # quick start, sqlite store in ./gjump.db
//	gjump -url https://chat.example -mcp stdio    # serve MCP tools on stdin/stdout
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/gjump/jumplog"
)

func main() {
	configPath := flag.String("config", "", "path to gjump.yaml config file")
	pageURL := flag.String("url", "", "chat page URL (overrides config)")
	remote := flag.String("remote", os.Getenv("GJUMP_REMOTE"), "DevTools WebSocket URL of a running Chrome")
	addr := flag.String("addr", "", "panel HTTP listen address (overrides config), e.g. 127.0.0.1:7777")
	mcpMode := flag.String("mcp", "", "MCP transport: stdio (HTTP /mcp is always mounted)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(*configPath, *pageURL, *remote, *addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "usage: gjump -config <file> | -url <url> [-addr host:port] [-mcp stdio]")
		os.Exit(2)
	}

	if err := run(ctx, logger, cfg, *mcpMode); err != nil {
		logger.Error("gjump: fatal", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path, pageURL, remote, addr string) (*jumplog.Config, error) {
	cfg := jumplog.DefaultConfig()
	if path != "" {
		loaded, err := jumplog.ReadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if pageURL != "" {
		cfg.Browser.URL = pageURL
	}
	if remote != "" {
		cfg.Browser.Remote = remote
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}
	if cfg.HTTP.Addr == "" && path == "" {
		cfg.HTTP.Addr = "127.0.0.1:7777"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, logger *slog.Logger, cfg *jumplog.Config, mcpMode string) error {
	sinks := jumplog.SinksFromConfig(cfg, logger)
	if mcpMode == "stdio" {
		// stdout belongs to the MCP transport.
		sinks = nil
	}

	svc, err := jumplog.New(ctx, cfg, logger, sinks...)
	if err != nil {
		return err
	}
	defer svc.Stop()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	errc := make(chan error, 2)

	if cfg.HTTP.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           svc.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("gjump: panel listening", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("http: %w", err)
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx)
		}()
	}

	switch mcpMode {
	case "":
	case "stdio":
		go func() {
			srv := jumplog.NewMCPServer(svc, logger)
			if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				errc <- fmt.Errorf("mcp stdio: %w", err)
			}
		}()
	default:
		return fmt.Errorf("unknown -mcp transport %q", mcpMode)
	}

	select {
	case <-ctx.Done():
		logger.Info("gjump: shutting down")
		return nil
	case err := <-errc:
		return err
	}
}
