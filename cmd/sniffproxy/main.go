package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dgnsrekt/gql_sniffer/internal/app"
	"github.com/dgnsrekt/gql_sniffer/internal/capture"
	"github.com/dgnsrekt/gql_sniffer/internal/config"
)

func main() {
	cfg, err := config.LoadProxy()
	if err != nil {
		slog.Error("failed to load sniffproxy config", "error", err)
		os.Exit(1)
	}

	if err := app.SetupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	target, err := cfg.TargetURL()
	if err != nil {
		slog.Error("invalid proxy target", "error", err)
		os.Exit(1)
	}

	slog.Info("sniffproxy config loaded",
		"target", target.String(),
		"listen", cfg.Listen,
		"bind_addr", cfg.BindAddr,
		"origin", cfg.Origin,
		"store_capacity", cfg.StoreCapacity,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	a, err := app.New(context.Background(), cfg.Config)
	if err != nil {
		slog.Error("failed to build capture pipeline", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Debug("storage close failed", "error", err)
		}
	}()

	proxy := &http.Server{Addr: cfg.Listen, Handler: capture.NewReverseProxy(target, a.Capturer)}
	go func() {
		slog.Info("sniffproxy forwarding", "listen", cfg.Listen, "target", target.String())
		if err := proxy.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("proxy server failed", "error", err)
			os.Exit(1)
		}
	}()

	if err := a.Serve("sniffproxy", a.Handler("proxy", nil)); err != nil {
		slog.Error("sniffproxy stopped", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := proxy.Shutdown(ctx); err != nil {
		slog.Error("proxy shutdown failed", "error", err)
	}
}
