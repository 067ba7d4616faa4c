// Package app wires the capture pipeline and operator console shared by
// the sniffer and sniffproxy binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/gql_sniffer/internal/api"
	"github.com/dgnsrekt/gql_sniffer/internal/capture"
	"github.com/dgnsrekt/gql_sniffer/internal/config"
	"github.com/dgnsrekt/gql_sniffer/internal/controller"
	"github.com/dgnsrekt/gql_sniffer/internal/export"
	"github.com/dgnsrekt/gql_sniffer/internal/netutil"
	"github.com/dgnsrekt/gql_sniffer/internal/notify"
	"github.com/dgnsrekt/gql_sniffer/internal/storage"
	"github.com/dgnsrekt/gql_sniffer/internal/store"
)

const shutdownTimeout = 10 * time.Second

// App holds the long-lived parts of one sniffer process.
type App struct {
	Config   *config.Config
	Store    *store.Store
	Capturer *capture.Capturer

	exports  *export.Store
	registry *storage.WriterRegistry
	svcOpts  []controller.Option
}

// New builds the store, capturer and export pipeline from cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	rule, err := cfg.Rule()
	if err != nil {
		return nil, fmt.Errorf("build match rule: %w", err)
	}

	registry := storage.NewWriterRegistry(cfg.DataDir, "", cfg.BufferSize, cfg.MaxFileSizeMB)
	var storeOpts []store.Option
	if cfg.Journal {
		storeOpts = append(storeOpts, store.WithJournal(registry.Sink(storage.KindJournal)))
	}
	st := store.New(cfg.StoreCapacity, registry.Sink(storage.KindSpill), storeOpts...)

	capturer := capture.NewCapturer(rule, st, capture.Limits{
		RequestBytes:  cfg.MaxBodyChars,
		ResponseBytes: cfg.MaxResponseChars,
	})

	exports, err := export.NewStore(cfg.ExportDir, cfg.ExportFilename)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Store:    st,
		Capturer: capturer,
		exports:  exports,
		registry: registry,
	}

	if cfg.Bucket.Enabled() {
		sink, err := export.NewBucketSink(ctx, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		a.svcOpts = append(a.svcOpts, controller.WithUploader(sink))
		slog.Info("bucket upload enabled", "bucket", cfg.Bucket.Name, "endpoint", cfg.Bucket.Endpoint)
	}
	if cfg.NotifyURL != "" {
		n := notify.New(&http.Client{Timeout: 10 * time.Second}, cfg.NotifyURL)
		a.svcOpts = append(a.svcOpts, controller.WithNotifier(n))
	}
	return a, nil
}

// Handler returns the operator console for this process. source names the
// capture front end; tabs may be nil.
func (a *App) Handler(source string, tabs func() int) http.Handler {
	opts := append([]controller.Option{controller.WithSource(source, tabs)}, a.svcOpts...)
	svc := controller.NewService(a.Store, a.exports, opts...)
	return api.NewServer(svc, a.Store.Feed())
}

// Serve runs the console on the first free configured address until
// SIGINT or SIGTERM, then shuts it down.
func (a *App) Serve(name string, h http.Handler) error {
	bindAddr, err := netutil.SelectBindAddr(a.Config.BindAddr, a.Config.PortCandidates, a.Config.PortAutoFallback)
	if err != nil {
		return fmt.Errorf("select bind address (preferred %s): %w", a.Config.BindAddr, err)
	}

	srv := &http.Server{Addr: bindAddr, Handler: h}
	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return fmt.Errorf("%s server failed: %w", name, err)
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}
	return nil
}

// Close flushes spill and journal files.
func (a *App) Close() error {
	return a.registry.Close()
}

// SetupLogger installs the default slog logger writing to stdout and a
// rotating log file.
func SetupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: ParseLevel(level)})
	slog.SetDefault(slog.New(h))
	return nil
}

// ParseLevel maps debug|info|warn|error to a slog level; anything else is info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
