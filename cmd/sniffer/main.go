package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/dgnsrekt/gql_sniffer/internal/app"
	"github.com/dgnsrekt/gql_sniffer/internal/browser"
	"github.com/dgnsrekt/gql_sniffer/internal/capture"
	"github.com/dgnsrekt/gql_sniffer/internal/cdp"
	"github.com/dgnsrekt/gql_sniffer/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load sniffer config", "error", err)
		os.Exit(1)
	}

	if err := app.SetupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("sniffer config loaded",
		"cdp_url", cfg.CDPURL(),
		"tab_url_filter", cfg.TabURLFilter,
		"bind_addr", cfg.BindAddr,
		"origin", cfg.Origin,
		"only_operation", cfg.OnlyOperation,
		"drop_error_status", cfg.DropErrorStatus,
		"store_capacity", cfg.StoreCapacity,
		"journal", cfg.Journal,
		"export_dir", cfg.ExportDir,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	ctx := context.Background()

	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			StartURL:   cfg.StartURL,
			ProfileDir: cfg.ProfileDir,
			Headless:   cfg.Headless,
		})
		if err := launcher.Launch(ctx); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to build capture pipeline", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Debug("storage close failed", "error", err)
		}
	}()

	tabs := cdp.NewTabRegistry()
	browserCapture := capture.NewBrowser(a.Capturer, tabs)
	defer browserCapture.Close()

	cdpClient := cdp.NewClient(cfg.CDPURL(), cfg.TabURLFilter, cfg.ReloadOnAttach, browserCapture, tabs)
	if err := cdpClient.Connect(ctx); err != nil {
		slog.Error("failed to connect CDP", "cdp_url", cfg.CDPURL(), "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cdpClient.Close(); err != nil {
			slog.Debug("CDP client close failed", "error", err)
		}
	}()

	if err := a.Serve("sniffer", a.Handler("cdp", cdpClient.GetTabCount)); err != nil {
		slog.Error("sniffer stopped", "error", err)
	}
}
