package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/gql_sniffer/internal/controller"
	"github.com/dgnsrekt/gql_sniffer/internal/export"
	"github.com/dgnsrekt/gql_sniffer/internal/relay"
	"github.com/dgnsrekt/gql_sniffer/internal/types"
)

type Service interface {
	Health(ctx context.Context) (controller.Health, error)
	CaptureStatus(ctx context.Context) (controller.CaptureStatus, error)
	ListCaptures(ctx context.Context, operation string) ([]types.Exchange, error)
	ClearCaptures(ctx context.Context) (controller.CaptureStatus, error)
	SetCapturing(ctx context.Context, enabled bool) (controller.CaptureStatus, error)
	ExportText(ctx context.Context) (string, error)
	CreateExport(ctx context.Context, filename string, upload bool) (export.Meta, error)
	ListExports(ctx context.Context) ([]export.Meta, error)
	GetExport(ctx context.Context, id string) (export.Meta, error)
	ReadExport(ctx context.Context, id string) ([]byte, export.Meta, error)
	DeleteExport(ctx context.Context, id string) error
}

func NewServer(svc Service, feed *relay.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("gql_sniffer Console API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/docs/feed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(feedDocsHTML)); err != nil {
			slog.Debug("feed docs response write failed", "error", err)
		}
	})

	if feed != nil {
		router.Get("/api/v1/captures/stream", relay.SSEHandler(feed))
		router.Get("/api/v1/captures/ws", relay.WSHandler(feed))
	}

	registerHealthHandlers(api, svc)
	registerCaptureHandlers(api, svc)
	registerExportHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *controller.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case controller.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case controller.CodeNotFound:
			return huma.Error404NotFound(coded.Message)
		case controller.CodeUploadFailed:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
