// Package controller implements the operator console operations on top
// of the capture store and the export artifact store.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/dgnsrekt/gql_sniffer/internal/export"
	"github.com/dgnsrekt/gql_sniffer/internal/store"
	"github.com/dgnsrekt/gql_sniffer/internal/types"
)

// Uploader ships an export artifact to remote storage and returns its key.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// Notifier announces finished exports.
type Notifier interface {
	SendExport(ctx context.Context, meta export.Meta) error
}

// CaptureStatus is the store summary shown by the console.
type CaptureStatus struct {
	Count   int    `json:"count"`
	Enabled bool   `json:"enabled"`
	Evicted uint64 `json:"evicted"`
}

// Health reports liveness plus a few gauges.
type Health struct {
	Status      string `json:"status"`
	Source      string `json:"source"`
	Captures    int    `json:"captures"`
	Enabled     bool   `json:"enabled"`
	Subscribers int    `json:"subscribers"`
	Tabs        int    `json:"tabs,omitempty"`
}

// Service wraps capture and export operations.
type Service struct {
	store    *store.Store
	exports  *export.Store
	uploader Uploader
	notifier Notifier
	source   string
	tabs     func() int
}

type Option func(*Service)

// WithUploader enables POST /exports with upload=true.
func WithUploader(u Uploader) Option {
	return func(s *Service) { s.uploader = u }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithSource names the capture source ("cdp" or "proxy") and optionally
// how many tabs it is attached to.
func WithSource(name string, tabs func() int) Option {
	return func(s *Service) {
		s.source = name
		s.tabs = tabs
	}
}

func NewService(st *store.Store, exports *export.Store, opts ...Option) *Service {
	s := &Service{store: st, exports: exports}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &CodedError{Code: CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

func (s *Service) status() CaptureStatus {
	return CaptureStatus{
		Count:   s.store.Count(),
		Enabled: s.store.Enabled(),
		Evicted: s.store.Evicted(),
	}
}

func (s *Service) Health(ctx context.Context) (Health, error) {
	h := Health{
		Status:      "ok",
		Source:      s.source,
		Captures:    s.store.Count(),
		Enabled:     s.store.Enabled(),
		Subscribers: s.store.Feed().ClientCount(),
	}
	if s.tabs != nil {
		h.Tabs = s.tabs()
	}
	return h, nil
}

// --- Capture methods ---

func (s *Service) CaptureStatus(ctx context.Context) (CaptureStatus, error) {
	return s.status(), nil
}

// ListCaptures returns stored exchanges in insertion order, optionally
// only those of one operation.
func (s *Service) ListCaptures(ctx context.Context, operation string) ([]types.Exchange, error) {
	operation = strings.TrimSpace(operation)
	if operation == "" {
		return s.store.Items(), nil
	}
	return s.store.ByOperation(operation), nil
}

func (s *Service) ClearCaptures(ctx context.Context) (CaptureStatus, error) {
	cleared := s.store.Count()
	s.store.Clear()
	slog.Info("captures cleared", "count", cleared)
	return s.status(), nil
}

func (s *Service) SetCapturing(ctx context.Context, enabled bool) (CaptureStatus, error) {
	s.store.SetEnabled(enabled)
	return s.status(), nil
}

func (s *Service) ExportText(ctx context.Context) (string, error) {
	return s.store.ExportText(), nil
}

// --- Export methods ---

// CreateExport writes the current export text as an artifact, optionally
// uploads it, then sends the export notice. A failed upload keeps the
// local artifact and reports UPLOAD_FAILED.
func (s *Service) CreateExport(ctx context.Context, filename string, upload bool) (export.Meta, error) {
	if upload && s.uploader == nil {
		return export.Meta{}, newError(CodeValidation, "bucket upload is not configured", nil)
	}

	items := s.store.Items()
	text := store.RenderText(items)
	meta, err := s.exports.ExportText(filename, text, len(items))
	if err != nil {
		return export.Meta{}, newError(CodeInternal, "write export", err)
	}

	if upload {
		key, err := s.uploader.Upload(ctx, meta.Filename, []byte(text))
		if err != nil {
			return meta, newError(CodeUploadFailed, "upload export "+meta.ID, err)
		}
		meta, err = s.exports.SetBucketKey(meta.ID, key)
		if err != nil {
			return export.Meta{}, newError(CodeInternal, "record bucket key", err)
		}
		slog.Info("export uploaded", "id", meta.ID, "key", key)
	}

	if s.notifier != nil {
		if err := s.notifier.SendExport(ctx, meta); err != nil {
			slog.Warn("export notification failed", "id", meta.ID, "error", err)
		}
	}
	return meta, nil
}

func (s *Service) ListExports(ctx context.Context) ([]export.Meta, error) {
	metas, err := s.exports.List()
	if err != nil {
		return nil, newError(CodeInternal, "list exports", err)
	}
	return metas, nil
}

func (s *Service) GetExport(ctx context.Context, id string) (export.Meta, error) {
	if err := s.requireNonEmpty(id, "export_id"); err != nil {
		return export.Meta{}, err
	}
	meta, err := s.exports.Get(strings.TrimSpace(id))
	if err != nil {
		return export.Meta{}, exportErr(err)
	}
	return meta, nil
}

func (s *Service) ReadExport(ctx context.Context, id string) ([]byte, export.Meta, error) {
	if err := s.requireNonEmpty(id, "export_id"); err != nil {
		return nil, export.Meta{}, err
	}
	data, meta, err := s.exports.Read(strings.TrimSpace(id))
	if err != nil {
		return nil, export.Meta{}, exportErr(err)
	}
	return data, meta, nil
}

func (s *Service) DeleteExport(ctx context.Context, id string) error {
	if err := s.requireNonEmpty(id, "export_id"); err != nil {
		return err
	}
	if err := s.exports.Delete(strings.TrimSpace(id)); err != nil {
		return exportErr(err)
	}
	return nil
}

func exportErr(err error) error {
	switch {
	case errors.Is(err, export.ErrInvalidID):
		return &CodedError{Code: CodeValidation, Message: err.Error()}
	case errors.Is(err, export.ErrNotFound):
		return &CodedError{Code: CodeNotFound, Message: err.Error()}
	default:
		return newError(CodeInternal, "export store", err)
	}
}
