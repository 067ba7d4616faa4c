package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dgnsrekt/gql_sniffer/internal/export"
	"github.com/dgnsrekt/gql_sniffer/internal/store"
	"github.com/dgnsrekt/gql_sniffer/internal/types"
)

type fakeUploader struct {
	key   string
	err   error
	names []string
	data  []string
}

func (f *fakeUploader) Upload(_ context.Context, name string, data []byte) (string, error) {
	f.names = append(f.names, name)
	f.data = append(f.data, string(data))
	return f.key, f.err
}

type fakeNotifier struct {
	sent []export.Meta
	err  error
}

func (f *fakeNotifier) SendExport(_ context.Context, meta export.Meta) error {
	f.sent = append(f.sent, meta)
	return f.err
}

func newTestService(t *testing.T, opts ...Option) (*Service, *store.Store) {
	t.Helper()
	st := store.New(0, nil)
	exports, err := export.NewStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("export.NewStore() failed: %v", err)
	}
	return NewService(st, exports, opts...), st
}

func appendOp(st *store.Store, op, body string) {
	st.Append(types.Exchange{
		Operation:    &op,
		RequestBody:  types.EmptyBody(),
		ResponseBody: types.ParseBody(body, "application/json"),
	})
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var got *CodedError
	if !errors.As(err, &got) {
		t.Fatalf("error type = %T; want *CodedError", err)
	}
	if got.Code != code {
		t.Fatalf("code = %q; want %q", got.Code, code)
	}
}

func TestRequireNonEmpty(t *testing.T) {
	s := &Service{}
	if err := s.requireNonEmpty("abc", "export_id"); err != nil {
		t.Fatalf("requireNonEmpty() = %v; want nil", err)
	}

	err := s.requireNonEmpty("   ", "export_id")
	if err == nil {
		t.Fatalf("requireNonEmpty() = nil; want validation error")
	}
	requireCode(t, err, CodeValidation)
	if got := err.(*CodedError).Message; got != "export_id is required" {
		t.Fatalf("requireNonEmpty() message = %q; want %q", got, "export_id is required")
	}
}

func TestCodedErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := newError(CodeInternal, "write export", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false; want true")
	}
	if got, want := err.Error(), "INTERNAL: write export: disk full"; got != want {
		t.Fatalf("Error() = %q; want %q", got, want)
	}
}

func TestListCapturesFiltersByOperation(t *testing.T) {
	svc, st := newTestService(t)
	appendOp(st, "UserMedia", `{"a":1}`)
	appendOp(st, "HomeTimeline", `{"b":2}`)
	appendOp(st, "UserMedia", `{"c":3}`)

	all, err := svc.ListCaptures(context.Background(), "")
	if err != nil || len(all) != 3 {
		t.Fatalf("ListCaptures(\"\") = %d, %v; want 3, nil", len(all), err)
	}
	media, err := svc.ListCaptures(context.Background(), " UserMedia ")
	if err != nil || len(media) != 2 {
		t.Fatalf("ListCaptures(UserMedia) = %d, %v; want 2, nil", len(media), err)
	}
}

func TestSetCapturingAndClear(t *testing.T) {
	svc, st := newTestService(t)
	appendOp(st, "UserMedia", `{}`)

	status, _ := svc.SetCapturing(context.Background(), false)
	if status.Enabled || status.Count != 1 {
		t.Fatalf("SetCapturing(false) = %+v; want disabled, count 1", status)
	}
	appendOp(st, "UserMedia", `{}`)
	if st.Count() != 1 {
		t.Fatalf("Count() after disabled append = %d; want 1", st.Count())
	}

	status, _ = svc.ClearCaptures(context.Background())
	if status.Count != 0 {
		t.Fatalf("ClearCaptures() count = %d; want 0", status.Count)
	}
}

func TestCreateExportWritesArtifact(t *testing.T) {
	notifier := &fakeNotifier{}
	svc, st := newTestService(t, WithNotifier(notifier))
	appendOp(st, "UserMedia", `{"a":1}`)

	meta, err := svc.CreateExport(context.Background(), "", false)
	if err != nil {
		t.Fatalf("CreateExport() = %v; want nil", err)
	}
	if meta.Filename != export.DefaultFilename || meta.Exchanges != 1 {
		t.Fatalf("CreateExport() meta = %+v", meta)
	}

	data, _, err := svc.ReadExport(context.Background(), meta.ID)
	if err != nil {
		t.Fatalf("ReadExport() = %v; want nil", err)
	}
	if got, want := string(data), st.ExportText(); got != want {
		t.Fatalf("ReadExport() = %q; want %q", got, want)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].ID != meta.ID {
		t.Fatalf("notifications = %+v; want one for %s", notifier.sent, meta.ID)
	}
}

func TestCreateExportCountMatchesTextUnderAppends(t *testing.T) {
	svc, st := newTestService(t)
	appendOp(st, "UserMedia", `{"a":1}`)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				appendOp(st, "UserMedia", `{"a":1}`)
			}
		}
	}()

	for i := 0; i < 20; i++ {
		meta, err := svc.CreateExport(context.Background(), "", false)
		if err != nil {
			close(stop)
			wg.Wait()
			t.Fatalf("CreateExport() = %v; want nil", err)
		}
		data, _, err := svc.ReadExport(context.Background(), meta.ID)
		if err != nil {
			close(stop)
			wg.Wait()
			t.Fatalf("ReadExport() = %v; want nil", err)
		}
		if got := strings.Count(string(data), store.ExportSeparator) + 1; got != meta.Exchanges {
			close(stop)
			wg.Wait()
			t.Fatalf("artifact holds %d bodies; meta.Exchanges = %d", got, meta.Exchanges)
		}
	}
	close(stop)
	wg.Wait()
}

func TestCreateExportUploads(t *testing.T) {
	up := &fakeUploader{key: "exports/2026-01-02/run.txt"}
	svc, st := newTestService(t, WithUploader(up))
	appendOp(st, "UserMedia", `{"a":1}`)

	meta, err := svc.CreateExport(context.Background(), "run.txt", true)
	if err != nil {
		t.Fatalf("CreateExport() = %v; want nil", err)
	}
	if meta.BucketKey != up.key {
		t.Fatalf("BucketKey = %q; want %q", meta.BucketKey, up.key)
	}
	if len(up.names) != 1 || up.names[0] != "run.txt" {
		t.Fatalf("uploaded names = %v; want [run.txt]", up.names)
	}
	got, err := svc.GetExport(context.Background(), meta.ID)
	if err != nil || got.BucketKey != up.key {
		t.Fatalf("GetExport() = %+v, %v; want bucket key persisted", got, err)
	}
}

func TestCreateExportUploadFailureKeepsArtifact(t *testing.T) {
	up := &fakeUploader{err: errors.New("s3 connection error")}
	svc, _ := newTestService(t, WithUploader(up))

	meta, err := svc.CreateExport(context.Background(), "", true)
	requireCode(t, err, CodeUploadFailed)
	if _, err := svc.GetExport(context.Background(), meta.ID); err != nil {
		t.Fatalf("GetExport() after failed upload = %v; want artifact kept", err)
	}
}

func TestCreateExportUploadNotConfigured(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateExport(context.Background(), "", true)
	requireCode(t, err, CodeValidation)
}

func TestCreateExportNotifierFailureIsNotFatal(t *testing.T) {
	svc, _ := newTestService(t, WithNotifier(&fakeNotifier{err: errors.New("down")}))
	if _, err := svc.CreateExport(context.Background(), "", false); err != nil {
		t.Fatalf("CreateExport() = %v; want nil", err)
	}
}

func TestExportLookupErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetExport(ctx, " ")
	requireCode(t, err, CodeValidation)

	_, err = svc.GetExport(ctx, "not-a-uuid")
	requireCode(t, err, CodeValidation)

	_, _, err = svc.ReadExport(ctx, "123e4567-e89b-12d3-a456-426614174000")
	requireCode(t, err, CodeNotFound)

	err = svc.DeleteExport(ctx, "123e4567-e89b-12d3-a456-426614174000")
	requireCode(t, err, CodeNotFound)
}

func TestHealth(t *testing.T) {
	svc, st := newTestService(t, WithSource("cdp", func() int { return 2 }))
	appendOp(st, "UserMedia", `{}`)

	h, err := svc.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() = %v; want nil", err)
	}
	if h.Status != "ok" || h.Source != "cdp" || h.Captures != 1 || h.Tabs != 2 || !h.Enabled {
		t.Fatalf("Health() = %+v", h)
	}
}
