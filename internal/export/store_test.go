package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	return s
}

func TestExportTextRoundTrip(t *testing.T) {
	s := newTestStore(t)

	meta, err := s.ExportText("", "{\n  \"a\": 1\n}", 1)
	if err != nil {
		t.Fatalf("ExportText() = %v; want nil", err)
	}
	if meta.Filename != DefaultFilename {
		t.Fatalf("Filename = %q; want %q", meta.Filename, DefaultFilename)
	}
	if meta.Exchanges != 1 || meta.SizeBytes != 12 {
		t.Fatalf("meta = %+v; want 1 exchange, 12 bytes", meta)
	}
	if len(meta.SHA256) != 64 {
		t.Fatalf("SHA256 = %q; want hex digest", meta.SHA256)
	}

	data, got, err := s.Read(meta.ID)
	if err != nil {
		t.Fatalf("Read() = %v; want nil", err)
	}
	if string(data) != "{\n  \"a\": 1\n}" {
		t.Fatalf("Read() data = %q", data)
	}
	if got.ID != meta.ID {
		t.Fatalf("Read() meta.ID = %q; want %q", got.ID, meta.ID)
	}
}

func TestExportTextSanitizesFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"custom.txt", "custom.txt"},
		{"../../etc/passwd", "passwd"},
		{"a\\b\\c.txt", "c.txt"},
		{"  ", DefaultFilename},
		{"/", DefaultFilename},
		{"..", DefaultFilename},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in, DefaultFilename); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestStoreRejectsInvalidID(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Get("../secret"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("Get() error = %v; want ErrInvalidID", err)
	}
	if err := s.Delete("nope"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("Delete() error = %v; want ErrInvalidID", err)
	}
}

func TestStoreGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("123e4567-e89b-12d3-a456-426614174000")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v; want ErrNotFound", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	step := 0
	s.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	first, err := s.ExportText("first.txt", "1", 1)
	if err != nil {
		t.Fatalf("ExportText() failed: %v", err)
	}
	second, err := s.ExportText("second.txt", "2", 1)
	if err != nil {
		t.Fatalf("ExportText() failed: %v", err)
	}

	// A stray sidecar must not break listing.
	if err := os.WriteFile(filepath.Join(s.dir, "junk.json"), []byte("{"), 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}

	metas, err := s.List()
	if err != nil {
		t.Fatalf("List() = %v; want nil", err)
	}
	if len(metas) != 2 {
		t.Fatalf("len(List()) = %d; want 2", len(metas))
	}
	if metas[0].ID != second.ID || metas[1].ID != first.ID {
		t.Fatalf("List() order = [%s %s]; want [%s %s]", metas[0].Filename, metas[1].Filename, second.Filename, first.Filename)
	}
}

func TestSetBucketKey(t *testing.T) {
	s := newTestStore(t)
	meta, err := s.ExportText("", "x", 1)
	if err != nil {
		t.Fatalf("ExportText() failed: %v", err)
	}

	if _, err := s.SetBucketKey(meta.ID, "exports/2026-01-02/x.txt"); err != nil {
		t.Fatalf("SetBucketKey() = %v; want nil", err)
	}
	got, err := s.Get(meta.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.BucketKey != "exports/2026-01-02/x.txt" {
		t.Fatalf("BucketKey = %q", got.BucketKey)
	}
}

func TestDeleteLogsContentCleanupFailureWhenContentMissing(t *testing.T) {
	dir := t.TempDir()
	store := &Store{dir: dir, now: time.Now}
	id := "123e4567-e89b-12d3-a456-426614174000"

	metaBytes, err := json.Marshal(Meta{ID: id, Filename: "x.txt"})
	if err != nil {
		t.Fatalf("json.Marshal() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, id+".json"), metaBytes, 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}

	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete() = %v; want nil", err)
	}
	if !strings.Contains(buf.String(), "export content cleanup failed") {
		t.Fatalf("expected content cleanup debug log, got %q", buf.String())
	}
	if _, err := store.Get(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after Delete() = %v; want ErrNotFound", err)
	}
}
