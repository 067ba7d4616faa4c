// Package export writes capture exports to disk and optionally uploads
// them to an S3-compatible bucket.
package export

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultFilename is the download name used when the operator gives none.
const DefaultFilename = "UserMedia-responses.txt"

var (
	ErrNotFound  = errors.New("export not found")
	ErrInvalidID = errors.New("invalid export id")
)

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Meta describes a stored export artifact.
type Meta struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Exchanges int       `json:"exchanges"`
	SizeBytes int       `json:"size_bytes"`
	SHA256    string    `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
	BucketKey string    `json:"bucket_key,omitempty"`
}

// Store keeps export artifacts as <id>.txt plus a <id>.json sidecar.
type Store struct {
	dir         string
	defaultName string
	mu          sync.RWMutex
	now         func() time.Time
}

// NewStore creates a Store and ensures the directory exists. An empty
// defaultName falls back to DefaultFilename.
func NewStore(dir, defaultName string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export store: mkdir %s: %w", dir, err)
	}
	if defaultName == "" {
		defaultName = DefaultFilename
	}
	return &Store{dir: dir, defaultName: defaultName, now: time.Now}, nil
}

func validateID(id string) error {
	if !uuidRe.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// SanitizeFilename reduces name to a plain base name. Empty or
// path-only names yield fallback.
func SanitizeFilename(name, fallback string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." || base == "" || name == "" {
		return fallback
	}
	return base
}

func (s *Store) contentPath(id string) string { return filepath.Join(s.dir, id+".txt") }
func (s *Store) metaPath(id string) string    { return filepath.Join(s.dir, id+".json") }

// ExportText stores text as a new artifact named name.
func (s *Store) ExportText(name, text string, exchanges int) (Meta, error) {
	sum := sha256.Sum256([]byte(text))
	meta := Meta{
		ID:        uuid.NewString(),
		Filename:  SanitizeFilename(name, s.defaultName),
		Exchanges: exchanges,
		SizeBytes: len(text),
		SHA256:    hex.EncodeToString(sum[:]),
		CreatedAt: s.now().UTC(),
	}
	if err := s.Save(meta, []byte(text)); err != nil {
		return Meta{}, err
	}
	slog.Info("export written", "id", meta.ID, "filename", meta.Filename, "bytes", meta.SizeBytes, "exchanges", exchanges)
	return meta, nil
}

// Save writes both the content file and the metadata sidecar.
func (s *Store) Save(meta Meta, data []byte) error {
	if err := validateID(meta.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.contentPath(meta.ID), data, 0o644); err != nil {
		return fmt.Errorf("export store: write content: %w", err)
	}
	if err := s.writeMeta(meta); err != nil {
		_ = os.Remove(s.contentPath(meta.ID))
		return err
	}
	return nil
}

func (s *Store) writeMeta(meta Meta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("export store: marshal meta: %w", err)
	}
	if err := os.WriteFile(s.metaPath(meta.ID), data, 0o644); err != nil {
		return fmt.Errorf("export store: write meta: %w", err)
	}
	return nil
}

// Get reads artifact metadata by ID.
func (s *Store) Get(id string) (Meta, error) {
	if err := validateID(id); err != nil {
		return Meta{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readMeta(id)
}

func (s *Store) readMeta(id string) (Meta, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Meta{}, fmt.Errorf("export store: read meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("export store: unmarshal meta: %w", err)
	}
	return meta, nil
}

// SetBucketKey records where an artifact was uploaded.
func (s *Store) SetBucketKey(id, key string) (Meta, error) {
	if err := validateID(id); err != nil {
		return Meta{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.readMeta(id)
	if err != nil {
		return Meta{}, err
	}
	meta.BucketKey = key
	if err := s.writeMeta(meta); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

// List returns all artifacts, newest first. Unreadable sidecars are skipped.
func (s *Store) List() ([]Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("export store: glob: %w", err)
	}

	metas := make([]Meta, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Debug("export meta unreadable", "path", path, "error", err)
			continue
		}
		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			slog.Debug("export meta invalid", "path", path, "error", err)
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// Read returns the artifact content and its metadata.
func (s *Store) Read(id string) ([]byte, Meta, error) {
	meta, err := s.Get(id)
	if err != nil {
		return nil, Meta{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.contentPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Meta{}, fmt.Errorf("%w: content for %s", ErrNotFound, id)
		}
		return nil, Meta{}, fmt.Errorf("export store: read content: %w", err)
	}
	return data, meta, nil
}

// Delete removes both files. A missing content file is logged, not fatal.
func (s *Store) Delete(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.contentPath(id)); err != nil {
		slog.Debug("export content cleanup failed", "id", id, "error", err)
	}
	if err := os.Remove(s.metaPath(id)); err != nil {
		return fmt.Errorf("export store: remove meta: %w", err)
	}
	return nil
}
