package storage

import (
	"log/slog"
	"sync"

	"github.com/dgnsrekt/gql_sniffer/internal/types"
)

// Kinds of JSONL stream kept per operation.
const (
	KindSpill   = "spill"
	KindJournal = "journal"
)

// WriterRegistry owns one JSONLWriter per operation and kind, so files land
// in baseDir/<date>/<operation>/<kind>/<session>.jsonl.
type WriterRegistry struct {
	baseDir    string
	session    string
	maxSizeMB  int
	bufferSize int

	// writers maps operation segment -> kind -> writer
	writers map[string]map[string]*JSONLWriter
	mu      sync.RWMutex
}

// NewWriterRegistry creates an empty registry. session names the files of
// this run; empty falls back to a timestamp.
func NewWriterRegistry(baseDir, session string, bufferSize, maxSizeMB int) *WriterRegistry {
	return &WriterRegistry{
		baseDir:    baseDir,
		session:    session,
		maxSizeMB:  maxSizeMB,
		bufferSize: bufferSize,
		writers:    make(map[string]map[string]*JSONLWriter),
	}
}

// GetWriter returns (or creates) the writer for an operation and kind.
func (r *WriterRegistry) GetWriter(operation, kind string) *JSONLWriter {
	segment := SegmentForOperation(operation)

	r.mu.RLock()
	if w, ok := r.writers[segment][kind]; ok {
		r.mu.RUnlock()
		return w
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.writers[segment][kind]; ok {
		return w
	}
	if r.writers[segment] == nil {
		r.writers[segment] = make(map[string]*JSONLWriter)
	}
	w := NewJSONLWriter(r.baseDir, segment+"/"+kind, r.session, r.bufferSize, r.maxSizeMB)
	r.writers[segment][kind] = w

	slog.Info("Created new JSONL writer", "operation", segment, "kind", kind)
	return w
}

// Sink returns a writer front end that files each exchange under its
// operation for the given kind.
func (r *WriterRegistry) Sink(kind string) *Sink {
	return &Sink{registry: r, kind: kind}
}

// Close closes all managed writers and returns the last error seen.
func (r *WriterRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for segment, kinds := range r.writers {
		for kind, w := range kinds {
			if err := w.Close(); err != nil {
				slog.Error("Failed to close writer", "operation", segment, "kind", kind, "error", err)
				lastErr = err
			}
		}
	}
	r.writers = make(map[string]map[string]*JSONLWriter)
	return lastErr
}

// Sink writes exchanges of one kind through a WriterRegistry.
type Sink struct {
	registry *WriterRegistry
	kind     string
}

// Spill queues ex for writing. Write failures are logged, never returned,
// since callers sit on the capture path.
func (s *Sink) Spill(ex types.Exchange) {
	if err := s.registry.GetWriter(ex.OperationName(), s.kind).Write(ex); err != nil {
		slog.Warn("spill dropped exchange", "id", ex.ID, "kind", s.kind, "error", err)
	}
}
