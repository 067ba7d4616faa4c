// Package store holds captured exchanges in memory for inspection and
// export.
package store

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/gql_sniffer/internal/relay"
	"github.com/dgnsrekt/gql_sniffer/internal/types"
)

// ExportSeparator sits between response bodies in ExportText output.
const ExportSeparator = "\n---\n"

// Spiller receives exchanges evicted from a bounded store, and every kept
// exchange when used as a journal. Implementations must not block.
type Spiller interface {
	Spill(types.Exchange)
}

// Option configures a Store.
type Option func(*Store)

// WithJournal copies every accepted exchange to j.
func WithJournal(j Spiller) Option {
	return func(s *Store) { s.journal = j }
}

// WithClock overrides the timestamp source for exchanges without one.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is an append-only, insertion-ordered list of exchanges. With a
// positive capacity it becomes a ring and hands the oldest entry to the
// Spiller before overwriting it.
type Store struct {
	mu       sync.RWMutex
	items    []types.Exchange
	head     int
	count    int
	capacity int
	nextID   uint64
	evicted  uint64

	enabled atomic.Bool
	spill   Spiller
	journal Spiller
	feed    *relay.Broker
	now     func() time.Time
}

// New returns an enabled store. capacity <= 0 means unbounded.
func New(capacity int, spill Spiller, opts ...Option) *Store {
	if capacity < 0 {
		capacity = 0
	}
	s := &Store{
		capacity: capacity,
		spill:    spill,
		feed:     relay.NewBroker(),
		now:      time.Now,
	}
	if capacity > 0 {
		s.items = make([]types.Exchange, capacity)
	}
	for _, opt := range opts {
		opt(s)
	}
	s.enabled.Store(true)
	return s
}

func (s *Store) Enabled() bool { return s.enabled.Load() }

func (s *Store) SetEnabled(on bool) {
	if s.enabled.Swap(on) != on {
		slog.Info("capture toggled", "enabled", on)
	}
}

// Append stores ex with the next ID and returns the stored copy. It
// returns false and stores nothing while capture is disabled.
func (s *Store) Append(ex types.Exchange) (types.Exchange, bool) {
	if !s.enabled.Load() {
		return types.Exchange{}, false
	}
	if ex.Timestamp.IsZero() {
		ex.Timestamp = s.now().UTC()
	}

	var evicted *types.Exchange
	s.mu.Lock()
	s.nextID++
	ex.ID = s.nextID
	if s.capacity == 0 {
		s.items = append(s.items, ex)
		s.count++
	} else {
		idx := (s.head + s.count) % s.capacity
		if s.count == s.capacity {
			old := s.items[s.head]
			evicted = &old
			s.head = (s.head + 1) % s.capacity
			s.evicted++
		} else {
			s.count++
		}
		s.items[idx] = ex
	}
	s.mu.Unlock()

	if evicted != nil && s.spill != nil {
		s.spill.Spill(*evicted)
	}
	if s.journal != nil {
		s.journal.Spill(ex)
	}
	s.publish(ex)
	return ex, true
}

func (s *Store) publish(ex types.Exchange) {
	if s.feed.ClientCount() == 0 {
		return
	}
	data, err := json.Marshal(ex)
	if err != nil {
		slog.Warn("live feed: encode exchange", "id", ex.ID, "error", err)
		return
	}
	s.feed.Publish(relay.Event{ID: ex.ID, Operation: ex.OperationName(), Data: data})
}

// Clear drops every stored exchange. IDs keep increasing afterwards.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capacity == 0 {
		s.items = nil
	} else {
		clear(s.items)
	}
	s.head = 0
	s.count = 0
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Evicted is the number of exchanges pushed out of a bounded store.
func (s *Store) Evicted() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evicted
}

// Items returns a snapshot in insertion order.
func (s *Store) Items() []types.Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Exchange, 0, s.count)
	if s.capacity == 0 {
		return append(out, s.items...)
	}
	for i := 0; i < s.count; i++ {
		out = append(out, s.items[(s.head+i)%s.capacity])
	}
	return out
}

// ByOperation returns the stored exchanges whose operation equals op.
func (s *Store) ByOperation(op string) []types.Exchange {
	var out []types.Exchange
	for _, ex := range s.Items() {
		if ex.OperationName() == op {
			out = append(out, ex)
		}
	}
	return out
}

// ExportText renders every response body as two-space indented JSON,
// separated by ExportSeparator. An empty store yields "".
func (s *Store) ExportText() string {
	return RenderText(s.Items())
}

// RenderText is ExportText over a snapshot taken by the caller.
func RenderText(items []types.Exchange) string {
	if len(items) == 0 {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, ex := range items {
		data, err := json.MarshalIndent(ex.ResponseBody, "", "  ")
		if err != nil {
			slog.Warn("export: encode response body", "id", ex.ID, "error", err)
			data = []byte("null")
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, ExportSeparator)
}

// Subscribe attaches a live feed client.
func (s *Store) Subscribe() (int64, <-chan relay.Event) { return s.feed.Subscribe() }

func (s *Store) Unsubscribe(id int64) { s.feed.Unsubscribe(id) }

// Feed exposes the broker for the SSE and WebSocket handlers.
func (s *Store) Feed() *relay.Broker { return s.feed }
