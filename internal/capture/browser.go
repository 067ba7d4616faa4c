package capture

import (
	"encoding/base64"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/dgnsrekt/gql_sniffer/internal/types"
)

const (
	pendingMaxAge   = 5 * time.Minute
	cleanupInterval = time.Minute
)

type pendingCall struct {
	obs  Observation
	seen time.Time
}

// Browser correlates CDP Network events of attached tabs into
// observations. Only Fetch and XHR requests whose URL matches the rule
// are tracked; calls that never finish are reaped silently.
type Browser struct {
	capturer *Capturer
	tabs     types.TabInfoProvider

	pending   map[string]*pendingCall
	pendingMu sync.Mutex

	inflight  sync.WaitGroup
	closeMu   sync.Mutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
	now       func() time.Time
}

func NewBrowser(c *Capturer, tabs types.TabInfoProvider) *Browser {
	b := &Browser{
		capturer: c,
		tabs:     tabs,
		pending:  make(map[string]*pendingCall),
		done:     make(chan struct{}),
		now:      time.Now,
	}
	go b.cleanupLoop()
	return b
}

// Close stops the cleanup loop and waits for in-flight body reads.
// Events arriving after Close are ignored.
func (b *Browser) Close() {
	b.closeMu.Lock()
	b.closed = true
	b.closeMu.Unlock()
	b.closeOnce.Do(func() { close(b.done) })
	b.inflight.Wait()
}

// Wait blocks until every body read started so far has been observed.
func (b *Browser) Wait() { b.inflight.Wait() }

// PendingCount is the number of requests waiting for completion.
func (b *Browser) PendingCount() int {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	return len(b.pending)
}

func transportFor(rt network.ResourceType) (types.Transport, bool) {
	switch rt {
	case network.ResourceTypeFetch:
		return types.TransportFetch, true
	case network.ResourceTypeXHR:
		return types.TransportXHR, true
	}
	return "", false
}

func (b *Browser) OnRequestWillBeSent(tabID string, ev *network.EventRequestWillBeSent) {
	if ev.Request == nil {
		return
	}
	transport, ok := transportFor(ev.Type)
	if !ok || !b.capturer.Wants(ev.Request.URL) {
		return
	}

	var postData []byte
	if ev.Request.HasPostData {
		for _, entry := range ev.Request.PostDataEntries {
			if entry == nil || entry.Bytes == "" {
				continue
			}
			decoded, err := base64.StdEncoding.DecodeString(entry.Bytes)
			if err != nil {
				postData = append(postData, entry.Bytes...)
			} else {
				postData = append(postData, decoded...)
			}
		}
	}

	var page string
	if info, ok := b.tabs.GetByStringID(tabID); ok {
		page = info.URL
	}

	now := b.now()
	call := &pendingCall{
		obs: Observation{
			Transport:      transport,
			Method:         ev.Request.Method,
			URL:            ev.Request.URL,
			RequestHeaders: headerMapToStringMap(ev.Request.Headers),
			RequestBody:    string(postData),
			Started:        now,
			Page:           page,
		},
		seen: now,
	}

	b.pendingMu.Lock()
	b.pending[string(ev.RequestID)] = call
	b.pendingMu.Unlock()
}

func (b *Browser) OnResponseReceived(_ string, ev *network.EventResponseReceived) {
	if ev.Response == nil {
		return
	}
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	call, ok := b.pending[string(ev.RequestID)]
	if !ok {
		return
	}
	status := int(ev.Response.Status)
	call.obs.Status = &status
	call.obs.ResponseHeaders = headerMapToStringMap(ev.Response.Headers)
	if _, set := call.obs.ResponseHeaders["content-type"]; !set && ev.Response.MimeType != "" {
		call.obs.ResponseHeaders["content-type"] = ev.Response.MimeType
	}
}

// OnLoadingFinished reads the body through getBody, which must return a
// copy (Network.getResponseBody) and never consume the page's stream.
func (b *Browser) OnLoadingFinished(_ string, ev *network.EventLoadingFinished, getBody func() ([]byte, error)) {
	b.pendingMu.Lock()
	call, ok := b.pending[string(ev.RequestID)]
	if ok {
		delete(b.pending, string(ev.RequestID))
	}
	b.pendingMu.Unlock()
	if !ok {
		return
	}

	obs := call.obs
	obs.Duration = b.now().Sub(call.seen)

	b.closeMu.Lock()
	if b.closed {
		b.closeMu.Unlock()
		return
	}
	b.inflight.Add(1)
	b.closeMu.Unlock()
	go func() {
		defer b.inflight.Done()
		if obs.Status != nil && getBody != nil {
			body, err := getBody()
			if err != nil {
				slog.Debug("Failed to get response body", "request_id", ev.RequestID, "error", err)
			} else {
				obs.ResponseBody = string(body)
			}
		}
		b.capturer.Observe(obs)
	}()
}

func (b *Browser) OnLoadingFailed(_ string, ev *network.EventLoadingFailed) {
	b.pendingMu.Lock()
	delete(b.pending, string(ev.RequestID))
	b.pendingMu.Unlock()
}

func (b *Browser) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.cleanupStale()
		case <-b.done:
			return
		}
	}
}

func (b *Browser) cleanupStale() int {
	threshold := b.now().Add(-pendingMaxAge)

	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()

	reaped := 0
	for id, call := range b.pending {
		if call.seen.Before(threshold) {
			delete(b.pending, id)
			reaped++
		}
	}
	if reaped > 0 {
		slog.Debug("Reaped stale requests", "count", reaped)
	}
	return reaped
}

func headerMapToStringMap(headers map[string]any) map[string]string {
	result := make(map[string]string, len(headers))
	for k, v := range headers {
		if s, ok := v.(string); ok {
			result[strings.ToLower(k)] = s
		}
	}
	return result
}
