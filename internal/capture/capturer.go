// Package capture observes HTTP exchanges from a browser or a Go client
// and records the GraphQL ones into a store.
package capture

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dgnsrekt/gql_sniffer/internal/match"
	"github.com/dgnsrekt/gql_sniffer/internal/store"
	"github.com/dgnsrekt/gql_sniffer/internal/types"
)

// Limits bound how much of each body is kept. Zero disables clipping.
type Limits struct {
	RequestBytes  int
	ResponseBytes int
}

// Truncated describes the whole of a body that was only buffered in part.
// Rest is the number of characters past the buffered prefix.
type Truncated struct {
	Size   int
	SHA256 string
	Rest   int
}

// Observation is everything seen about one call, before any filtering.
type Observation struct {
	Transport       types.Transport
	Method          string
	URL             string
	RequestHeaders  map[string]string
	RequestBody     string
	Status          *int
	ResponseHeaders map[string]string
	ResponseBody    string
	// ResponseTruncated is set when ResponseBody holds only the first
	// bytes of a larger payload.
	ResponseTruncated *Truncated
	Started         time.Time
	Duration        time.Duration
	Page            string
}

// Capturer turns observations into stored exchanges.
type Capturer struct {
	rule   match.Rule
	store  *store.Store
	limits Limits
	now    func() time.Time
}

func NewCapturer(rule match.Rule, st *store.Store, limits Limits) *Capturer {
	return &Capturer{rule: rule, store: st, limits: limits, now: time.Now}
}

// Wants reports whether rawURL is worth observing at all. Callers use it
// to skip body buffering for unrelated traffic.
func (c *Capturer) Wants(rawURL string) bool {
	return c.store.Enabled() && c.rule.IsMatch(rawURL)
}

// Store returns the backing capture store.
func (c *Capturer) Store() *store.Store { return c.store }

// Observe runs the capture side path. It never panics and never returns
// an error: failures are logged and the observation is dropped.
func (c *Capturer) Observe(obs Observation) (ex types.Exchange, kept bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("capture failed",
				"url", obs.URL,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
			ex, kept = types.Exchange{}, false
		}
	}()

	if !c.store.Enabled() {
		return types.Exchange{}, false
	}

	info := match.ParseURL(obs.URL, c.rule.Origin)
	reqHeaders := lowerKeys(obs.RequestHeaders)
	reqBody := types.ParseBody(obs.RequestBody, reqHeaders["content-type"])
	operation := match.ExtractOperation(info, reqBody, reqHeaders)

	if !c.rule.ShouldKeep(obs.URL, operation, obs.Status) {
		slog.Debug("exchange dropped", "operation", operation, "url", info.Href, "status", statusAttr(obs.Status))
		return types.Exchange{}, false
	}

	respHeaders := lowerKeys(obs.ResponseHeaders)
	var respBody types.Body
	if cut := obs.ResponseTruncated; cut != nil {
		respBody = types.ClippedRaw(obs.ResponseBody, cut.Rest, cut.Size, cut.SHA256)
	} else {
		respBody = types.ParseBody(obs.ResponseBody, respHeaders["content-type"]).Clip(c.limits.ResponseBytes)
	}

	started := obs.Started
	if started.IsZero() {
		started = c.now()
	}

	ex, kept = c.store.Append(types.Exchange{
		Timestamp:       started.UTC(),
		Transport:       obs.Transport,
		Method:          strings.ToUpper(obs.Method),
		URL:             info.Href,
		Pathname:        info.Pathname,
		Operation:       &operation,
		Query:           info.Query,
		RequestHeaders:  reqHeaders,
		RequestBody:     reqBody.Clip(c.limits.RequestBytes),
		Status:          obs.Status,
		ResponseHeaders: respHeaders,
		ResponseBody:    respBody,
		DurationMS:      obs.Duration.Milliseconds(),
		Page:            obs.Page,
	})
	if !kept {
		return types.Exchange{}, false
	}

	slog.Info("captured",
		"operation", operation,
		"status", statusAttr(obs.Status),
		"url", info.Href,
		"total", c.store.Count())
	return ex, true
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}

func statusAttr(status *int) any {
	if status == nil {
		return "none"
	}
	return *status
}
