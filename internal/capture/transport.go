package capture

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/gql_sniffer/internal/types"
)

// Transport is an http.RoundTripper that records matching exchanges and
// hands every response back with exactly the bytes the delegate produced.
// Response bodies stream through untouched; the exchange is recorded when
// the caller finishes reading or closes the body.
type Transport struct {
	next     http.RoundTripper
	capturer *Capturer
}

// Wrap returns a capturing RoundTripper around next. Wrapping a Transport
// again returns it unchanged. A nil next means http.DefaultTransport.
func Wrap(next http.RoundTripper, c *Capturer) http.RoundTripper {
	if t, ok := next.(*Transport); ok {
		return t
	}
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{next: next, capturer: c}
}

// Install wraps client.Transport in place. Calling it twice is a no-op.
func Install(client *http.Client, c *Capturer) {
	client.Transport = Wrap(client.Transport, c)
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.capturer.Wants(req.URL.String()) {
		return t.next.RoundTrip(req)
	}

	started := time.Now()
	out := req
	var reqBody []byte
	if req.Body != nil && req.Body != http.NoBody {
		data, readErr := io.ReadAll(req.Body)
		closeErr := req.Body.Close()
		reqBody = data
		out = req.Clone(req.Context())
		out.Body = newReplayBody(data, readErr, closeErr)
	}

	resp, err := t.next.RoundTrip(out)
	if err != nil {
		return resp, err
	}

	status := resp.StatusCode
	obs := Observation{
		Transport:       types.TransportHTTP,
		Method:          req.Method,
		URL:             req.URL.String(),
		RequestHeaders:  flattenHeader(req.Header),
		RequestBody:     string(reqBody),
		Status:          &status,
		ResponseHeaders: flattenHeader(resp.Header),
		Started:         started,
		Page:            req.Header.Get("Referer"),
	}
	// A 101 body is the upgraded connection and must keep its io.Writer.
	if resp.Body == nil || resp.Body == http.NoBody || resp.StatusCode == http.StatusSwitchingProtocols {
		obs.Duration = time.Since(started)
		t.capturer.Observe(obs)
		return resp, nil
	}

	resp.Body = newTeeBody(resp.Body, t.capturer.limits.ResponseBytes, func(body string, cut *Truncated) {
		obs.ResponseBody = body
		obs.ResponseTruncated = cut
		obs.Duration = time.Since(started)
		t.capturer.Observe(obs)
	})
	return resp, nil
}

// teeBody passes upstream bytes to the caller as they arrive and keeps a
// copy of at most limit bytes (all of them when limit <= 0). done runs
// once, at EOF, on a read error or on Close, whichever comes first.
type teeBody struct {
	rc    io.ReadCloser
	limit int
	done  func(body string, cut *Truncated)

	mu       sync.Mutex
	buf      bytes.Buffer
	size     int
	rest     int
	sum      hash.Hash
	finished bool
}

func newTeeBody(rc io.ReadCloser, limit int, done func(string, *Truncated)) *teeBody {
	return &teeBody{rc: rc, limit: limit, done: done, sum: sha256.New()}
}

func (b *teeBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if n > 0 {
		b.keep(p[:n])
	}
	if err != nil {
		b.finish()
	}
	return n, err
}

func (b *teeBody) Close() error {
	err := b.rc.Close()
	b.finish()
	return err
}

func (b *teeBody) keep(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.size += len(p)
	b.sum.Write(p)
	if b.limit <= 0 {
		b.buf.Write(p)
		return
	}
	if room := b.limit - b.buf.Len(); room > 0 {
		room = min(room, len(p))
		b.buf.Write(p[:room])
		p = p[room:]
	}
	b.rest += types.CountRuneStarts(string(p))
}

func (b *teeBody) finish() {
	b.mu.Lock()
	if b.finished {
		b.mu.Unlock()
		return
	}
	b.finished = true
	body := b.buf.String()
	var cut *Truncated
	if b.limit > 0 && b.size > b.limit {
		cut = &Truncated{Size: b.size, SHA256: hex.EncodeToString(b.sum.Sum(nil)), Rest: b.rest}
	}
	b.mu.Unlock()

	b.done(body, cut)
}

// replayBody yields buffered bytes and then the error the original
// reader ended with, so a short or failed read looks the same to callers.
type replayBody struct {
	r        *bytes.Reader
	err      error
	closeErr error
}

func newReplayBody(data []byte, readErr, closeErr error) *replayBody {
	if readErr == nil {
		readErr = io.EOF
	}
	return &replayBody{r: bytes.NewReader(data), err: readErr, closeErr: closeErr}
}

func (b *replayBody) Read(p []byte) (int, error) {
	if b.r.Len() > 0 {
		return b.r.Read(p)
	}
	return 0, b.err
}

func (b *replayBody) Close() error { return b.closeErr }

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}
