package capture

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// NewReverseProxy forwards every request to target through a capturing
// Transport. Accept-Encoding is dropped upstream so bodies are recorded
// decoded.
func NewReverseProxy(target *url.URL, c *Capturer) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		r.Host = target.Host
		r.Header.Del("Accept-Encoding")
	}
	proxy.Transport = Wrap(http.DefaultTransport, c)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Warn("proxy upstream failed", "url", r.URL.String(), "error", err)
		w.WriteHeader(http.StatusBadGateway)
	}
	return proxy
}
