//go:build integration

package integration

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestHealth(t *testing.T) {
	resp := env.GET(t, "/health")
	requireStatus(t, resp, http.StatusOK)
	result := decodeJSON[health](t, resp)
	requireField(t, result.Status, "ok", "status")
}

func TestDocs(t *testing.T) {
	for _, path := range []string{"/docs", "/docs/feed", "/openapi.json"} {
		resp := env.GET(t, path)
		requireStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}
}

func TestExportText(t *testing.T) {
	resp := env.GET(t, "/api/v1/captures/export")
	requireStatus(t, resp, http.StatusOK)
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("Content-Type = %q, want text/plain", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	t.Logf("export text: %d bytes", len(body))
}
