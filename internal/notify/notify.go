package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dgnsrekt/gql_sniffer/internal/export"
)

// Notifier posts export notices to an ntfy-style endpoint. A Notifier
// with an empty endpoint does nothing.
type Notifier struct {
	client   *http.Client
	endpoint string
}

func New(client *http.Client, endpoint string) *Notifier {
	return &Notifier{client: client, endpoint: endpoint}
}

// Enabled reports whether an endpoint is configured.
func (n *Notifier) Enabled() bool { return n != nil && n.endpoint != "" }

// ExportMessage renders the notice sent when an export completes.
func ExportMessage(meta export.Meta) string {
	msg := fmt.Sprintf("Export %s written: %d exchanges, %d bytes.", meta.Filename, meta.Exchanges, meta.SizeBytes)
	if meta.BucketKey != "" {
		msg += " Uploaded to " + meta.BucketKey + "."
	}
	return msg
}

// SendExport announces a finished export.
func (n *Notifier) SendExport(ctx context.Context, meta export.Meta) error {
	if !n.Enabled() {
		return nil
	}
	return Send(ctx, n.client, n.endpoint, ExportMessage(meta))
}

// Send sends a message to the requested endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	if endpoint == "" {
		return errors.New("ntfy notification failed: endpoint is empty")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Title", "gql_sniffer")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
