package relay

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

const wsWriteTimeout = 10 * time.Second

// operationFilter parses ?operations=A,B. A nil result accepts everything.
func operationFilter(r *http.Request) map[string]bool {
	q := r.URL.Query().Get("operations")
	if q == "" {
		return nil
	}
	filter := make(map[string]bool)
	for _, op := range strings.Split(q, ",") {
		if op = strings.TrimSpace(op); op != "" {
			filter[op] = true
		}
	}
	if len(filter) == 0 {
		return nil
	}
	return filter
}

// SSEHandler streams captured exchanges as server-sent events.
// Clients may restrict the feed with ?operations=UserMedia,UserTweets.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		filter := operationFilter(r)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if filter != nil && !filter[evt.Operation] {
					continue
				}
				fmt.Fprintf(w, "id: %d\nevent: exchange\ndata: %s\n\n", evt.ID, evt.Data)
				flusher.Flush()
			}
		}
	}
}

// WSHandler upgrades the request and pushes each exchange as one text
// frame. The same ?operations= filter as SSEHandler applies.
func WSHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := operationFilter(r)
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Warn("live feed: websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		// Reader goroutine notices client close frames and dead sockets.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-closed:
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if filter != nil && !filter[evt.Operation] {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := wsutil.WriteServerText(conn, evt.Data); err != nil {
					slog.Debug("live feed: websocket write failed", "error", err, "subscriber", id)
					return
				}
			}
		}
	}
}
