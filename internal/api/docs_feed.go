package api

var feedDocsHTML = consolePage("Live Feed - gql_sniffer", "Live Feed", `  <style>
    .layout { display: flex; max-width: 1000px; margin: 0 auto; padding: 0 16px; }
    aside { width: 180px; padding: 28px 12px 0 0; }
    aside h4 { margin: 0 0 8px; font-size: 11px; text-transform: uppercase; color: #8b949e; }
    aside ul { list-style: none; margin: 0; padding: 0; }
    aside li a { display: block; padding: 3px 6px; font-size: 13px; color: #8b949e; text-decoration: none; }
    main { flex: 1; min-width: 0; padding: 28px 0 48px 28px; border-left: 1px solid #21262d; }
    h1 { margin: 0 0 4px; color: #e6edf3; }
    h2 { margin: 32px 0 10px; padding-bottom: 6px; border-bottom: 1px solid #21262d; color: #e6edf3; font-size: 18px; }
    h3 { margin: 20px 0 8px; color: #e6edf3; font-size: 15px; }
    .subtitle { color: #8b949e; margin: 0 0 28px; }
    .endpoint { margin: 6px 0; font-family: ui-monospace, monospace; }
    .method { background: #1f6feb; color: #fff; border-radius: 4px; padding: 1px 6px; margin-right: 8px; font-size: 12px; }
    table { border-collapse: collapse; width: 100%; margin: 8px 0 16px; }
    th, td { border: 1px solid #30363d; padding: 6px 10px; text-align: left; vertical-align: top; }
    code, pre { font-family: ui-monospace, monospace; font-size: 13px; }
    pre, .sse-block { background: #161b22; border: 1px solid #30363d; border-radius: 6px; padding: 12px 14px; overflow-x: auto; }
    .sse-key { color: #ff7b72; }
    .sse-value { color: #a5d6ff; }
  </style>
`, `

<div class="layout">

  <aside>
    <h4>On this page</h4>
    <ul>
      <li><a href="#overview">Overview</a></li>
      <li><a href="#endpoints">Endpoints</a></li>
      <li><a href="#format">Event Format</a></li>
      <li><a href="#examples">Examples</a></li>
      <li><a href="#notes">Notes</a></li>
    </ul>
  </aside>

  <main>
    <h1>Live Feed</h1>
    <p class="subtitle">Receive every kept GraphQL exchange the moment it is stored.</p>

    <h2 id="overview">Overview</h2>
    <p>
      Each exchange accepted by the capture store is pushed to every connected
      client, either as a Server-Sent Event or as a WebSocket text frame. The
      payload is the same JSON document returned by <code>GET /api/v1/captures</code>.
    </p>
    <p>
      Exchanges refused while capture is paused, and exchanges dropped by the match
      rules, never reach the feed.
    </p>

    <h2 id="endpoints">Endpoints</h2>
    <div class="endpoint">
      <span class="method">GET</span>
      <span class="path">/api/v1/captures/stream</span>
    </div>
    <div class="endpoint">
      <span class="method">GET</span>
      <span class="path">/api/v1/captures/ws</span>
    </div>

    <h3>Query Parameters</h3>
    <table>
      <thead>
        <tr><th>Name</th><th>Type</th><th>Required</th><th>Description</th></tr>
      </thead>
      <tbody>
        <tr>
          <td><code>operations</code></td>
          <td>string</td>
          <td>No</td>
          <td>
            Comma-separated operation names to receive. Omit to receive every
            exchange. Example: <code>?operations=UserMedia,UserTweets</code>
          </td>
        </tr>
      </tbody>
    </table>

    <h2 id="format">Event Format</h2>
    <p>SSE events carry the store ID and the fixed event name <code>exchange</code>.</p>
    <div class="sse-block">
      <span class="sse-key">id:</span> <span class="sse-value">42</span><br>
      <span class="sse-key">event:</span> <span class="sse-value">exchange</span><br>
      <span class="sse-key">data:</span> <span class="sse-value">{"id":42,"operation":"UserMedia","status":200,...}</span><br>
      <br>
    </div>
    <p>WebSocket clients receive the bare JSON document, one exchange per frame.</p>

    <h2 id="examples">Examples</h2>

    <h3>Browser - EventSource</h3>
    <pre><code>const sse = new EventSource('http://127.0.0.1:8190/api/v1/captures/stream?operations=UserMedia');

sse.addEventListener('exchange', (e) => {
  const ex = JSON.parse(e.data);
  console.log(ex.id, ex.operation, ex.status);
});</code></pre>

    <h3>Browser - WebSocket</h3>
    <pre><code>const ws = new WebSocket('ws://127.0.0.1:8190/api/v1/captures/ws');
ws.onmessage = (e) => console.log(JSON.parse(e.data));</code></pre>

    <h3>curl</h3>
    <pre><code>curl -N http://127.0.0.1:8190/api/v1/captures/stream</code></pre>

    <h2 id="notes">Notes</h2>
    <ul>
      <li>
        <strong>Back-pressure:</strong> each subscriber has a 256-event buffer.
        Slow clients lose events; the capture path never waits on them.
      </li>
      <li>
        <strong>Authentication:</strong> none. Keep <code>SNIFFER_BIND_ADDR</code> on
        <code>127.0.0.1</code> (the default).
      </li>
    </ul>

  </main>
</div>

`)
