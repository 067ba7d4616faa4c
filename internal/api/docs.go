package api

import "strings"

// Console pages share one dark header bar. navBar marks the page named
// current and links the other one.
const consoleStyle = `
    body { margin: 0; background: #0d1117; color: #c9d1d9; font: 14px/1.6 system-ui, sans-serif; }
    a { color: #58a6ff; }
    nav { display: flex; gap: 16px; align-items: center; height: 44px; padding: 0 20px; background: #161b22; border-bottom: 1px solid #30363d; }
    nav .brand, nav .current { color: #e6edf3; font-weight: 600; }
    nav .sep { color: #484f58; }
    nav .other { margin-left: auto; font-size: 12px; text-decoration: none; }
`

var consolePages = []struct{ name, href string }{
	{"REST API", "/docs"},
	{"Live Feed", "/docs/feed"},
}

func navBar(current string) string {
	var b strings.Builder
	b.WriteString("<nav>\n  <span class=\"brand\">gql_sniffer</span>\n  <span class=\"sep\">/</span>\n")
	b.WriteString("  <span class=\"current\">" + current + "</span>\n")
	for _, p := range consolePages {
		if p.name != current {
			b.WriteString("  <a class=\"other\" href=\"" + p.href + "\">" + p.name + " &rarr;</a>\n")
		}
	}
	b.WriteString("</nav>\n")
	return b.String()
}

func consolePage(title, current, head, body string) string {
	return `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>` + title + `</title>
` + head + `  <style>` + consoleStyle + `  </style>
</head>
<body>
` + navBar(current) + body + `</body>
</html>`
}

// docsHTML renders the OpenAPI reference served at /openapi.json.
var docsHTML = consolePage("gql_sniffer Console API", "REST API", `  <meta name="referrer" content="same-origin" />
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
  <style>
    body { height: 100vh; display: flex; flex-direction: column; }
    elements-api { flex: 1; min-height: 0; }
  </style>
`, `<elements-api
  apiDescriptionUrl="/openapi.json"
  router="hash"
  layout="sidebar"
  tryItCredentialsPolicy="same-origin"
  darkMode
/>
`)
