package view

import (
	"bytes"
	"html/template"
)

// BlockedPageData provides the dynamic fields for the geo-block page shown
// when an offer has no non-access URL of its own.
type BlockedPageData struct {
	Title   string
	Country string
}

var blockedPageTmpl = template.Must(template.New("blocked_page").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<title>{{if .Title}}{{.Title}}{{else}}Offer unavailable{{end}}</title>
	<style>
		:root {
			--bg: #090a0f;
			--card: rgba(255, 255, 255, 0.05);
			--border: rgba(255, 255, 255, 0.15);
			--text: #e7ecff;
			--muted: #a1acc5;
			font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		* { box-sizing: border-box; }
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: radial-gradient(circle at 20% 20%, #111827, #030712 60%);
			color: var(--text);
		}
		.card {
			background: var(--card);
			border: 1px solid var(--border);
			border-radius: 18px;
			padding: 32px;
			width: min(520px, 92vw);
			box-shadow: 0 45px 100px rgba(0,0,0,0.35);
			backdrop-filter: blur(18px);
			text-align: center;
		}
		h1 { font-size: 1.5rem; margin-bottom: 6px; }
		p { color: var(--muted); margin: 0; }
	</style>
</head>
<body>
	<div class="card">
		<h1>This offer is not available in your region</h1>
		{{if .Country}}<p>Detected country: {{.Country}}</p>{{else}}<p>Please check back later.</p>{{end}}
	</div>
</body>
</html>
`))

// RenderBlockedPage renders the geo-block page to a string.
func RenderBlockedPage(data BlockedPageData) (string, error) {
	var buf bytes.Buffer
	if err := blockedPageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
