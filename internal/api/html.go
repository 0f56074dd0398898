package api

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

// readPage is the server-rendered article shell. Markdown is rendered
// client-side; the server supplies content, metadata, and the structured
// data crawlers read.
var readPage = template.Must(template.New("read").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}} | ctxt.help</title>
<meta name="description" content="{{.MetaDescription}}">
<meta name="keywords" content="markdown, converter, AI, LLM, context, {{.Domain}}">
<meta name="robots" content="index, follow">
<link rel="canonical" href="{{.CanonicalURL}}">
<meta property="og:title" content="{{.Title}}">
<meta property="og:description" content="{{.MetaDescription}}">
<meta property="og:url" content="{{.CanonicalURL}}">
<meta property="og:type" content="article">
<meta property="og:site_name" content="ctxt.help">
<meta property="article:published_time" content="{{.PublishedISO}}">
<meta name="twitter:card" content="summary_large_image">
<meta name="twitter:title" content="{{.Title}}">
<meta name="twitter:description" content="{{.MetaDescription}}">
<script type="application/ld+json">{{.StructuredData}}</script>
<style>
  body { margin: 0; font-family: system-ui, sans-serif; background: #f9fafb; color: #111827; }
  header, footer { background: #fff; border-bottom: 1px solid #e5e7eb; padding: 1rem 2rem; }
  footer { border-top: 1px solid #e5e7eb; border-bottom: none; margin-top: 4rem; text-align: center; font-size: 0.85rem; color: #6b7280; }
  main { max-width: 800px; margin: 2rem auto; padding: 0 1rem; }
  article { background: #fff; border-radius: 0.5rem; padding: 2rem; line-height: 1.7; }
  .meta { color: #6b7280; font-size: 0.9rem; margin-bottom: 1.5rem; }
  .meta a { color: #2563eb; }
  pre { background: #1e293b; color: #f1f5f9; padding: 1rem; border-radius: 0.5rem; overflow-x: auto; }
  code { background: #f1f5f9; padding: 0.2rem 0.4rem; border-radius: 0.25rem; }
  pre code { background: transparent; padding: 0; }
</style>
</head>
<body>
<header>
  <a href="{{.SiteURL}}" style="font-weight:bold;color:#2563eb;text-decoration:none">ctxt.help</a>
  <span style="float:right;color:#6b7280;font-size:0.9rem">{{.ViewCount}} views</span>
</header>
<main>
  <article>
    <h1>{{.Title}}</h1>
    <div class="meta">
      {{.PublishedHuman}} &middot;
      <a href="{{.SourceURL}}" target="_blank" rel="noopener">{{.Domain}}</a> &middot;
      {{.WordCount}} words &middot; {{.ReadingTime}} min read
    </div>
    <div id="markdown-content">{{.Content}}</div>
    <footer style="border:none;margin-top:3rem;padding:0;text-align:left">
      <p>Converted from <a href="{{.SourceURL}}" target="_blank" rel="noopener">{{.SourceURL}}</a>
      by <a href="{{.SiteURL}}">ctxt.help</a> - The LLM Context Builder.</p>
      <p>Permanent link: <code>{{.CanonicalURL}}</code></p>
    </footer>
  </article>
</main>
<footer>&copy; ctxt.help - The LLM Context Builder</footer>
</body>
</html>
`))

type readPageData struct {
	Title           string
	MetaDescription string
	Domain          string
	SourceURL       string
	CanonicalURL    string
	SiteURL         string
	Content         string
	WordCount       int
	ReadingTime     int
	ViewCount       int
	PublishedISO    string
	PublishedHuman  string
	StructuredData  template.JS
}

// serveHTML renders the article page for browsers.
func (s *Server) serveHTML(w http.ResponseWriter, conv core.Conversion) {
	canonical := s.cfg.Site.BaseURL + "/read/" + conv.Slug

	data := readPageData{
		Title:           conv.Title,
		MetaDescription: metaDescription(conv),
		Domain:          conv.Domain,
		SourceURL:       conv.SourceURL,
		CanonicalURL:    canonical,
		SiteURL:         s.cfg.Site.BaseURL,
		Content:         conv.Content,
		WordCount:       conv.WordCount,
		ReadingTime:     conv.ReadingTime,
		ViewCount:       conv.ViewCount + 1,
		PublishedISO:    conv.CreatedAt.UTC().Format(time.RFC3339),
		PublishedHuman:  conv.CreatedAt.UTC().Format("January 2, 2006"),
		StructuredData:  structuredData(conv, canonical),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Robots-Tag", "index, follow")
	if err := readPage.Execute(w, data); err != nil {
		s.logger.Error("render read page failed", zap.Error(err))
	}
}

func metaDescription(conv core.Conversion) string {
	desc := conv.Description
	if desc == "" {
		desc = conv.Content
	}
	if len(desc) > 155 {
		desc = desc[:152] + "..."
	}
	return desc
}

// structuredData emits the schema.org Article JSON-LD block.
func structuredData(conv core.Conversion, canonical string) template.JS {
	body := conv.Content
	if len(body) > 500 {
		body = body[:500] + "..."
	}

	doc := map[string]any{
		"@context":      "https://schema.org",
		"@type":         "Article",
		"headline":      conv.Title,
		"description":   metaDescription(conv),
		"url":           canonical,
		"datePublished": conv.CreatedAt.UTC().Format(time.RFC3339),
		"dateModified":  conv.UpdatedAt.UTC().Format(time.RFC3339),
		"wordCount":     conv.WordCount,
		"articleBody":   body,
		"author":        map[string]any{"@type": "Organization", "name": "ctxt.help"},
		"mainEntityOfPage": map[string]any{
			"@type": "WebPage",
			"@id":   canonical,
		},
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return "{}"
	}
	return template.JS(out)
}
