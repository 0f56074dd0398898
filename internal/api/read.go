package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ctxthelp/ctxt-api/internal/core"
	"github.com/ctxthelp/ctxt-api/internal/metrics"
)

// readConversion serves a published conversion. Crawlers that consume text
// get the raw markdown with a metadata header; everyone else gets the
// rendered page.
func (s *Server) readConversion(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	conv, err := s.deps.Conversions.GetBySlug(r.Context(), slug)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.deps.Conversions.IncrementViews(r.Context(), conv.ID); err != nil {
		s.logger.Warn("view count update failed", zap.String("slug", slug), zap.Error(err))
	}

	classification := s.deps.Detector.Classify(r.UserAgent())
	plainText := s.deps.Detector.ServePlainText(classification)
	s.deps.Detector.LogAccess(classification, slug, plainText)
	if classification.IsBot {
		metrics.ObserveBotRequest(string(classification.Category))
	}

	if plainText {
		s.serveMarkdown(w, conv)
		return
	}
	s.serveHTML(w, conv)
}

// serveMarkdown emits the raw markdown wrapped in a metadata header block.
func (s *Server) serveMarkdown(w http.ResponseWriter, conv core.Conversion) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", conv.Title)
	fmt.Fprintf(&b, "**Source:** %s\n", conv.SourceURL)
	fmt.Fprintf(&b, "**Domain:** %s\n", conv.Domain)
	fmt.Fprintf(&b, "**Published:** %s\n", conv.CreatedAt.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "**Word Count:** %d\n", conv.WordCount)
	fmt.Fprintf(&b, "**Reading Time:** %d minutes\n\n", conv.ReadingTime)
	b.WriteString("---\n\n")
	b.WriteString(conv.Content)
	b.WriteString("\n\n---\n")
	b.WriteString("*Converted by ctxt.help - The LLM Context Builder*\n")
	fmt.Fprintf(&b, "*Permanent link: %s/read/%s*\n", s.cfg.Site.BaseURL, conv.Slug)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("X-Robots-Tag", "index, follow")
	w.Header().Set("X-Content-Type", "markdown")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(b.String())); err != nil {
		s.logger.Error("write markdown failed", zap.Error(err))
	}
}
