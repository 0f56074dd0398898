package stack

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

func sampleStack() core.ContextStack {
	return core.ContextStack{
		ID:          "st-1",
		AccountID:   "acct-1",
		Name:        "Research Pack",
		Description: "Notes for the project",
		Blocks: []core.Block{
			{Type: core.BlockTypeURL, URL: "https://example.com/a", Title: "Article A", Content: "first source body"},
			{Type: core.BlockTypeText, Content: "free-form notes"},
			{Type: core.BlockTypeURL, URL: "https://example.com/b", Content: "second source body"},
		},
		UseCount:  7,
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestParseFormat(t *testing.T) {
	for raw, want := range map[string]Format{
		"":         FormatXML,
		"xml":      FormatXML,
		"JSON":     FormatJSON,
		"markdown": FormatMarkdown,
	} {
		got, err := ParseFormat(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("yaml")
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestRenderXML(t *testing.T) {
	now := time.Now().UTC()

	t.Run("numbered elements in order", func(t *testing.T) {
		out, err := Render(sampleStack(), ExportOptions{Format: FormatXML, IncludeSources: true}, now)
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(out.Content, "<context>"))
		assert.Contains(t, out.Content, `<source_1 url="https://example.com/a" title="Article A">`)
		assert.Contains(t, out.Content, "<text_2>")
		assert.Contains(t, out.Content, `<source_3 url="https://example.com/b" title="Untitled">`)
		assert.Contains(t, out.Content, "<description>Notes for the project</description>")
		assert.Less(t,
			strings.Index(out.Content, "source_1"),
			strings.Index(out.Content, "text_2"),
		)
	})

	t.Run("sources omitted", func(t *testing.T) {
		out, err := Render(sampleStack(), ExportOptions{Format: FormatXML}, now)
		require.NoError(t, err)
		assert.NotContains(t, out.Content, "url=")
		assert.Contains(t, out.Content, "<source_1>")
	})

	t.Run("content is escaped", func(t *testing.T) {
		s := sampleStack()
		s.Blocks = []core.Block{{
			Type:    core.BlockTypeText,
			Content: "</text_1><evil>&",
		}}
		out, err := Render(s, ExportOptions{Format: FormatXML}, now)
		require.NoError(t, err)
		assert.NotContains(t, out.Content, "<evil>")
		assert.Contains(t, out.Content, "&lt;evil&gt;&amp;")
	})

	t.Run("custom wrapper", func(t *testing.T) {
		out, err := Render(sampleStack(), ExportOptions{Format: FormatXML, Wrapper: "bundle"}, now)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out.Content, "<bundle>"))
		assert.True(t, strings.HasSuffix(out.Content, "</bundle>"))
	})

	t.Run("wrapper must be a valid element name", func(t *testing.T) {
		_, err := Render(sampleStack(), ExportOptions{Format: FormatXML, Wrapper: "a><script"}, now)
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestRenderJSON(t *testing.T) {
	now := time.Now().UTC()

	out, err := Render(sampleStack(), ExportOptions{Format: FormatJSON, IncludeSources: true}, now)
	require.NoError(t, err)

	var decoded struct {
		Name        string       `json:"name"`
		Description string       `json:"description"`
		Blocks      []core.Block `json:"blocks"`
		Metadata    struct {
			UseCount   int  `json:"use_count"`
			IsTemplate bool `json:"is_template"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal([]byte(out.Content), &decoded))

	assert.Equal(t, "Research Pack", decoded.Name)
	require.Len(t, decoded.Blocks, 3)
	assert.Equal(t, "https://example.com/a", decoded.Blocks[0].URL)
	assert.Equal(t, 7, decoded.Metadata.UseCount)

	t.Run("sources stripped to content", func(t *testing.T) {
		out, err := Render(sampleStack(), ExportOptions{Format: FormatJSON}, now)
		require.NoError(t, err)
		assert.NotContains(t, out.Content, "example.com/a")
		assert.Contains(t, out.Content, "first source body")
	})
}

func TestRenderMarkdown(t *testing.T) {
	now := time.Now().UTC()

	out, err := Render(sampleStack(), ExportOptions{Format: FormatMarkdown, IncludeSources: true}, now)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out.Content, "# Research Pack"))
	assert.Contains(t, out.Content, "## Source 1: Article A")
	assert.Contains(t, out.Content, "**URL:** https://example.com/a")
	assert.Contains(t, out.Content, "## Block 2")
	assert.Contains(t, out.Content, "## Source 3: Untitled")
	assert.Contains(t, out.Content, "---")

	t.Run("url blocks fold into plain blocks without sources", func(t *testing.T) {
		out, err := Render(sampleStack(), ExportOptions{Format: FormatMarkdown}, now)
		require.NoError(t, err)
		assert.Contains(t, out.Content, "## Block 1")
		assert.NotContains(t, out.Content, "**URL:**")
	})
}
