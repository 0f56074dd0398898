package stack

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

// Format selects an export rendering.
type Format string

// Supported export formats.
const (
	FormatXML      Format = "xml"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a caller-supplied format string, defaulting to XML.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return FormatXML, nil
	case FormatXML:
		return FormatXML, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatMarkdown:
		return FormatMarkdown, nil
	default:
		return "", &core.ValidationError{Field: "format", Detail: "format must be one of: xml, json, markdown"}
	}
}

// ExportOptions tune a single export.
type ExportOptions struct {
	Format Format
	// Wrapper overrides the root XML element name. Ignored by other
	// formats.
	Wrapper string
	// IncludeSources keeps URL and title provenance on url blocks.
	IncludeSources bool
}

// Export is a rendered stack ready for delivery.
type Export struct {
	Content    string    `json:"content"`
	Format     Format    `json:"format"`
	Name       string    `json:"name"`
	ExportedAt time.Time `json:"exported_at"`
}

// xmlName restricts wrapper elements to safe XML identifiers.
var xmlName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._-]*$`)

// Render produces the stack in the requested format. Block order is
// preserved exactly.
func Render(s core.ContextStack, opts ExportOptions, now time.Time) (Export, error) {
	var (
		content string
		err     error
	)
	switch opts.Format {
	case FormatJSON:
		content, err = renderJSON(s, opts.IncludeSources)
	case FormatMarkdown:
		content = renderMarkdown(s, opts.IncludeSources)
	default:
		content, err = renderXML(s, opts.Wrapper, opts.IncludeSources)
	}
	if err != nil {
		return Export{}, err
	}
	return Export{
		Content:    content,
		Format:     opts.Format,
		Name:       s.Name,
		ExportedAt: now,
	}, nil
}

// renderXML emits one element per block, numbered in order. All text and
// attribute values go through XML escaping so block content can never break
// out of its element.
func renderXML(s core.ContextStack, wrapper string, includeSources bool) (string, error) {
	root := "context"
	if wrapper != "" {
		if !xmlName.MatchString(wrapper) {
			return "", &core.ValidationError{Field: "wrapper", Detail: "wrapper must be a valid XML element name"}
		}
		root = wrapper
	}

	var b strings.Builder
	b.WriteString("<" + root + ">")

	if s.Description != "" {
		b.WriteString("\n  <description>" + escapeXML(s.Description) + "</description>")
	}

	for i, block := range s.Blocks {
		name := fmt.Sprintf("text_%d", i+1)
		attrs := ""
		if block.Type == core.BlockTypeURL {
			name = fmt.Sprintf("source_%d", i+1)
			if includeSources {
				title := block.Title
				if title == "" {
					title = "Untitled"
				}
				attrs = fmt.Sprintf(` url="%s" title="%s"`, escapeXML(block.URL), escapeXML(title))
			}
		}
		b.WriteString(fmt.Sprintf("\n  <%s%s>\n    %s\n  </%s>", name, attrs, escapeXML(block.Content), name))
	}

	b.WriteString("\n</" + root + ">")
	return b.String(), nil
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	// EscapeText only fails on writer errors; bytes.Buffer cannot.
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

type jsonExport struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Blocks      any                `json:"blocks"`
	Metadata    jsonExportMetadata `json:"metadata"`
}

type jsonExportMetadata struct {
	CreatedAt  time.Time `json:"created_at"`
	UseCount   int       `json:"use_count"`
	IsTemplate bool      `json:"is_template"`
}

type contentOnlyBlock struct {
	Content string `json:"content"`
}

func renderJSON(s core.ContextStack, includeSources bool) (string, error) {
	var blocks any
	if includeSources {
		blocks = s.Blocks
	} else {
		stripped := make([]contentOnlyBlock, len(s.Blocks))
		for i, b := range s.Blocks {
			stripped[i] = contentOnlyBlock{Content: b.Content}
		}
		blocks = stripped
	}

	out, err := json.MarshalIndent(jsonExport{
		Name:        s.Name,
		Description: s.Description,
		Blocks:      blocks,
		Metadata: jsonExportMetadata{
			CreatedAt:  s.CreatedAt,
			UseCount:   s.UseCount,
			IsTemplate: s.IsTemplate,
		},
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal stack export: %w", err)
	}
	return string(out), nil
}

func renderMarkdown(s core.ContextStack, includeSources bool) string {
	lines := []string{"# " + s.Name, ""}
	if s.Description != "" {
		lines = append(lines, s.Description, "")
	}

	for i, block := range s.Blocks {
		if block.Type == core.BlockTypeURL && includeSources {
			title := block.Title
			if title == "" {
				title = "Untitled"
			}
			lines = append(lines,
				fmt.Sprintf("## Source %d: %s", i+1, title),
				"**URL:** "+block.URL,
				"",
				block.Content,
				"",
				"---",
				"",
			)
			continue
		}
		lines = append(lines,
			fmt.Sprintf("## Block %d", i+1),
			"",
			block.Content,
			"",
			"---",
			"",
		)
	}

	return strings.Join(lines, "\n")
}
