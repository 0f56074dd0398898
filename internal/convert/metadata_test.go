package convert

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		want     string
	}{
		{
			name:     "first heading wins",
			markdown: "# Hello World\n\nSome text\n# Second",
			want:     "Hello World",
		},
		{
			name:     "heading after prose",
			markdown: "intro line\n\n# Real Title\nbody",
			want:     "Real Title",
		},
		{
			name:     "heading past line ten is ignored",
			markdown: strings.Repeat("filler\n", 10) + "# Too Late",
			want:     "",
		},
		{
			name:     "subheading is not a title",
			markdown: "## Section\nbody",
			want:     "",
		},
		{
			name:     "empty document",
			markdown: "",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTitle(tt.markdown))
		})
	}
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords(""))
	assert.Equal(t, 2, CountWords("hello world"))
	// Markdown punctuation is stripped before counting.
	assert.Equal(t, 4, CountWords("# Title\n\n**bold** and `code`"))
	assert.Equal(t, 2, CountWords("[link](https://example.com) text"))
}

func TestReadingTime(t *testing.T) {
	tests := []struct {
		words int
		want  int
	}{
		{0, 1},
		{1, 1},
		{99, 1},
		{100, 1},
		{101, 1},
		{400, 2},
		// Exact halves round to even.
		{300, 2},
		{500, 2},
		{700, 4},
		{301, 2},
		{1000, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReadingTime(tt.words), "words=%d", tt.words)
	}
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "example.com", Domain("https://example.com/page"))
	assert.Equal(t, "example.com", Domain("https://www.example.com/page"))
	assert.Equal(t, "docs.example.com", Domain("http://docs.example.com"))
	assert.Equal(t, "unknown", Domain("not a url"))
}

func TestDescription(t *testing.T) {
	long := "This sentence is comfortably longer than fifty characters in total length."

	t.Run("first long line", func(t *testing.T) {
		got := Description("short\n"+long+"\nother", "Title")
		assert.Equal(t, long, got)
	})

	t.Run("line starting with title is skipped", func(t *testing.T) {
		titled := "Title of the page followed by enough words to pass fifty characters."
		got := Description(titled+"\n"+long, "Title of the page")
		assert.Equal(t, long, got)
	})

	t.Run("empty title falls back", func(t *testing.T) {
		// With no title every line has the empty prefix, so the
		// fallback applies regardless of content.
		got := Description(long, "")
		assert.Equal(t, DefaultDescription, got)
	})

	t.Run("no qualifying line falls back", func(t *testing.T) {
		got := Description("short line\nanother short one", "Title")
		assert.Equal(t, DefaultDescription, got)
	})

	t.Run("long descriptions are truncated", func(t *testing.T) {
		line := strings.Repeat("word ", 60)
		got := Description(line, "Title")
		assert.LessOrEqual(t, len(got), 197)
		assert.True(t, strings.HasSuffix(got, "..."))
	})
}
