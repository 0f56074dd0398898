package convert

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxthelp/ctxt-api/internal/hash/sha256"
)

type memSlugs struct {
	taken map[string]bool
}

func (m *memSlugs) SlugExists(_ context.Context, slug string) (bool, error) {
	return m.taken[slug], nil
}

func TestGenerateSlug(t *testing.T) {
	hasher := sha256.New()

	tests := []struct {
		name  string
		title string
		url   string
		want  string
	}{
		{
			name:  "title drives the slug",
			title: "How To Build Reliable Systems",
			url:   "https://example.com/post",
			want:  "how-to-build-reliable-systems",
		},
		{
			name:  "punctuation is dropped",
			title: "Go 1.22: What's New?",
			url:   "https://example.com/post",
			want:  "go-122-whats-new",
		},
		{
			name:  "short title falls back to the full path",
			title: "Short",
			url:   "https://example.com/articles/deep-dive",
			want:  "articles-deep-dive",
		},
		{
			name:  "nested paths keep every segment",
			title: "",
			url:   "https://example.com/guides/networking/tcp-tuning",
			want:  "guides-networking-tcp-tuning",
		},
		{
			name:  "disallowed path characters are deleted",
			title: "",
			url:   "https://example.com/posts/Hello_World.html",
			want:  "posts-helloworldhtml",
		},
		{
			name:  "no title no path uses hash",
			title: "",
			url:   "https://example.com/",
		},
		{
			name:  "too-short path uses hash",
			title: "",
			url:   "https://example.com/ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateSlug(tt.title, tt.url, hasher)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
				return
			}
			assert.True(t, strings.HasPrefix(got, "conversion-"))
			assert.Len(t, got, len("conversion-")+8)
		})
	}

	t.Run("deterministic", func(t *testing.T) {
		a := GenerateSlug("", "https://example.com/", hasher)
		b := GenerateSlug("", "https://example.com/", hasher)
		assert.Equal(t, a, b)
	})

	t.Run("long titles are capped", func(t *testing.T) {
		title := strings.Repeat("word ", 40)
		got := GenerateSlug(title, "https://example.com/post", hasher)
		assert.LessOrEqual(t, len(got), 80)
		assert.False(t, strings.HasSuffix(got, "-"))
	})
}

func TestEnsureUnique(t *testing.T) {
	ctx := context.Background()

	t.Run("free slug returned unchanged", func(t *testing.T) {
		store := &memSlugs{taken: map[string]bool{}}
		got, err := EnsureUnique(ctx, store, "my-post")
		require.NoError(t, err)
		assert.Equal(t, "my-post", got)
	})

	t.Run("suffix increments past collisions", func(t *testing.T) {
		store := &memSlugs{taken: map[string]bool{
			"my-post":   true,
			"my-post-1": true,
			"my-post-2": true,
		}}
		got, err := EnsureUnique(ctx, store, "my-post")
		require.NoError(t, err)
		assert.Equal(t, "my-post-3", got)
	})

	t.Run("length stays bounded under heavy collision", func(t *testing.T) {
		base := strings.Repeat("a", 100)
		store := &memSlugs{taken: map[string]bool{base: true}}
		for i := 1; i < 120; i++ {
			suffix := "-" + strconv.Itoa(i)
			store.taken[base[:100-len(suffix)]+suffix] = true
		}
		got, err := EnsureUnique(ctx, store, base)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(got), 100)
		assert.False(t, store.taken[got])
	})
}
