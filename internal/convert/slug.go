package convert

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

// maxSlugLength bounds the final slug including any uniqueness suffix.
const maxSlugLength = 100

// maxSlugAttempts bounds the uniqueness probe so a pathological keyspace
// cannot spin forever.
const maxSlugAttempts = 150

// minSlugLength is the shortest base slug accepted before falling back to
// the URL hash.
const minSlugLength = 3

var (
	slugDisallowed     = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugWhitespace     = regexp.MustCompile(`[\s_]+`)
	slugHyphenRuns     = regexp.MustCompile(`-+`)
	slugPathDisallowed = regexp.MustCompile(`[^a-z0-9-]+`)
)

// GenerateSlug derives a deterministic base slug for a conversion. Titles
// longer than ten characters win; otherwise the full URL path is used; a
// result shorter than three characters falls back to a hash of the URL.
func GenerateSlug(title, sourceURL string, hasher core.Hasher) string {
	if len(title) > 10 {
		if s := slugifyTitle(title); len(s) >= minSlugLength {
			return s
		}
	}

	if s := slugifyPath(sourceURL); len(s) >= minSlugLength {
		return s
	}

	digest, err := hasher.Hash([]byte(sourceURL))
	if err != nil || len(digest) < 8 {
		digest = "00000000"
	}
	return "conversion-" + digest[:8]
}

func slugifyTitle(title string) string {
	s := strings.ToLower(title)
	s = slugDisallowed.ReplaceAllString(s, "")
	s = slugWhitespace.ReplaceAllString(s, "-")
	s = slugHyphenRuns.ReplaceAllString(s, "-")
	if len(s) > 80 {
		s = s[:80]
	}
	return strings.Trim(s, "-")
}

// slugifyPath turns the whole URL path into a slug: path separators become
// hyphens and any other disallowed characters are deleted outright.
func slugifyPath(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	s := strings.Trim(u.Path, "/")
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "/", "-")
	s = slugPathDisallowed.ReplaceAllString(strings.ToLower(s), "")
	if len(s) > 80 {
		s = s[:80]
	}
	return strings.Trim(s, "-")
}

// SlugChecker reports whether a slug is already taken.
type SlugChecker interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// EnsureUnique probes the store for a free slug, appending -1, -2 and so
// on. The base is truncated so base plus suffix never exceeds the length
// limit.
func EnsureUnique(ctx context.Context, store SlugChecker, base string) (string, error) {
	if base == "" {
		base = "conversion"
	}
	if len(base) > maxSlugLength {
		base = strings.Trim(base[:maxSlugLength], "-")
	}

	taken, err := store.SlugExists(ctx, base)
	if err != nil {
		return "", fmt.Errorf("check slug %q: %w", base, err)
	}
	if !taken {
		return base, nil
	}

	for i := 1; i <= maxSlugAttempts; i++ {
		suffix := fmt.Sprintf("-%d", i)
		candidate := base
		if len(candidate)+len(suffix) > maxSlugLength {
			candidate = strings.Trim(candidate[:maxSlugLength-len(suffix)], "-")
		}
		candidate += suffix

		taken, err := store.SlugExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free slug for %q after %d attempts", base, maxSlugAttempts)
}
