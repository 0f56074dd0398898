// Package tokenizer counts model-compatible tokens via tiktoken.
package tokenizer

import (
	"fmt"

	tiktoken "github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// DefaultEncoding is compatible with GPT-4, GPT-3.5-turbo, and Claude.
const DefaultEncoding = "cl100k_base"

// Counter counts tokens with a fixed encoding. Counting is deterministic
// for identical input; when the encoder is unavailable the count degrades
// to a length-based estimate instead of failing.
type Counter struct {
	encoding *tiktoken.Tiktoken
	name     string
	logger   *zap.Logger
}

// New initializes a Counter for the named encoding.
func New(encodingName string, logger *zap.Logger) (*Counter, error) {
	if encodingName == "" {
		encodingName = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", encodingName, err)
	}
	return &Counter{encoding: enc, name: encodingName, logger: logger}, nil
}

// NewFallback returns a Counter that only estimates. Used when the
// encoding data cannot be loaded at startup and degraded counts are
// preferable to refusing to serve.
func NewFallback(logger *zap.Logger) *Counter {
	return &Counter{name: "estimate", logger: logger}
}

// Count returns the token count for text. With no encoder loaded it
// estimates at roughly four characters per token, never less than one for
// non-empty text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.encoding == nil {
		return estimate(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// EncodingName reports which encoding the counter uses.
func (c *Counter) EncodingName() string { return c.name }

func estimate(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}
