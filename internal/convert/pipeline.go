// Package convert turns webpages into stored markdown conversions.
package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

// createRetries bounds how many slug collisions a single create will absorb
// before giving up. Collisions past the uniqueness probe mean a concurrent
// create won the same slug.
const createRetries = 5

// Request describes a single conversion.
type Request struct {
	URL string
	// AccountID is nil for anonymous conversions.
	AccountID *string
	// Save controls persistence. Preview requests run the full pipeline
	// but never touch the store or usage counters.
	Save bool
	// IsPublic marks the conversion discoverable when saved.
	IsPublic bool
}

// Pipeline orchestrates validation, extraction, metadata derivation, slug
// assignment and persistence.
type Pipeline struct {
	conversions core.ConversionStore
	accounts    core.AccountStore
	extractor   core.Extractor
	tokenizer   core.Tokenizer
	idGen       core.IDGenerator
	hasher      core.Hasher
	clock       core.Clock
	logger      *zap.Logger
}

// NewPipeline wires a conversion pipeline.
func NewPipeline(
	conversions core.ConversionStore,
	accounts core.AccountStore,
	extractor core.Extractor,
	tokenizer core.Tokenizer,
	idGen core.IDGenerator,
	hasher core.Hasher,
	clock core.Clock,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		conversions: conversions,
		accounts:    accounts,
		extractor:   extractor,
		tokenizer:   tokenizer,
		idGen:       idGen,
		hasher:      hasher,
		clock:       clock,
		logger:      logger,
	}
}

// Convert runs the full pipeline for a URL. Validation failures surface as
// *core.ValidationError before any network call; extraction failures as
// *core.ExternalServiceError or *core.ConversionError.
func (p *Pipeline) Convert(ctx context.Context, req Request) (*core.Conversion, error) {
	u, err := ValidateURL(req.URL)
	if err != nil {
		return nil, err
	}
	sourceURL := u.String()

	content, err := p.extractor.Extract(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, &core.ConversionError{
			URL:    sourceURL,
			Reason: "extraction produced no content",
		}
	}

	conv := p.describe(sourceURL, content)
	conv.AccountID = req.AccountID
	conv.IsPublic = req.IsPublic

	if !req.Save {
		return conv, nil
	}
	if err := p.persist(ctx, conv); err != nil {
		return nil, err
	}
	p.recordUsage(ctx, req.AccountID)

	p.logger.Info("conversion created",
		zap.String("id", conv.ID),
		zap.String("slug", conv.Slug),
		zap.String("domain", conv.Domain),
		zap.Int("word_count", conv.WordCount),
	)
	return conv, nil
}

// CreateFromClient stores markdown the caller already has, skipping
// extraction. The source URL is still validated and metadata is derived
// from the supplied content.
func (p *Pipeline) CreateFromClient(ctx context.Context, req Request, content string) (*core.Conversion, error) {
	u, err := ValidateURL(req.URL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, &core.ValidationError{Field: "content", Detail: "content is required"}
	}

	conv := p.describe(u.String(), content)
	conv.AccountID = req.AccountID
	conv.IsPublic = req.IsPublic

	if !req.Save {
		return conv, nil
	}
	if err := p.persist(ctx, conv); err != nil {
		return nil, err
	}
	p.recordUsage(ctx, req.AccountID)
	return conv, nil
}

// describe derives all content metadata and fills a Conversion shell.
func (p *Pipeline) describe(sourceURL, content string) *core.Conversion {
	title := ExtractTitle(content)
	wordCount := CountWords(content)
	now := p.clock.Now()

	return &core.Conversion{
		SourceURL:   sourceURL,
		Title:       title,
		Domain:      Domain(sourceURL),
		Content:     content,
		Description: Description(content, title),
		WordCount:   wordCount,
		ReadingTime: ReadingTime(wordCount),
		TokenCount:  p.tokenizer.Count(content),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// persist assigns an ID and a unique slug, then creates the row. A race on
// the slug unique index is retried with the next candidate.
func (p *Pipeline) persist(ctx context.Context, conv *core.Conversion) error {
	id, err := p.idGen.NewID()
	if err != nil {
		return fmt.Errorf("assign conversion id: %w", err)
	}
	conv.ID = id

	base := GenerateSlug(conv.Title, conv.SourceURL, p.hasher)
	for attempt := 0; attempt <= createRetries; attempt++ {
		slug, err := EnsureUnique(ctx, p.conversions, base)
		if err != nil {
			return err
		}
		conv.Slug = slug

		err = p.conversions.Create(ctx, *conv)
		if err == nil {
			return nil
		}
		if !errors.Is(err, core.ErrSlugTaken) {
			return fmt.Errorf("store conversion: %w", err)
		}
		p.logger.Debug("slug raced, retrying",
			zap.String("slug", slug),
			zap.Int("attempt", attempt+1),
		)
	}
	return fmt.Errorf("store conversion: %w", core.ErrSlugTaken)
}

// recordUsage bumps the owning account's lifetime counter. Failures are
// logged, not surfaced: the conversion already exists.
func (p *Pipeline) recordUsage(ctx context.Context, accountID *string) {
	if accountID == nil {
		return
	}
	if err := p.accounts.IncrementUsage(ctx, *accountID); err != nil {
		p.logger.Warn("usage increment failed",
			zap.String("account_id", *accountID),
			zap.Error(err),
		)
	}
}
