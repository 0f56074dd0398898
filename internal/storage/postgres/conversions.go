package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

const conversionColumns = `id, slug, account_id, source_url, title, domain, content,
	meta_description, word_count, reading_time, token_count, topics, is_public,
	is_indexed, view_count, last_viewed_at, created_at, updated_at`

// ConversionStore reads and mutates conversion rows.
type ConversionStore struct {
	pool pool
}

// NewConversionStore constructs a store from an existing pool.
func NewConversionStore(pool pool) (*ConversionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ConversionStore{pool: pool}, nil
}

// Create inserts a conversion. A slug unique violation surfaces as
// core.ErrSlugTaken so the caller can retry with the next candidate.
func (s *ConversionStore) Create(ctx context.Context, c core.Conversion) error {
	query := `
INSERT INTO conversions (
	id, slug, account_id, source_url, title, domain, content,
	meta_description, word_count, reading_time, token_count, topics,
	is_public, is_indexed, view_count, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
)`

	args := []any{
		c.ID,
		c.Slug,
		c.AccountID,
		c.SourceURL,
		c.Title,
		c.Domain,
		c.Content,
		c.Description,
		c.WordCount,
		c.ReadingTime,
		c.TokenCount,
		c.Topics,
		c.IsPublic,
		c.IsIndexed,
		c.ViewCount,
		c.CreatedAt,
		c.UpdatedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return core.ErrSlugTaken
		}
		return fmt.Errorf("insert conversion: %w", err)
	}
	return nil
}

// GetByID fetches one conversion.
func (s *ConversionStore) GetByID(ctx context.Context, id string) (core.Conversion, error) {
	query := fmt.Sprintf(`SELECT %s FROM conversions WHERE id = $1`, conversionColumns)
	return s.scanOne(ctx, query, id)
}

// GetBySlug fetches one conversion by its public slug.
func (s *ConversionStore) GetBySlug(ctx context.Context, slug string) (core.Conversion, error) {
	query := fmt.Sprintf(`SELECT %s FROM conversions WHERE slug = $1`, conversionColumns)
	return s.scanOne(ctx, query, slug)
}

// SlugExists reports whether any row holds the slug.
func (s *ConversionStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM conversions WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

// CountCreatedSince counts the account's conversions in the rolling window.
func (s *ConversionStore) CountCreatedSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	var count int
	query := `SELECT count(*) FROM conversions WHERE account_id = $1 AND created_at >= $2`
	if err := s.pool.QueryRow(ctx, query, accountID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count conversions: %w", err)
	}
	return count, nil
}

// ListByAccount pages through the account's conversions, newest first, with
// optional title and URL search. The total ignores paging.
func (s *ConversionStore) ListByAccount(ctx context.Context, accountID, search string, limit, offset int) ([]core.Conversion, int, error) {
	pattern := "%" + search + "%"

	var total int
	countQuery := `
SELECT count(*) FROM conversions
WHERE account_id = $1 AND ($2 = '' OR title ILIKE $3 OR source_url ILIKE $3)`
	if err := s.pool.QueryRow(ctx, countQuery, accountID, search, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conversions: %w", err)
	}

	query := fmt.Sprintf(`
SELECT %s FROM conversions
WHERE account_id = $1 AND ($2 = '' OR title ILIKE $3 OR source_url ILIKE $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5`, conversionColumns)

	rows, err := s.pool.Query(ctx, query, accountID, search, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversions: %w", err)
	}
	defer rows.Close()

	var out []core.Conversion
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list conversions: %w", err)
	}
	return out, total, nil
}

// Claim attaches an unowned conversion to an account. Already-claimed rows
// are left alone and read as not found.
func (s *ConversionStore) Claim(ctx context.Context, id, accountID string, makePublic bool, topics []string) error {
	query := `
UPDATE conversions SET
	account_id = $2,
	is_public = $3,
	topics = $4,
	updated_at = now()
WHERE id = $1 AND (account_id IS NULL OR account_id = $2)`

	tag, err := s.pool.Exec(ctx, query, id, accountID, makePublic, topics)
	if err != nil {
		return fmt.Errorf("claim conversion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Resource: "conversion", ID: id}
	}
	return nil
}

// IncrementViews bumps the view counter in one statement.
func (s *ConversionStore) IncrementViews(ctx context.Context, id string) error {
	query := `UPDATE conversions SET view_count = view_count + 1, last_viewed_at = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Resource: "conversion", ID: id}
	}
	return nil
}

// Delete removes a conversion the account owns.
func (s *ConversionStore) Delete(ctx context.Context, id, accountID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversions WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return fmt.Errorf("delete conversion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Resource: "conversion", ID: id}
	}
	return nil
}

func (s *ConversionStore) scanOne(ctx context.Context, query string, arg any) (core.Conversion, error) {
	c, err := scanConversion(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.Conversion{}, &core.NotFoundError{Resource: "conversion", ID: fmt.Sprint(arg)}
		}
		return core.Conversion{}, err
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversion(row rowScanner) (core.Conversion, error) {
	var c core.Conversion
	err := row.Scan(
		&c.ID,
		&c.Slug,
		&c.AccountID,
		&c.SourceURL,
		&c.Title,
		&c.Domain,
		&c.Content,
		&c.Description,
		&c.WordCount,
		&c.ReadingTime,
		&c.TokenCount,
		&c.Topics,
		&c.IsPublic,
		&c.IsIndexed,
		&c.ViewCount,
		&c.LastViewedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.Conversion{}, err
		}
		return core.Conversion{}, fmt.Errorf("scan conversion: %w", err)
	}
	return c, nil
}
