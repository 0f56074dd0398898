package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

func conversionRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "slug", "account_id", "source_url", "title", "domain", "content",
		"meta_description", "word_count", "reading_time", "token_count", "topics",
		"is_public", "is_indexed", "view_count", "last_viewed_at", "created_at", "updated_at",
	})
}

func sampleConversion(now time.Time) core.Conversion {
	acct := "acct-1"
	return core.Conversion{
		ID:          "conv-1",
		Slug:        "how-to-test",
		AccountID:   &acct,
		SourceURL:   "https://example.com/how-to-test",
		Title:       "How To Test",
		Domain:      "example.com",
		Content:     "# How To Test\n\nbody",
		Description: "Clean markdown conversion from webpage",
		WordCount:   5,
		ReadingTime: 1,
		TokenCount:  8,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestConversionCreate(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewConversionStore(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	c := sampleConversion(now)

	mock.ExpectExec("INSERT INTO conversions").
		WithArgs(
			c.ID, c.Slug, c.AccountID, c.SourceURL, c.Title, c.Domain, c.Content,
			c.Description, c.WordCount, c.ReadingTime, c.TokenCount, c.Topics,
			c.IsPublic, c.IsIndexed, c.ViewCount, c.CreatedAt, c.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Create(context.Background(), c))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversionCreateSlugConflict(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewConversionStore(mock)
	require.NoError(t, err)

	c := sampleConversion(time.Now().UTC())
	mock.ExpectExec("INSERT INTO conversions").
		WithArgs(
			c.ID, c.Slug, c.AccountID, c.SourceURL, c.Title, c.Domain, c.Content,
			c.Description, c.WordCount, c.ReadingTime, c.TokenCount, c.Topics,
			c.IsPublic, c.IsIndexed, c.ViewCount, c.CreatedAt, c.UpdatedAt,
		).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "conversions_slug_key"})

	err = store.Create(context.Background(), c)
	require.ErrorIs(t, err, core.ErrSlugTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversionGetBySlug(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewConversionStore(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	acct := "acct-1"
	mock.ExpectQuery("SELECT (.+) FROM conversions WHERE slug").
		WithArgs("how-to-test").
		WillReturnRows(conversionRows().AddRow(
			"conv-1", "how-to-test", &acct, "https://example.com/how-to-test",
			"How To Test", "example.com", "# How To Test\n\nbody",
			"desc", 5, 1, 8, []string{"testing"}, true, false, 3,
			(*time.Time)(nil), now, now,
		))

	c, err := store.GetBySlug(context.Background(), "how-to-test")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", c.ID)
	assert.Equal(t, []string{"testing"}, c.Topics)
	assert.Equal(t, 3, c.ViewCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversionSlugExists(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewConversionStore(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("taken-slug").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.SlugExists(context.Background(), "taken-slug")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversionCountCreatedSince(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewConversionStore(mock)
	require.NoError(t, err)

	since := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM conversions WHERE account_id").
		WithArgs("acct-1", since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	count, err := store.CountCreatedSince(context.Background(), "acct-1", since)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversionClaim(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewConversionStore(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE conversions SET").
		WithArgs("conv-1", "acct-1", true, []string{"go", "testing"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.Claim(context.Background(), "conv-1", "acct-1", true, []string{"go", "testing"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversionClaimAlreadyOwned(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewConversionStore(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE conversions SET").
		WithArgs("conv-1", "acct-2", false, []string(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.Claim(context.Background(), "conv-1", "acct-2", false, nil)
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversionDelete(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewConversionStore(mock)
	require.NoError(t, err)

	mock.ExpectExec("DELETE FROM conversions").
		WithArgs("conv-1", "acct-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.Delete(context.Background(), "conv-1", "acct-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
