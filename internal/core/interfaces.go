package core

import (
	"context"
	"time"
)

// AccountStore persists caller accounts. Tier mutations happen only via
// ApplyBilling (webhook handler) or administrative action.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (Account, error)
	GetByCustomerID(ctx context.Context, customerID string) (Account, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (Account, error)

	// ApplyBilling applies a billing-driven mutation. It must be
	// idempotent: applying the same update twice leaves the account in
	// the same state as applying it once.
	ApplyBilling(ctx context.Context, accountID string, update BillingUpdate) error

	// IncrementUsage bumps the lifetime usage counter atomically at the
	// store layer.
	IncrementUsage(ctx context.Context, id string) error
}

// ConversionStore persists conversion records. Slug uniqueness is enforced
// with a database unique constraint; Create surfaces a violation as
// ErrSlugTaken so the pipeline can retry with the next suffix.
type ConversionStore interface {
	Create(ctx context.Context, c Conversion) error
	GetByID(ctx context.Context, id string) (Conversion, error)
	GetBySlug(ctx context.Context, slug string) (Conversion, error)
	SlugExists(ctx context.Context, slug string) (bool, error)

	// CountCreatedSince is a pure read of conversions attributable to the
	// account within [since, now]. It never mutates.
	CountCreatedSince(ctx context.Context, accountID string, since time.Time) (int, error)

	ListByAccount(ctx context.Context, accountID, search string, limit, offset int) ([]Conversion, int, error)

	// Claim associates an anonymous conversion with an account and sets
	// its visibility and topics ("save to library").
	Claim(ctx context.Context, id, accountID string, makePublic bool, topics []string) error

	// IncrementViews bumps the view counter atomically at the store layer.
	IncrementViews(ctx context.Context, id string) error

	Delete(ctx context.Context, id, accountID string) error
}

// StackStore persists context stacks.
type StackStore interface {
	Create(ctx context.Context, s ContextStack) error
	GetByID(ctx context.Context, id string) (ContextStack, error)
	ListByAccount(ctx context.Context, accountID, search string, isTemplate *bool, limit, offset int) ([]ContextStack, error)
	ListPublic(ctx context.Context, limit, offset int) ([]ContextStack, error)
	Update(ctx context.Context, s ContextStack) error
	Delete(ctx context.Context, id, accountID string) error

	// Touch increments the use counter atomically and stamps the
	// last-used timestamp.
	Touch(ctx context.Context, id string, at time.Time) error
}

// Extractor converts a validated absolute URL into markdown text via the
// external extraction service.
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Tokenizer counts model-compatible tokens. Implementations must be
// deterministic for identical input and fall back gracefully rather than
// fail.
type Tokenizer interface {
	Count(text string) int
}

// Clock abstracts wall-clock time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints globally unique record identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher produces hex digests; used for the slug fallback derived from the
// source URL.
type Hasher interface {
	Hash(data []byte) (string, error)
}
