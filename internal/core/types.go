// Package core defines the domain entities and collaborator interfaces
// shared by the conversion, rate limiting, and context stack subsystems.
// By keeping persistence and external services behind interfaces, the
// services stay testable without a live database or upstream API.
package core

import "time"

// Tier is a named subscription level gating daily conversion quota and
// feature access.
type Tier string

// Known subscription tiers. Unknown values fall back to TierFree at the
// policy layer; they are never rejected.
const (
	TierFree       Tier = "free"
	TierPower      Tier = "power"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Account identifies a caller for quota and ownership purposes.
// Anonymous callers are represented as the absence of an Account.
type Account struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Tier     Tier   `json:"tier"`
	IsActive bool   `json:"is_active"`

	// UsageCount is the lifetime conversion counter, incremented
	// atomically at the store layer on every successful conversion.
	UsageCount int `json:"usage_count"`

	SubscriptionEndsAt    *time.Time `json:"subscription_ends_at,omitempty"`
	BillingCustomerID     string     `json:"-"`
	BillingSubscriptionID string     `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Conversion is the durable result of one successful extraction.
// Content is immutable after creation; only visibility flags, topics,
// the view counter, and the owning account may change later.
type Conversion struct {
	ID        string  `json:"id"`
	Slug      string  `json:"slug"`
	AccountID *string `json:"user_id,omitempty"`

	SourceURL string `json:"source_url"`
	Title     string `json:"title,omitempty"`
	Domain    string `json:"domain"`

	Content     string `json:"content"`
	Description string `json:"meta_description,omitempty"`

	WordCount   int      `json:"word_count"`
	ReadingTime int      `json:"reading_time"`
	TokenCount  int      `json:"token_count"`
	Topics      []string `json:"topics,omitempty"`

	IsPublic  bool `json:"is_public"`
	IsIndexed bool `json:"is_indexed"`

	ViewCount    int        `json:"view_count"`
	LastViewedAt *time.Time `json:"last_viewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BlockType tags a context stack block variant.
type BlockType string

// Block variants: a URL-sourced block carries its origin, a text block is
// free-form content.
const (
	BlockTypeURL  BlockType = "url"
	BlockTypeText BlockType = "text"
)

// Block is one entry in a context stack. Order within the stack is
// significant and preserved on every read and export.
type Block struct {
	Type    BlockType `json:"type"`
	URL     string    `json:"url,omitempty"`
	Title   string    `json:"title,omitempty"`
	Content string    `json:"content"`
}

// ContextStack is an ordered, user-authored collection of content blocks.
type ContextStack struct {
	ID          string  `json:"id"`
	AccountID   string  `json:"user_id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Blocks      []Block `json:"blocks"`

	IsTemplate bool `json:"is_template"`
	IsPublic   bool `json:"is_public"`

	UseCount   int        `json:"use_count"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BillingUpdate carries the account mutations derived from one billing
// webhook event. Nil fields are left untouched, which is what makes
// replayed deliveries converge instead of clobbering state.
type BillingUpdate struct {
	Tier               *Tier
	CustomerID         *string
	SubscriptionID     *string
	SubscriptionEndsAt *time.Time
}
