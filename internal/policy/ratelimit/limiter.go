// Package ratelimit decides whether a conversion request is within its
// tier's daily quota, computed over a rolling 24-hour window.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ctxthelp/ctxt-api/internal/core"
	"github.com/ctxthelp/ctxt-api/internal/policy/tier"
)

// Decision is the output of one rate limit evaluation. It is computed
// fresh on every request and never cached.
type Decision struct {
	Allowed      bool       `json:"allowed"`
	Tier         core.Tier  `json:"tier"`
	DailyLimit   *int       `json:"daily_limit"`
	Remaining    *int       `json:"remaining"`
	CurrentUsage int        `json:"current_usage"`
	ResetAt      *time.Time `json:"reset_at"`
}

// UsageCounter is the read-only slice of the conversion store the limiter
// needs.
type UsageCounter interface {
	CountCreatedSince(ctx context.Context, accountID string, since time.Time) (int, error)
}

// Limiter combines the tier policy with historical usage to produce
// allow/deny decisions plus quota metadata.
type Limiter struct {
	policy *tier.Policy
	usage  UsageCounter
	clock  core.Clock
	logger *zap.Logger
}

// New constructs a Limiter.
func New(policy *tier.Policy, usage UsageCounter, clock core.Clock, logger *zap.Logger) *Limiter {
	return &Limiter{
		policy: policy,
		usage:  usage,
		clock:  clock,
		logger: logger,
	}
}

// Check evaluates the caller's quota. A nil account is an anonymous caller
// and is evaluated against the free tier. Unlimited tiers never query
// usage, so their reported usage is always zero.
//
// If the usage query fails, the error is propagated (fail closed) rather
// than silently allowing or denying.
func (l *Limiter) Check(ctx context.Context, account *core.Account) (Decision, error) {
	t := core.TierFree
	if account != nil {
		t = account.Tier
	}
	limit := l.policy.DailyLimit(t)

	if limit == nil {
		return Decision{Allowed: true, Tier: t}, nil
	}

	// Anonymous usage is not tracked per identity in the store; the
	// per-IP bucket in Anonymous covers enforcement instead.
	usage := 0
	if account != nil {
		now := l.clock.Now()
		count, err := l.usage.CountCreatedSince(ctx, account.ID, now.Add(-24*time.Hour))
		if err != nil {
			return Decision{}, &core.ExternalServiceError{
				Service: "database",
				Detail:  "usage count unavailable",
				Err:     fmt.Errorf("count conversions: %w", err),
			}
		}
		usage = count
	}

	remaining := *limit - usage
	if remaining < 0 {
		remaining = 0
	}
	reset := nextUTCMidnight(l.clock.Now())

	d := Decision{
		Allowed:      usage < *limit,
		Tier:         t,
		DailyLimit:   limit,
		Remaining:    &remaining,
		CurrentUsage: usage,
		ResetAt:      &reset,
	}

	if !d.Allowed {
		caller := "anonymous"
		if account != nil {
			caller = account.ID
		}
		l.logger.Warn("rate limit exceeded",
			zap.String("account", caller),
			zap.String("tier", string(t)),
			zap.Int("current_usage", usage),
			zap.Int("daily_limit", *limit),
		)
	}
	return d, nil
}

// Err converts a denied decision into the structured error carried back to
// the caller.
func (d Decision) Err() *core.RateLimitError {
	return &core.RateLimitError{
		Tier:         d.Tier,
		DailyLimit:   d.DailyLimit,
		CurrentUsage: d.CurrentUsage,
		ResetAt:      d.ResetAt,
	}
}

// Headers renders the decision as standard X-RateLimit-* response headers.
func Headers(d Decision) map[string]string {
	h := map[string]string{
		"X-RateLimit-Tier": string(d.Tier),
		"X-RateLimit-Used": strconv.Itoa(d.CurrentUsage),
	}
	if d.DailyLimit != nil {
		h["X-RateLimit-Limit"] = strconv.Itoa(*d.DailyLimit)
		h["X-RateLimit-Remaining"] = strconv.Itoa(*d.Remaining)
		h["X-RateLimit-Reset"] = d.ResetAt.UTC().Format(time.RFC3339)
	} else {
		h["X-RateLimit-Limit"] = "unlimited"
		h["X-RateLimit-Remaining"] = "unlimited"
	}
	return h
}

// nextUTCMidnight returns the next UTC midnight strictly after now.
func nextUTCMidnight(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
