package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrSlugTaken signals a slug uniqueness-constraint violation on insert.
// The conversion pipeline treats it as a cue to retry with the next suffix.
var ErrSlugTaken = errors.New("slug already exists")

// ValidationError reports user-correctable bad input.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Detail
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Detail)
}

// AuthenticationError reports missing or invalid credentials.
type AuthenticationError struct {
	Detail string
}

func (e *AuthenticationError) Error() string {
	if e.Detail == "" {
		return "authentication failed"
	}
	return e.Detail
}

// RateLimitError reports an exceeded quota. It always carries the
// machine-readable quota metadata so a client can back off intelligently.
type RateLimitError struct {
	Tier         Tier
	DailyLimit   *int
	CurrentUsage int
	ResetAt      *time.Time
}

func (e *RateLimitError) Error() string {
	if e.DailyLimit != nil {
		return fmt.Sprintf("rate limit exceeded: %d/%d conversions used", e.CurrentUsage, *e.DailyLimit)
	}
	return "rate limit exceeded"
}

// ConversionError reports a failed extraction. UpstreamStatus is zero when
// the upstream status is unknown (e.g. a timeout).
type ConversionError struct {
	URL            string
	Reason         string
	UpstreamStatus int
	Err            error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion failed for %s: %s", e.URL, e.Reason)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// NotFoundError reports an unknown id or slug.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// ExternalServiceError reports an upstream dependency failure.
type ExternalServiceError struct {
	Service        string
	Detail         string
	UpstreamStatus int
	Timeout        bool
	Err            error
}

func (e *ExternalServiceError) Error() string {
	if e.UpstreamStatus > 0 {
		return fmt.Sprintf("%s service error (status %d): %s", e.Service, e.UpstreamStatus, e.Detail)
	}
	return fmt.Sprintf("%s service error: %s", e.Service, e.Detail)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ConfigurationError reports a missing or invalid setting. It is fatal at
// startup, never surfaced per-request.
type ConfigurationError struct {
	Key    string
	Detail string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("configuration error: %s", e.Detail)
	}
	return fmt.Sprintf("configuration error (%s): %s", e.Key, e.Detail)
}
