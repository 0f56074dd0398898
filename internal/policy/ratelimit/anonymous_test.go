package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymousBurstThenDeny(t *testing.T) {
	limit := 2
	a := NewAnonymous(&limit)

	assert.True(t, a.Allow("203.0.113.7"))
	assert.True(t, a.Allow("203.0.113.7"))
	assert.False(t, a.Allow("203.0.113.7"))
}

func TestAnonymousBucketsArePerIP(t *testing.T) {
	limit := 1
	a := NewAnonymous(&limit)

	assert.True(t, a.Allow("203.0.113.7"))
	assert.False(t, a.Allow("203.0.113.7"))
	assert.True(t, a.Allow("198.51.100.4"))
}

func TestAnonymousNilLimitDisablesEnforcement(t *testing.T) {
	a := NewAnonymous(nil)
	for i := 0; i < 100; i++ {
		assert.True(t, a.Allow("203.0.113.7"))
	}
}

func TestAnonymousEmptyIPSharesOneBucket(t *testing.T) {
	limit := 1
	a := NewAnonymous(&limit)

	assert.True(t, a.Allow(""))
	assert.False(t, a.Allow(""))
}
