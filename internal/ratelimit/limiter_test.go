package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinBurst(t *testing.T) {
	l := NewLimiter(3600, 2)

	assert.True(t, l.Allow("acme"))
	assert.True(t, l.Allow("acme"))
	assert.False(t, l.Allow("acme"))
}

func TestAccountsAreIndependent(t *testing.T) {
	l := NewLimiter(3600, 1)

	assert.True(t, l.Allow("acme"))
	assert.False(t, l.Allow("acme"))
	assert.True(t, l.Allow("globex"))
}

func TestTokensDrain(t *testing.T) {
	l := NewLimiter(1, 5)

	before := l.Tokens("acme")
	l.Allow("acme")
	after := l.Tokens("acme")
	assert.Less(t, after, before)
}
