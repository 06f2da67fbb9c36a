package httpmiddleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowUntilExhausted(t *testing.T) {
	l := NewSimpleTokenBucket(3, 3)

	assert.True(t, l.allow("1.2.3.4"))
	assert.True(t, l.allow("1.2.3.4"))
	assert.True(t, l.allow("1.2.3.4"))
	assert.False(t, l.allow("1.2.3.4"))
}

func TestLimitsArePerKey(t *testing.T) {
	l := NewSimpleTokenBucket(1, 1)

	assert.True(t, l.allow("1.2.3.4"))
	assert.False(t, l.allow("1.2.3.4"))
	assert.True(t, l.allow("5.6.7.8"))
}
