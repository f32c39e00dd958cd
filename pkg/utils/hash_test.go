package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheKeyDeterministic(t *testing.T) {
	a := CacheKey("frame post", "softwood")
	b := CacheKey("frame post", "softwood")

	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestCacheKeyDistinguishesParts(t *testing.T) {
	assert.NotEqual(t, CacheKey("frame", "post"), CacheKey("frame post"))
	assert.NotEqual(t, CacheKey("a", "b"), CacheKey("a", "c"))
}
