package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// CacheKey derives a stable hash from the given parts, used for cache and
// vector-record identifiers.
func CacheKey(parts ...string) string {
	hash := md5.Sum([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", hash)
}
