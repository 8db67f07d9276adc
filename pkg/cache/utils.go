package cache

import (
	"fmt"
	"net/url"
)

// GenerateKey creates a cache key with prefix and ID.
func GenerateKey(prefix string, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// GenerateKeyWithParams creates a cache key with multiple parameters.
// Parameters are query-escaped so free text cannot collide with separators.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	key := prefix
	for _, param := range params {
		key = fmt.Sprintf("%s:%s", key, url.QueryEscape(fmt.Sprint(param)))
	}
	return key
}
