// Package cache stores JSON payloads under namespaced keys. Backing-store
// failures are logged and treated as misses so callers never fail on them.
package cache

import "time"

const keyPrefix = "construction_ai"

const DefaultTTL = time.Hour

// Key returns the fully-qualified storage key.
func Key(namespace, key string) string {
	return keyPrefix + ":" + namespace + ":" + key
}

func namespacePrefix(namespace string) string {
	return keyPrefix + ":" + namespace + ":"
}

func effectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
