// Package collector provides the two interchangeable Reddit data-access
// backends (authenticated API and public JSON endpoints) plus the factory
// that selects between them.
package collector

import (
	"context"
	"strings"
	"time"
)

// MetaCache is the read-through cache both backends consult for subreddit
// metadata. *storage.Store satisfies it.
type MetaCache interface {
	CacheRetrieve(ctx context.Context, key string) (string, bool, error)
	CacheStore(ctx context.Context, key, value string, ttl time.Duration) error
}

// metaCacheTTL is how long subreddit metadata stays fresh.
const metaCacheTTL = 900 * time.Second

func metaCacheKey(name string) string {
	return "subreddit_meta:" + strings.ToLower(name)
}
