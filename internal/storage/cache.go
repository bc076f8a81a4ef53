package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DefaultCacheTTL is the system-wide cache time-to-live.
const DefaultCacheTTL = 900 * time.Second

// CacheStore upserts a value with an absolute expiry of now + ttl.
func (s *Store) CacheStore(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	expiresAt := float64(time.Now().Add(ttl).UnixNano()) / float64(time.Second)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO cache (key, value, expires_at) VALUES (?, ?, ?)`,
		key, value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("cache store %q: %w", key, err)
	}
	return nil
}

// CacheRetrieve returns the cached value for key. Missing and expired keys
// both report ok=false; an expired key is deleted as a side effect.
func (s *Store) CacheRetrieve(ctx context.Context, key string) (string, bool, error) {
	var (
		value     string
		expiresAt float64
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT value, expires_at FROM cache WHERE key = ?`,
		key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache retrieve %q: %w", key, err)
	}

	now := float64(time.Now().UnixNano()) / float64(time.Second)
	if now > expiresAt {
		if _, delErr := s.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); delErr != nil {
			return "", false, fmt.Errorf("cache expire %q: %w", key, delErr)
		}
		return "", false, nil
	}
	return value, true, nil
}

// CacheClearExpired removes every expired entry and returns the count removed.
func (s *Store) CacheClearExpired(ctx context.Context) (int64, error) {
	now := float64(time.Now().UnixNano()) / float64(time.Second)
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("cache clear expired: %w", err)
	}
	return res.RowsAffected()
}
