package port

import (
	"context"
	"errors"
)

// ErrCacheMiss возвращается Get, когда ключа нет в кеше
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the interface for caching read-model projections.
// Явного удаления нет: записи истекают по TTL, а ключи истории привязаны к последнему snapshot'у.
type Cache interface {
	// Get retrieves a value from cache, ErrCacheMiss when absent
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value in cache with the default TTL
	Set(ctx context.Context, key string, value interface{}) error

	// Close closes the cache connection
	Close() error
}
