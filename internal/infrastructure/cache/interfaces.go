package cache

import (
	"context"
	"time"
)

// Cache provides a generic caching interface with TTL and atomic operations.
type Cache interface {
	// Get retrieves a value by key
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value with optional TTL
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a key
	Delete(ctx context.Context, key string) error

	// SetNX sets a value only if the key doesn't exist (atomic)
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// GetJSON retrieves and unmarshals JSON data
	GetJSON(ctx context.Context, key string, dest interface{}) error

	// SetJSON marshals and stores JSON data
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Close closes the cache connection
	Close() error
}

// Key prefixes for consistent cache key naming across the core.
const (
	ActiveVendorsKey  = "nexnum:vendors:active"
	QuotePrefix       = "nexnum:quotes:"
	HealthSamplesPref = "nexnum:health:samples:"
	HealthCircuitPref = "nexnum:health:circuit:"
	HealthDeliveryPre = "nexnum:health:delivery:"
	HealthSMSPref     = "nexnum:health:sms:"
	SyncLockPrefix    = "nexnum:sync:lock:"
)

// Common TTL values.
const (
	ActiveVendorTTL = 30 * time.Second
	QuoteTTL        = 15 * time.Second
	SyncLockTTL     = 30 * time.Minute
)

// ErrCacheKeyNotFound is returned when a cache key doesn't exist.
type ErrCacheKeyNotFound struct {
	Key string
}

func (e ErrCacheKeyNotFound) Error() string {
	return "cache key not found: " + e.Key
}
