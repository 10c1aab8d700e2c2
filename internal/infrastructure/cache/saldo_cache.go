package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// ErrSaldoCacheMiss is returned when no cached saldo exists for the tenant
var ErrSaldoCacheMiss = errors.New("saldo cache miss")

// SaldoCache caches computed tenant saldi in Redis. The ledger service
// invalidates the key on every append, so a hit is always consistent
// with the entry set it was computed from.
type SaldoCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSaldoCache creates a saldo cache with the given TTL
func NewSaldoCache(client *redis.Client, ttl time.Duration) *SaldoCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SaldoCache{client: client, ttl: ttl}
}

func saldoKey(orgID, tenantID uuid.UUID) string {
	return fmt.Sprintf("saldo:%s:%s", orgID, tenantID)
}

// Get returns the cached saldo, or ErrSaldoCacheMiss
func (c *SaldoCache) Get(ctx context.Context, orgID, tenantID uuid.UUID) (decimal.Decimal, error) {
	val, err := c.client.Get(ctx, saldoKey(orgID, tenantID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, ErrSaldoCacheMiss
		}
		return decimal.Zero, err
	}
	saldo, err := decimal.NewFromString(val)
	if err != nil {
		// Corrupt value, treat as miss
		return decimal.Zero, ErrSaldoCacheMiss
	}
	return saldo, nil
}

// Set stores a computed saldo
func (c *SaldoCache) Set(ctx context.Context, orgID, tenantID uuid.UUID, saldo decimal.Decimal) error {
	return c.client.Set(ctx, saldoKey(orgID, tenantID), saldo.String(), c.ttl).Err()
}

// Invalidate drops the cached saldo after a ledger append
func (c *SaldoCache) Invalidate(ctx context.Context, orgID, tenantID uuid.UUID) error {
	return c.client.Del(ctx, saldoKey(orgID, tenantID)).Err()
}
