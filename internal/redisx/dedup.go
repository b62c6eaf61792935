package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Deduper marks processed event ids with a TTL'd key. It is a fast path
// only; consumers stay idempotent without it.
type Deduper struct {
	R       *redis.Client
	Service string
}

func (d *Deduper) Seen(ctx context.Context, key string) (bool, error) {
	return Exists(ctx, d.R, fmt.Sprintf(KeyDedup, d.Service, key))
}

func (d *Deduper) Mark(ctx context.Context, key string) error {
	return d.R.Set(ctx, fmt.Sprintf(KeyDedup, d.Service, key), "1", TTLDedup).Err()
}
