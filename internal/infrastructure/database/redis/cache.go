package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/linkrx/formident/internal/domain/equivalence"
	"github.com/linkrx/formident/internal/domain/matching"
	"github.com/linkrx/formident/internal/infrastructure/monitoring/logging"
)

// MatchCache memoizes equivalence decisions for (class, record) pairs.  The
// registry is frozen while the query API runs, so a decision never goes
// stale within one snapshot generation; the key embeds the snapshot
// generation so reloading a new snapshot invalidates naturally.
//
// Cache failures degrade to recomputation; the predicate is cheap enough
// that Redis being down must never fail a request.
type MatchCache struct {
	rdb        *redis.Client
	group      singleflight.Group
	ttl        time.Duration
	prefix     string
	generation string
	log        logging.Logger
}

// NewMatchCache builds a cache over rdb.  generation identifies the loaded
// snapshot (e.g. its file hash or run id).
func NewMatchCache(rdb *redis.Client, prefix string, ttl time.Duration, generation string, log logging.Logger) *MatchCache {
	return &MatchCache{
		rdb:        rdb,
		ttl:        ttl,
		prefix:     prefix,
		generation: generation,
		log:        log.Named("matchcache"),
	}
}

func (c *MatchCache) key(id equivalence.ClassID, rec matching.Record) string {
	sum := sha256.Sum256([]byte(rec.Ingredient + "\x1f" + rec.FormRoute + "\x1f" + rec.Strength + "\x1f" + rec.Unit))
	return fmt.Sprintf("%s:match:%s:%d:%s", c.prefix, c.generation, id, hex.EncodeToString(sum[:8]))
}

// Equivalent returns the cached decision for (id, rec), computing and
// storing it on a miss.  Concurrent misses for the same pair are coalesced
// into a single computation.
func (c *MatchCache) Equivalent(
	ctx context.Context,
	id equivalence.ClassID,
	rec matching.Record,
	compute func() (bool, error),
) (bool, error) {
	key := c.key(id, rec)

	val, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		return val == "1", nil
	}
	if err != redis.Nil {
		c.log.Warn("cache read failed, recomputing", logging.String("key", key), logging.Err(err))
		return compute()
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		ok, err := compute()
		if err != nil {
			return false, err
		}
		stored := "0"
		if ok {
			stored = "1"
		}
		if err := c.rdb.Set(ctx, key, stored, c.ttl).Err(); err != nil {
			c.log.Warn("cache write failed", logging.String("key", key), logging.Err(err))
		}
		return ok, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}
