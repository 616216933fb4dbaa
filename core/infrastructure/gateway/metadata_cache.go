package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces"
)

const (
	defaultMetadataMaxCost     = 32 << 20
	defaultMetadataNumCounters = 100_000
	defaultMetadataBufferItems = 64

	// DefaultMetadataTTL bounds how stale a table listing may be.
	DefaultMetadataTTL = 5 * time.Minute
)

// MetadataCache memoises ListTables per dialect and credential set.
type MetadataCache struct {
	gateway interfaces.Gateway
	store   *ristretto.Cache
	ttl     time.Duration
}

// NewMetadataCache wraps gw. A ttl <= 0 disables caching.
func NewMetadataCache(gw interfaces.Gateway, ttl time.Duration) *MetadataCache {
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: defaultMetadataNumCounters,
		MaxCost:     defaultMetadataMaxCost,
		BufferItems: defaultMetadataBufferItems,
	})
	if err != nil {
		// static config
		panic(err)
	}
	return &MetadataCache{gateway: gw, store: store, ttl: ttl}
}

// Tables returns the table listing for creds, fetching it on a miss.
func (c *MetadataCache) Tables(ctx context.Context, dialect Dialect, creds domain.Credentials) ([]domain.Table, error) {
	key, err := metadataKey(dialect, creds)
	if err != nil {
		return nil, err
	}
	if value, ok := c.store.Get(key); ok {
		if tables, ok := value.([]domain.Table); ok {
			return tables, nil
		}
	}

	tables, err := c.gateway.ListTables(ctx, dialect, creds)
	if err != nil {
		return nil, err
	}
	if c.ttl > 0 {
		if c.store.SetWithTTL(key, tables, estimateTablesCost(tables), c.ttl) {
			c.store.Wait()
		}
	}
	return tables, nil
}

// Invalidate drops the cached listing for creds.
func (c *MetadataCache) Invalidate(dialect Dialect, creds domain.Credentials) {
	if key, err := metadataKey(dialect, creds); err == nil {
		c.store.Del(key)
	}
}

// Close releases the cache.
func (c *MetadataCache) Close() {
	c.store.Close()
}

func metadataKey(dialect Dialect, creds domain.Credentials) (string, error) {
	raw, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte("tables:"+string(dialect)+":"), raw...))
	return hex.EncodeToString(sum[:]), nil
}

func estimateTablesCost(tables []domain.Table) int64 {
	var total int64 = 1
	for _, t := range tables {
		total += int64(len(t.Name)) + 32
		for _, col := range t.Columns {
			total += int64(len(col.Name)+len(col.Type)) + 16
		}
	}
	return total
}
