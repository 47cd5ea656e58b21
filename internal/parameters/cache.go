package parameters

import (
	"context"
	"fmt"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const cacheKey = "parameters"

// Cache memoizes the parameter blob for the life of a warm process. Two
// concurrent first loads may both hit the source; the last one wins, which
// is harmless because the blob is the same for a given deployment.
type Cache struct {
	source Source
	store  *cache.Cache
	logger *zap.Logger
}

func NewCache(source Source, logger *zap.Logger) *Cache {
	return &Cache{
		source: source,
		store:  cache.New(cache.NoExpiration, 0),
		logger: logger,
	}
}

// Get returns the cached parameters, loading and exporting them on first use.
func (c *Cache) Get(ctx context.Context) (*Parameters, error) {
	if x, found := c.store.Get(cacheKey); found {
		return x.(*Parameters), nil
	}

	if c.source == nil {
		return nil, ErrNoSource
	}

	data, err := c.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("load parameters: %w", err)
	}

	params, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load parameters: %w", err)
	}

	if err := params.Export(); err != nil {
		return nil, fmt.Errorf("load parameters: %w", err)
	}

	c.store.Set(cacheKey, params, cache.NoExpiration)
	c.logger.Info("Parameters loaded", zap.Strings("keys", params.Keys()))

	return params, nil
}

// Loaded reports whether a blob is cached without triggering a load.
func (c *Cache) Loaded() bool {
	_, found := c.store.Get(cacheKey)
	return found
}
