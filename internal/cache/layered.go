package cache

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// LayeredCache checks memory before disk and promotes disk hits to memory
type LayeredCache struct {
	memory Cache
	disk   Cache
	logger *zap.Logger
}

// NewLayeredCache creates a memory cache in front of a disk cache at diskDir
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration, logger *zap.Logger) *LayeredCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
		logger: logger,
	}
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		c.logger.Debug("cache hit", zap.String("key", key), zap.String("layer", "memory"))
		return val, true
	}

	if val, found := c.disk.Get(key); found {
		c.logger.Debug("cache hit", zap.String("key", key), zap.String("layer", "disk"))
		_ = c.memory.Set(key, val, 0)
		return val, true
	}

	c.logger.Debug("cache miss", zap.String("key", key))
	return nil, false
}

// Set stores the value in both layers. A disk failure still leaves the
// memory entry in place.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, ttl); err != nil {
		return err
	}
	return c.disk.Set(key, value, ttl)
}

func (c *LayeredCache) Delete(key string) error {
	return errors.Join(c.memory.Delete(key), c.disk.Delete(key))
}

func (c *LayeredCache) Clear() error {
	return errors.Join(c.memory.Clear(), c.disk.Clear())
}
