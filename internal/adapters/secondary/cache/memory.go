package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/arhipvp/hw05-final/internal/core/ports"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache est le cache local (un seul process, pas de REDIS_ADDR).
// Les entrées expirées sont ignorées à la lecture et purgées par un job cron.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
	cron    *cron.Cron
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

var _ ports.ResponseCache = (*MemoryCache)(nil)

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Sweep supprime les entrées expirées et renvoie leur nombre.
func (c *MemoryCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// StartSweeper planifie Sweep (spec cron, ex: "@every 1m").
func (c *MemoryCache) StartSweeper(spec string) error {
	c.cron = cron.New()
	_, err := c.cron.AddFunc(spec, func() {
		if n := c.Sweep(); n > 0 {
			slog.Debug("🧹 Cache sweep", "removed", n)
		}
	})
	if err != nil {
		return err
	}
	c.cron.Start()
	return nil
}

func (c *MemoryCache) Stop() {
	if c.cron != nil {
		<-c.cron.Stop().Done()
	}
}
