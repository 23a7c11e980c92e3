package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/models"
)

// QuoteCache remembers quotes by input fingerprint so that a client asking
// twice for the same cart gets the same quote id back.
type QuoteCache interface {
	Get(ctx context.Context, key string) (models.Quote, bool, error)
	Set(ctx context.Context, key string, q models.Quote) error
}

// QuoteKey fingerprints a set of items and the rate applied to them.
// Item order does not matter.
func QuoteKey(items []models.LineItem, rate models.Rate) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, it.WeightKg.String()+"x"+strconv.Itoa(it.Quantity))
	}
	sort.Strings(parts)

	h := sha256.New()
	h.Write([]byte(rate.PerKg.String() + "|" + rate.Minimum.String() + "|"))
	h.Write([]byte(strings.Join(parts, ",")))
	return "shipping:quote:" + hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	quote   models.Quote
	expires time.Time
}

type MemoryCache struct {
	mu    sync.RWMutex
	store map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		store: make(map[string]entry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (models.Quote, bool, error) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return models.Quote{}, false, nil
	}
	if c.ttl > 0 && c.now().After(e.expires) {
		c.mu.Lock()
		// re-check: another writer may have refreshed it
		if cur, ok := c.store[key]; ok && c.now().After(cur.expires) {
			delete(c.store, key)
		}
		c.mu.Unlock()
		return models.Quote{}, false, nil
	}
	return e.quote, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, q models.Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = entry{quote: q, expires: c.now().Add(c.ttl)}
	return nil
}

// Len reports how many entries are held, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) (models.Quote, bool, error) {
	return models.Quote{}, false, nil
}

func (Noop) Set(context.Context, string, models.Quote) error { return nil }
