package finance

import (
	"fmt"
	"strings"
	"sync"
)

// ChartCache keeps rendered chart images by key. Consecutive generations of a
// search often share the same best weights, so their frames are drawn once.
type ChartCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	hits    int
}

func NewChartCache() *ChartCache {
	return &ChartCache{entries: map[string][]byte{}}
}

// FrameKey identifies a frame by weights and number of revealed periods.
func FrameKey(weights []float64, revealed int) string {
	parts := make([]string, len(weights))
	for i, w := range weights {
		parts[i] = fmt.Sprintf("%.8f", w)
	}
	return fmt.Sprintf("frame-%s-%d", strings.Join(parts, ","), revealed)
}

func (c *ChartCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if img, ok := c.entries[key]; ok {
		c.hits++
		out := make([]byte, len(img))
		copy(out, img)
		return out, true
	}
	return nil, false
}

func (c *ChartCache) Set(key string, img []byte) {
	c.mu.Lock()
	c.entries[key] = img
	c.mu.Unlock()
}

// Hits reports how many lookups were served from the cache.
func (c *ChartCache) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}
